// Package receiver owns the UDP socket and the single-writer run loop
// that drives the universe engine.
//
// The loop multiplexes exactly two trigger kinds - decoded packets from
// the socket reader and liveness-timer expiries from the scheduler -
// and delivers them to the engine one at a time. Expiry tokens are
// confirmed against the scheduler before eviction, so a notification
// that raced a liveness-proving packet is dropped. After every trigger
// the loop drains the engine's event batch in order and fans each event
// out to the log, the optional history store, and the output sink.
//
// ERROR HANDLING: malformed datagrams are logged at debug level and
// dropped (protocol-recoverable). Engine errors are scheduler failures
// and abort the loop; the process is expected to exit and restart
// rather than run with a timer/registry mismatch.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/strandlight/sacnd/internal/config"
	"github.com/strandlight/sacnd/internal/output"
	"github.com/strandlight/sacnd/internal/protocol"
	"github.com/strandlight/sacnd/internal/store"
	"github.com/strandlight/sacnd/internal/timer"
	"github.com/strandlight/sacnd/internal/universe"
)

// ExpirySource is the alarm side of the scheduler: a channel of expiry
// tokens plus the confirmation handshake. A token is confirmed only if
// the alarm was not rearmed or cancelled while the token sat in the
// queue; an unconfirmed token is dropped without evicting anything.
type ExpirySource interface {
	Expired() <-chan timer.Expiry
	Confirm(timer.Expiry) bool
}

// Receiver ties the socket, engine, scheduler, sink, and history store
// together for one universe.
type Receiver struct {
	cfg     *config.Config
	uni     *universe.Universe
	alarms  ExpirySource
	sink    output.Sink
	history *store.Store // nil when history is not configured

	conn    *net.UDPConn
	packets chan *protocol.Packet
}

// New assembles a receiver. history may be nil.
func New(cfg *config.Config, uni *universe.Universe, alarms ExpirySource, sink output.Sink, history *store.Store) *Receiver {
	return &Receiver{
		cfg:     cfg,
		uni:     uni,
		alarms:  alarms,
		sink:    sink,
		history: history,
		packets: make(chan *protocol.Packet, 64),
	}
}

// Listen binds the E1.31 port and joins the universe's multicast group,
// on the configured interface when one is named.
func (r *Receiver) Listen() error {
	var ifi *net.Interface
	if r.cfg.Interface != "" {
		found, err := net.InterfaceByName(r.cfg.Interface)
		if err != nil {
			return fmt.Errorf("resolve interface %s: %w", r.cfg.Interface, err)
		}
		ifi = found
	}
	group := &net.UDPAddr{
		IP:   protocol.MulticastGroup(r.cfg.Universe),
		Port: protocol.Port,
	}
	conn, err := net.ListenMulticastUDP("udp4", ifi, group)
	if err != nil {
		return fmt.Errorf("join multicast group %s: %w", group, err)
	}
	r.conn = conn
	slog.Info("listening", "group", group.String(), "universe", r.cfg.Universe)
	return nil
}

// Run executes the reactive loop until ctx is cancelled or a
// resource-fatal error occurs. Listen must have been called first.
//
// Must be called from exactly one goroutine: all engine mutation
// happens here.
func (r *Receiver) Run(ctx context.Context) error {
	if r.conn == nil {
		return errors.New("receiver: Run called before Listen")
	}

	go r.readLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("receiver stopping: context cancelled")
			r.conn.Close()
			return ctx.Err()

		case pkt := <-r.packets:
			if err := r.uni.Apply(pkt); err != nil {
				r.conn.Close()
				return fmt.Errorf("apply packet: %w", err)
			}
			if err := r.dispatch(ctx); err != nil {
				r.conn.Close()
				return err
			}

		case e := <-r.alarms.Expired():
			if err := r.handleExpiry(ctx, e); err != nil {
				r.conn.Close()
				return err
			}
		}
	}
}

// handleExpiry evicts the source named by a confirmed expiry token. A
// token superseded while queued - the source sent a packet that reset
// its alarm, or terminated and was re-admitted - is dropped: the expiry
// belongs to an arming that no longer stands.
func (r *Receiver) handleExpiry(ctx context.Context, e timer.Expiry) error {
	if !r.alarms.Confirm(e) {
		return nil
	}
	r.uni.Expire(e.ID)
	return r.dispatch(ctx)
}

// readLoop pulls datagrams off the socket, decodes them, and feeds the
// run loop. Runs until the socket is closed or ctx is cancelled.
func (r *Receiver) readLoop(ctx context.Context) {
	buf := make([]byte, 1024)
	for {
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("socket read failed", "error", err)
			}
			return
		}
		pkt, err := protocol.Parse(buf[:n])
		if err != nil {
			slog.Debug("discarding invalid datagram", "from", addr, "error", err)
			continue
		}
		select {
		case r.packets <- pkt:
		case <-ctx.Done():
			return
		}
	}
}

// dispatch drains the engine's event batch, in order, once per cycle.
func (r *Receiver) dispatch(ctx context.Context) error {
	for _, ev := range r.uni.Drain() {
		switch ev.Kind {
		case universe.EventChannelDataUpdated:
			data := r.uni.Channels()
			if err := r.sink.Render(data[:], r.uni.Version()); err != nil {
				return fmt.Errorf("render channel data: %w", err)
			}

		case universe.EventSourceAdded:
			slog.Info("source added to universe",
				"cid", ev.Source,
				"winning_priority", r.uni.Winning(),
				"winning_sources", r.uni.SourceCount(),
			)

		case universe.EventSourceRemoved:
			slog.Info("source removed from universe",
				"cid", ev.Source,
				"winning_priority", r.uni.Winning(),
				"winning_sources", r.uni.SourceCount(),
			)

		case universe.EventSourceLimitReached:
			slog.Info("source not added to universe: source limit reached",
				"cid", ev.Source,
				"max_sources", r.cfg.MaxSources,
			)
		}

		if err := r.record(ctx, ev); err != nil {
			// History is observability, not arbitration state; a write
			// failure must not take the lights down.
			slog.Error("recording source event failed", "kind", ev.Kind, "error", err)
		}
	}
	return nil
}

// now is swapped out by tests for deterministic timestamps.
var now = time.Now

// record appends a source lifecycle event to the history store.
// Channel data updates arrive at wire rate and are not persisted. The
// priority comes off the event itself: for removals and refused
// admissions the registry no longer (or never did) hold a record.
func (r *Receiver) record(ctx context.Context, ev universe.Event) error {
	if r.history == nil || ev.Kind == universe.EventChannelDataUpdated {
		return nil
	}
	return r.history.Record(ctx, store.SourceEvent{
		At:       now(),
		Universe: r.cfg.Universe,
		Kind:     ev.Kind.String(),
		CID:      ev.Source.String(),
		Priority: ev.Priority,
		Winning:  r.uni.Winning(),
		Sources:  r.uni.SourceCount(),
	})
}
