package universe

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strandlight/sacnd/internal/protocol"
)

// Scheduler is the liveness-timer collaborator the engine drives.
//
// One alarm exists per registered source. Expiry is delivered out of
// band (the production implementation in internal/timer exposes a
// channel of identities); the run loop feeds each expiry back into
// Expire. Any error from the scheduler is resource-fatal: the engine
// propagates it unmodified rather than risk a timer/registry mismatch.
type Scheduler interface {
	Schedule(id uuid.UUID, d time.Duration) error
	Reset(id uuid.UUID, d time.Duration) error
	Cancel(id uuid.UUID) error
}

// Config carries the session parameters for one universe.
type Config struct {
	// Universe is the E1.31 universe number this engine arbitrates.
	Universe uint16

	// MaxSources is the admission ceiling for concurrently registered
	// sources.
	MaxSources int

	// IgnorePreview admits preview-flagged packets into arbitration.
	// When false, preview packets are dropped.
	IgnorePreview bool

	// DefaultPriority seeds the priority tracker so an empty universe
	// has a defined winning priority. Zero means protocol.DefaultPriority.
	DefaultPriority uint8

	// Timeout is the per-source data-loss timeout. Zero means
	// protocol.DataLossTimeout.
	Timeout time.Duration
}

// Universe is the per-universe session engine.
//
// Not safe for concurrent use: all triggers must be delivered from a
// single goroutine (see package doc).
type Universe struct {
	cfg     Config
	sched   Scheduler
	prio    *Tracker
	sources map[uuid.UUID]*source
	data    [protocol.MaxChannels]byte
	version uint64
	events  []Event
}

// New creates an engine for cfg.Universe using sched for liveness timers.
func New(cfg Config, sched Scheduler) *Universe {
	if cfg.DefaultPriority == 0 {
		cfg.DefaultPriority = protocol.DefaultPriority
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = protocol.DataLossTimeout
	}
	return &Universe{
		cfg:     cfg,
		sched:   sched,
		prio:    NewTracker(cfg.DefaultPriority),
		sources: make(map[uuid.UUID]*source),
	}
}

// Apply processes one decoded packet and queues the resulting events.
//
// Protocol-recoverable conditions (wrong universe, preview, stale
// replay, unknown-and-terminated) are swallowed: no state change beyond
// the prescribed event, nil error. A non-nil error means the scheduler
// failed and the session is no longer trustworthy; the caller must tear
// it down.
func (u *Universe) Apply(pkt *protocol.Packet) error {
	if pkt.Universe != u.cfg.Universe {
		return nil
	}
	if pkt.Preview() && !u.cfg.IgnorePreview {
		return nil
	}

	id := pkt.CID
	terminated := pkt.Terminated()

	src, known := u.sources[id]
	if known {
		if protocol.Stale(src.lastDataSeq, pkt.Sequence) {
			return nil
		}
		if terminated {
			// Eviction cancels the timer before the record goes away,
			// so expiry can never race this removal.
			return u.remove(src)
		}
		if err := u.sched.Reset(id, u.cfg.Timeout); err != nil {
			return fmt.Errorf("reset liveness timer for %s: %w", id, err)
		}
		if pkt.Priority != src.priority {
			u.prio.Remove(src.priority)
			u.prio.Add(pkt.Priority)
			src.priority = pkt.Priority
		}
	} else {
		if len(u.sources) >= u.cfg.MaxSources {
			u.emit(EventSourceLimitReached, id, pkt.Priority)
			return nil
		}
		if terminated {
			// A source cannot be admitted and terminated in the same
			// step. Deliberately invisible: no add/remove event pair.
			return nil
		}
		src = &source{id: id, priority: pkt.Priority, lastDataSeq: pkt.Sequence}
		if err := u.sched.Schedule(id, u.cfg.Timeout); err != nil {
			return fmt.Errorf("schedule liveness timer for %s: %w", id, err)
		}
		u.prio.Add(src.priority)
		u.sources[id] = src
		u.emit(EventSourceAdded, id, src.priority)
	}

	// Arbitration gate: at or above the winning priority (LTP tie-break
	// at equality), carrying channel data behind a zero start code.
	// Sync-only and alternate start code packets never touch the buffer.
	if pkt.Priority >= u.prio.Winning() && pkt.HasChannelData() {
		copy(u.data[:], pkt.ChannelData())
		u.version++
		u.emit(EventChannelDataUpdated, id, src.priority)
	}

	// Sequence state reflects only successfully processed packets.
	src.lastDataSeq = pkt.Sequence
	return nil
}

// Expire handles a liveness-timer expiry for id. It is the only removal
// path not triggered by an inbound packet. An expiry for an identity no
// longer registered is ignored; by construction it cannot happen, since
// every other removal cancels the timer first.
func (u *Universe) Expire(id uuid.UUID) {
	src, ok := u.sources[id]
	if !ok {
		return
	}
	u.prio.Remove(src.priority)
	delete(u.sources, id)
	u.emit(EventSourceRemoved, id, src.priority)
}

// remove evicts a registered source on stream termination.
func (u *Universe) remove(src *source) error {
	if err := u.sched.Cancel(src.id); err != nil {
		return fmt.Errorf("cancel liveness timer for %s: %w", src.id, err)
	}
	u.prio.Remove(src.priority)
	delete(u.sources, src.id)
	u.emit(EventSourceRemoved, src.id, src.priority)
	return nil
}

func (u *Universe) emit(kind EventKind, id uuid.UUID, priority uint8) {
	u.events = append(u.events, Event{Kind: kind, Source: id, Priority: priority})
}

// Drain returns the events queued since the last call, in the order
// they were generated, and clears the queue. Called once per reactive
// cycle by the run loop.
func (u *Universe) Drain() []Event {
	if len(u.events) == 0 {
		return nil
	}
	out := u.events
	u.events = nil
	return out
}

// Channels returns a snapshot of the 512-slot channel buffer.
func (u *Universe) Channels() [protocol.MaxChannels]byte {
	return u.data
}

// Version returns the monotonically increasing buffer update counter.
func (u *Universe) Version() uint64 {
	return u.version
}

// Winning returns the current winning priority.
func (u *Universe) Winning() uint8 {
	return u.prio.Winning()
}

// SourceCount returns the number of sources at the winning priority.
func (u *Universe) SourceCount() int {
	return u.prio.SourceCount()
}

// TotalSources returns the number of registered sources.
func (u *Universe) TotalSources() int {
	return len(u.sources)
}

// Registered reports whether id currently holds a registry record.
func (u *Universe) Registered(id uuid.UUID) bool {
	_, ok := u.sources[id]
	return ok
}

// SourcePriority returns the stored priority of a registered source.
func (u *Universe) SourcePriority(id uuid.UUID) (uint8, bool) {
	src, ok := u.sources[id]
	if !ok {
		return 0, false
	}
	return src.priority, true
}
