// Package timer provides the production liveness-timer scheduler
// consumed by the universe engine.
//
// One time.Timer is armed per registered source. Expiries are delivered
// on a channel of generation-tagged Expiry tokens so the run loop can
// multiplex them with inbound packets; the engine itself never blocks
// on this package. This package is the concurrency boundary: timer
// callbacks run on runtime goroutines, so all handle state is
// mutex-guarded here, keeping the engine lock-free.
//
// EXPIRY HANDSHAKE: between a timer firing and the run loop draining
// the notification, a packet from the same source may be processed and
// Reset the alarm - the source proved liveness and must not be evicted.
// fire therefore keeps the entry and tags the notification with the
// entry's generation; the run loop calls Confirm before acting, and
// Confirm rejects the token when Reset or Cancel has since superseded
// it. Only a confirmed expiry removes the entry.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by all operations after Close.
var ErrClosed = errors.New("timer: scheduler closed")

// Expiry is one alarm notification. Gen identifies the arming that
// fired; Confirm uses it to detect notifications superseded while
// queued.
type Expiry struct {
	ID  uuid.UUID
	Gen uint64
}

// Scheduler implements universe.Scheduler with real timers.
type Scheduler struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	gen     uint64 // last generation handed out, never reused
	closed  bool

	expired chan Expiry
	done    chan struct{}
}

// entry tracks one armed alarm. Every arming (Schedule or Reset) takes
// a fresh scheduler-wide generation, so a notification from a
// superseded arming can be recognized and dropped: a timer that fired
// concurrently with a Reset must not evict a source that just proved
// liveness, and a token from before a Cancel/re-admission cycle must
// not evict the re-admitted source.
type entry struct {
	timer *time.Timer
	gen   uint64
}

// New creates an idle scheduler.
func New() *Scheduler {
	return &Scheduler{
		entries: make(map[uuid.UUID]*entry),
		expired: make(chan Expiry, 64),
		done:    make(chan struct{}),
	}
}

// Expired returns the channel carrying expiry notifications. Each token
// must be passed to Confirm before the source is evicted.
func (s *Scheduler) Expired() <-chan Expiry {
	return s.expired
}

// Confirm reports whether e still stands: the alarm exists and has not
// been rearmed or cancelled since the notification was queued. A
// confirmed expiry consumes the alarm; a stale token is dropped.
func (s *Scheduler) Confirm(e Expiry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	ent, ok := s.entries[e.ID]
	if !ok || ent.gen != e.Gen {
		return false
	}
	delete(s.entries, e.ID)
	return true
}

// Schedule arms a new alarm for id. Scheduling an identity that already
// holds an alarm is an error: the engine owns exactly one timer per
// registered source.
func (s *Scheduler) Schedule(id uuid.UUID, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.entries[id]; ok {
		return fmt.Errorf("timer: alarm already scheduled for %s", id)
	}
	s.gen++
	gen := s.gen
	e := &entry{gen: gen}
	e.timer = time.AfterFunc(d, func() { s.fire(id, gen) })
	s.entries[id] = e
	return nil
}

// Reset rearms the alarm for id to expire d from now. Rearming bumps
// the generation, invalidating any expiry notification still in flight.
func (s *Scheduler) Reset(id uuid.UUID, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("timer: reset of unknown alarm %s", id)
	}
	e.timer.Stop()
	s.gen++
	gen := s.gen
	e.gen = gen
	e.timer = time.AfterFunc(d, func() { s.fire(id, gen) })
	return nil
}

// Cancel disarms and forgets the alarm for id.
func (s *Scheduler) Cancel(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("timer: cancel of unknown alarm %s", id)
	}
	e.timer.Stop()
	delete(s.entries, id)
	return nil
}

// Close disarms every alarm and wakes any callback blocked on delivery.
// The expired channel is left open so a draining run loop never reads
// from a closed channel.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, id)
	}
	s.mu.Unlock()
	close(s.done)
}

// fire runs on the timer goroutine. The entry stays in place - a packet
// processed before the run loop drains this notification must still be
// able to Reset the alarm - and delivery happens outside the lock so a
// full channel never stalls Schedule/Reset/Cancel.
func (s *Scheduler) fire(id uuid.UUID, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.gen != gen || s.closed {
		// Cancelled, reset, or shut down after this callback was queued.
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	select {
	case s.expired <- Expiry{ID: id, Gen: gen}:
	case <-s.done:
	}
}
