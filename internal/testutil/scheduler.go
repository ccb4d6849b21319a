// Package testutil provides deterministic test doubles shared across
// package tests.
package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ManualScheduler is a deterministic universe.Scheduler for tests.
//
// No real timers are involved: tests assert on which alarms are armed
// and drive expiries themselves by calling Universe.Expire directly.
// The Fail* fields inject resource-fatal errors to exercise the
// engine's hard-failure paths.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex, matching the contract of the production scheduler.
type ManualScheduler struct {
	mu     sync.Mutex
	armed  map[uuid.UUID]time.Duration
	resets map[uuid.UUID]int

	FailSchedule error
	FailReset    error
	FailCancel   error
}

// NewManualScheduler creates a scheduler with no armed alarms.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		armed:  make(map[uuid.UUID]time.Duration),
		resets: make(map[uuid.UUID]int),
	}
}

// Schedule arms an alarm for id. Double-scheduling fails the same way
// the production scheduler does.
func (s *ManualScheduler) Schedule(id uuid.UUID, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSchedule != nil {
		return s.FailSchedule
	}
	if _, ok := s.armed[id]; ok {
		return fmt.Errorf("testutil: alarm already scheduled for %s", id)
	}
	s.armed[id] = d
	return nil
}

// Reset rearms an existing alarm.
func (s *ManualScheduler) Reset(id uuid.UUID, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReset != nil {
		return s.FailReset
	}
	if _, ok := s.armed[id]; !ok {
		return fmt.Errorf("testutil: reset of unknown alarm %s", id)
	}
	s.armed[id] = d
	s.resets[id]++
	return nil
}

// Cancel disarms an existing alarm.
func (s *ManualScheduler) Cancel(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCancel != nil {
		return s.FailCancel
	}
	if _, ok := s.armed[id]; !ok {
		return fmt.Errorf("testutil: cancel of unknown alarm %s", id)
	}
	delete(s.armed, id)
	return nil
}

// Armed reports whether an alarm is currently armed for id.
func (s *ManualScheduler) Armed(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.armed[id]
	return ok
}

// ArmedCount returns the number of armed alarms.
func (s *ManualScheduler) ArmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}

// Resets returns how many times the alarm for id has been rearmed.
func (s *ManualScheduler) Resets(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets[id]
}

// Deadline returns the duration the alarm for id was last armed with.
func (s *ManualScheduler) Deadline(id uuid.UUID) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.armed[id]
	return d, ok
}
