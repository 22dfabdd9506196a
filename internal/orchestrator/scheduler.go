package orchestrator

import (
	"sync"
	"time"
)

// Timer is a cancellable one-shot timer
type Timer interface {
	Stop() bool
}

// Scheduler abstracts time so the state machine can run against a fake
// clock in tests. All orchestrator timing goes through it.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// RealScheduler implements Scheduler on the system clock
type RealScheduler struct{}

// NewRealScheduler creates a scheduler backed by the system clock
func NewRealScheduler() *RealScheduler { return &RealScheduler{} }

// Now returns the current time
func (RealScheduler) Now() time.Time { return time.Now() }

// AfterFunc schedules fn after d
func (RealScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// FakeScheduler is a deterministic scheduler for tests. Time only moves
// when Advance is called; due timers fire synchronously.
type FakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	scheduler *FakeScheduler
	deadline  time.Time
	fn        func()
	stopped   bool
	fired     bool
}

// NewFakeScheduler creates a fake scheduler starting at the given time
func NewFakeScheduler(start time.Time) *FakeScheduler {
	return &FakeScheduler{now: start}
}

// Now returns the fake current time
func (s *FakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// AfterFunc registers a timer against the fake clock
func (s *FakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &fakeTimer{
		scheduler: s,
		deadline:  s.now.Add(d),
		fn:        fn,
	}
	s.timers = append(s.timers, t)
	return t
}

// Stop cancels the timer; it reports whether the timer had not yet fired
func (t *fakeTimer) Stop() bool {
	t.scheduler.mu.Lock()
	defer t.scheduler.mu.Unlock()

	wasActive := !t.fired && !t.stopped
	t.stopped = true
	return wasActive
}

// Advance moves the fake clock forward and fires every timer that comes
// due, in deadline order.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var next *fakeTimer
		for _, t := range s.timers {
			if t.stopped || t.fired || t.deadline.After(target) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		next.fired = true
		if next.deadline.After(s.now) {
			s.now = next.deadline
		}
		fn := next.fn
		s.mu.Unlock()

		fn()
	}
}

// PendingTimers reports how many timers are armed and unfired
func (s *FakeScheduler) PendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			count++
		}
	}
	return count
}
