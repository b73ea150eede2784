package poll

import (
	"sync"
	"time"
)

// Scheduler owns a single repeating timer. Start arms a one-shot timer; when
// it fires the scheduler clears its own handle, runs the action, then
// immediately re-arms — so there is at most one live timer at any instant,
// and rearming happens only after the action was dispatched. Stop is
// idempotent and guarantees no action runs after it returns.
type Scheduler struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool

	// after is the timer constructor, injectable for deterministic tests.
	after func(d time.Duration, fn func()) *time.Timer
}

// NewScheduler returns an unarmed Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{after: time.AfterFunc}
}

// Start arms the repeating timer. A zero or negative interval is a no-op.
// Starting while armed cancels the prior timer first, so the one-handle
// invariant holds across restarts.
func (s *Scheduler) Start(interval time.Duration, action func()) {
	if interval <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
	s.cancelLocked()
	s.armLocked(interval, action)
}

// Stop cancels the pending timer, if any. Safe to call repeatedly and safe
// to call from inside the action.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancelLocked()
}

// Armed reports whether a timer is currently pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) armLocked(interval time.Duration, action func()) {
	s.timer = s.after(interval, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		// Clear our own handle before running the action so the action can
		// observe an unarmed scheduler (and may itself call Stop).
		s.timer = nil
		s.mu.Unlock()

		action()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped || s.timer != nil {
			return
		}
		s.armLocked(interval, action)
	})
}

func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
