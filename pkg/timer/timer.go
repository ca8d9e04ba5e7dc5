// Package timer provides cancellable delayed tasks keyed by (owner, purpose).
//
// Scheduling a task under a key that already has one pending replaces it:
// the previous task is stopped and will never fire, so inactivity timeouts
// refresh instead of stacking.
package timer

import (
	"sync"
	"time"
)

// Key identifies a delayed task.
type Key struct {
	Owner   string
	Purpose string
}

func (k Key) String() string {
	return k.Owner + "/" + k.Purpose
}

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Scheduler runs delayed tasks, at most one per key.
type Scheduler struct {
	mu      sync.Mutex
	entries map[Key]*entry
	gen     uint64
	stopped bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{entries: make(map[Key]*entry)}
}

// Schedule runs fn after d, replacing any task pending under key.
// It reports false if the scheduler was stopped.
func (s *Scheduler) Schedule(key Key, d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if prev, ok := s.entries[key]; ok {
		prev.timer.Stop()
	}

	s.gen++
	gen := s.gen
	e := &entry{gen: gen}
	e.timer = time.AfterFunc(d, func() {
		// A replaced timer may already be running when Stop is called; the
		// generation check keeps it from firing.
		s.mu.Lock()
		cur, ok := s.entries[key]
		if !ok || cur.gen != gen {
			s.mu.Unlock()
			return
		}
		delete(s.entries, key)
		s.mu.Unlock()
		fn()
	})
	s.entries[key] = e
	return true
}

// Cancel stops the task pending under key. It reports whether one was pending.
func (s *Scheduler) Cancel(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return true
}

// CancelOwner stops every task pending for an owner.
func (s *Scheduler) CancelOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if k.Owner == owner {
			e.timer.Stop()
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Pending returns the number of scheduled tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Has reports whether a task is pending under key.
func (s *Scheduler) Has(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Stop cancels every pending task and rejects new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, k)
	}
	s.stopped = true
}
