package scheduler

import (
	"sync"
	"time"
)

// TimerScheduler runs each callback once on its own goroutine after the
// requested delay. Stop disarms everything still pending.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	nextKey uint64
	stopped bool
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[uint64]*time.Timer)}
}

func (s *TimerScheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	key := s.nextKey
	s.nextKey++
	s.timers[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
}

// Pending reports how many timers have not fired yet.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
