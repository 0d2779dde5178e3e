package testutil

import (
	"sync"
	"time"
)

// VirtualSleeper stands in for time.Sleep in poll loops.
//
// Sleep returns immediately and advances a virtual clock, so a test can
// exercise a full 100-attempt poll budget without waiting ten seconds and
// still assert on the total time the loop would have slept.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type VirtualSleeper struct {
	mu      sync.Mutex
	elapsed time.Duration
	calls   int
}

// NewVirtualSleeper creates a sleeper with a zero clock.
func NewVirtualSleeper() *VirtualSleeper {
	return &VirtualSleeper{}
}

// Sleep records d without blocking.
func (s *VirtualSleeper) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed += d
	s.calls++
}

// Elapsed returns the total virtual time slept.
func (s *VirtualSleeper) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Calls returns how many times Sleep was called.
func (s *VirtualSleeper) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Reset zeroes the clock.
func (s *VirtualSleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed = 0
	s.calls = 0
}
