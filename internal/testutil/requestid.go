package testutil

import (
	"fmt"
	"sync"
)

// FixedRequestIDs generates a predictable sequence of request ids.
//
// With a prefix of "req" it yields "req-1", "req-2", ... This keeps log
// output and golden traces byte-identical across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedRequestIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedRequestIDs creates a generator. An empty prefix becomes "test-req".
func NewFixedRequestIDs(prefix string) *FixedRequestIDs {
	if prefix == "" {
		prefix = "test-req"
	}
	return &FixedRequestIDs{prefix: prefix}
}

// Generate returns the next id.
//
// Implements inventory.RequestIDGenerator.
func (g *FixedRequestIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *FixedRequestIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
