package testutil

import (
	"fmt"
	"sync"
)

// SequenceRunIDs generates "run-1", "run-2", ... in order.
//
// Unlike the production UUIDv7 generator, sequential IDs are predictable,
// which golden-file comparison and log assertions require.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceRunIDs struct {
	mu sync.Mutex
	n  int
}

// Generate implements the reconciler's RunIDGenerator interface.
func (g *SequenceRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("run-%d", g.n)
}

// Reset restarts the sequence. After Reset, the next ID is "run-1".
func (g *SequenceRunIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
