package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable batch ids: "<prefix>-0001",
// "<prefix>-0002", ...
//
// Replaces the UUIDv7 generator in tests so that audit logs can be compared
// against golden files.
//
// Thread-safety: Next is safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix means "batch".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "batch"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next id.
func (g *SequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
