// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"strconv"
	"sync"
)

// SequentialIDs hands out invocation ids prefix-1, prefix-2, ... and never
// runs out, unlike compiler.FixedGenerator. It satisfies
// compiler.IDGenerator and is safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSequentialIDs creates a generator whose first id is prefix-1.
func NewSequentialIDs(prefix string) *SequentialIDs {
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.prefix + "-" + strconv.FormatInt(g.n, 10)
}

// Issued returns how many ids have been handed out.
func (g *SequentialIDs) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset starts the sequence over. The next id is prefix-1 again.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
