package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator yields "<prefix>-<n>" identifiers. Scripted identifiers queued
// with Queue are handed out first, which lets tests pin the id of a specific
// session or event.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
	queued  []string
}

// NewIDGenerator returns a generator for prefix, "id" when empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next queued identifier or the next sequential one.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queued) > 0 {
		id := g.queued[0]
		g.queued = g.queued[1:]
		return id
	}
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// NextFunc returns Next for injection. A nil generator yields empty ids.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Queue appends identifiers to return before resuming the sequence.
func (g *IDGenerator) Queue(ids ...string) {
	g.mu.Lock()
	g.queued = append(g.queued, ids...)
	g.mu.Unlock()
}

// Reset clears queued identifiers and restarts the sequence under prefix.
func (g *IDGenerator) Reset(prefix string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prefix != "" {
		g.prefix = prefix
	}
	g.counter = 0
	g.queued = nil
}
