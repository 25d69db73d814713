package testfixtures

import (
	"strconv"
	"sync"
)

// IDGenerator hands out predictable identifiers with one numbered sequence
// per kind: "rdv-1", "rdv-2", "member-1".
type IDGenerator struct {
	mu   sync.Mutex
	seqs map[string]int
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{seqs: make(map[string]int)}
}

// Next returns the next identifier of kind.
func (g *IDGenerator) Next(kind string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seqs[kind]++
	return kind + "-" + strconv.Itoa(g.seqs[kind])
}

// For binds Next to kind. A nil generator yields empty identifiers.
func (g *IDGenerator) For(kind string) func() string {
	if g == nil {
		return func() string { return "" }
	}
	return func() string { return g.Next(kind) }
}

// Issued reports how many identifiers of kind were handed out.
func (g *IDGenerator) Issued(kind string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seqs[kind]
}
