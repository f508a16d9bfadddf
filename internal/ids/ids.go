// Package ids generates chart and message identifiers and timestamps.
// A deterministic generator produces reproducible values for tests while
// keeping the production UUID format.
package ids

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Generator hands out IDs and timestamps. The zero value is not usable; call
// New or NewDeterministic.
type Generator struct {
	deterministic bool

	mu        sync.Mutex
	idCounter uint64
	tick      int64
}

// New returns a generator backed by random UUIDs and the wall clock.
func New() *Generator {
	return &Generator{}
}

// NewDeterministic returns a generator yielding 00000001-0000-4000-8000-000000000001,
// 00000002-..., and times one second apart starting at 2025-01-01T00:00:00Z.
func NewDeterministic() *Generator {
	return &Generator{deterministic: true}
}

// ID returns a new identifier.
func (g *Generator) ID() string {
	if !g.deterministic {
		return uuid.New().String()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idCounter++
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", g.idCounter, g.idCounter)
}

// Now returns the current time.
func (g *Generator) Now() time.Time {
	if !g.deterministic {
		return time.Now()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tick++
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(g.tick) * time.Second)
}

// Reset rewinds a deterministic generator.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idCounter = 0
	g.tick = 0
}
