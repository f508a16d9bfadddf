package ids

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicIDs(t *testing.T) {
	g := NewDeterministic()
	assert.Equal(t, "00000001-0000-4000-8000-000000000001", g.ID())
	assert.Equal(t, "00000002-0000-4000-8000-000000000002", g.ID())

	g.Reset()
	assert.Equal(t, "00000001-0000-4000-8000-000000000001", g.ID())
}

func TestDeterministicIDsAreValidUUIDs(t *testing.T) {
	g := NewDeterministic()
	for i := 0; i < 20; i++ {
		_, err := uuid.Parse(g.ID())
		require.NoError(t, err)
	}
}

func TestDeterministicTime(t *testing.T) {
	g := NewDeterministic()
	first := g.Now()
	second := g.Now()
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC), first)
	assert.Equal(t, time.Second, second.Sub(first))
}

func TestRandomIDsAreUnique(t *testing.T) {
	g := New()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.ID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestDeterministicConcurrentUse(t *testing.T) {
	g := NewDeterministic()
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.ID()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}
