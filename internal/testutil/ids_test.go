package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs(t *testing.T) {
	ids := NewSequentialIDs("run")
	assert.Equal(t, "run-0001", ids.Next())
	assert.Equal(t, "run-0002", ids.Next())

	assert.Equal(t, "batch-0001", NewSequentialIDs("").Next())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	ids := NewSequentialIDs("")
	const numGoroutines = 100

	var wg sync.WaitGroup
	out := make(chan string, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- ids.Next()
		}()
	}
	wg.Wait()
	close(out)

	seen := make(map[string]bool)
	for id := range out {
		require.False(t, seen[id], "id %s generated twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, numGoroutines)
}
