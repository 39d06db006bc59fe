package apply

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence_NewSequence(t *testing.T) {
	s := NewSequence()
	assert.Equal(t, int64(0), s.Current(), "new sequence should start at 0")
	assert.Equal(t, int64(1), s.Next())
}

func TestSequence_NewSequenceAt(t *testing.T) {
	s := NewSequenceAt(100)
	assert.Equal(t, int64(100), s.Current())
	assert.Equal(t, int64(101), s.Next())
}

func TestSequence_ThreadSafe(t *testing.T) {
	s := NewSequence()
	const goroutines = 100
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	ids := make(chan int64, goroutines*callsPerGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				ids <- s.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %d generated twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines*callsPerGoroutine)
	assert.Equal(t, int64(goroutines*callsPerGoroutine), s.Current())
}
