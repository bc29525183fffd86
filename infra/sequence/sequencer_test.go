package sequence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIsMonotonic(t *testing.T) {
	s := New(10)
	assert.Equal(t, uint64(11), s.Next())
	assert.Equal(t, uint64(12), s.Next())
	assert.Equal(t, uint64(12), s.Current())
}

func TestObserve(t *testing.T) {
	s := New(0)
	s.Observe(7)
	assert.Equal(t, uint64(7), s.Current())
	s.Observe(3)
	assert.Equal(t, uint64(7), s.Current())
	assert.Equal(t, uint64(8), s.Next())
}

func TestConcurrentNextUnique(t *testing.T) {
	s := New(0)
	const workers, per = 8, 500

	var mu sync.Mutex
	seen := make(map[uint64]struct{}, workers*per)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				v := s.Next()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*per)
	assert.Equal(t, uint64(workers*per), s.Current())
}
