package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidWorker(t *testing.T) {
	_, err := New(-1)
	assert.Error(t, err)
	_, err = New(maxWorkerID + 1)
	assert.Error(t, err)
}

func TestGenerateIncreasing(t *testing.T) {
	g, err := New(7)
	require.NoError(t, err)

	prev := g.Generate()
	for i := 0; i < 10000; i++ {
		id := g.Generate()
		require.Greater(t, id, prev)
		prev = id
	}
	assert.EqualValues(t, 7, WorkerID(prev))
}

func TestNextIDConcurrentUnique(t *testing.T) {
	require.NoError(t, Init(3))

	const workers, perWorker = 8, 1000
	ids := make(chan int64, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- NextID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
		assert.EqualValues(t, 3, WorkerID(id))
	}
}
