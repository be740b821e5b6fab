package crawler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DrainsAllSubmissions(t *testing.T) {
	pool := NewPool(4)

	var (
		mu        sync.Mutex
		processed []string
	)

	for _, path := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		pool.Submit(path)
	}
	pool.FinderDone()

	pool.Run(context.Background(), func(ctx context.Context, worker int, path string) {
		mu.Lock()
		processed = append(processed, path)
		mu.Unlock()
	})

	assert.Len(t, processed, 7)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e", "f", "g"}, processed)
}

func TestPool_LocalSubmissionsFanOut(t *testing.T) {
	// One seed unit spawns a tree of children from inside the workers; the
	// pool must not drain before the whole tree is processed.
	pool := NewPool(3)

	const depth = 6
	var count sync.Map

	pool.Submit("1")
	pool.FinderDone()

	pool.Run(context.Background(), func(ctx context.Context, worker int, path string) {
		count.Store(path, true)
		if len(path) < depth {
			pool.SubmitLocal(worker, path+"L")
			pool.SubmitLocal(worker, path+"R")
		}
	})

	total := 0
	count.Range(func(_, _ any) bool {
		total++
		return true
	})
	// A full binary tree of the given depth.
	assert.Equal(t, 1<<depth-1, total)
}

func TestPool_SingleWorker(t *testing.T) {
	pool := NewPool(1)

	var order []string
	pool.Submit("root")
	pool.FinderDone()

	pool.Run(context.Background(), func(ctx context.Context, worker int, path string) {
		order = append(order, path)
		if path == "root" {
			pool.SubmitLocal(worker, "child")
		}
	})

	assert.Equal(t, []string{"root", "child"}, order)
}

func TestPool_ContextCancellationStops(t *testing.T) {
	pool := NewPool(2)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var once sync.Once

	// The finder never finishes, so only cancellation can end the run.
	pool.Submit("first")

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Run(ctx, func(ctx context.Context, worker int, path string) {
			once.Do(func() { close(started) })
		})
	}()

	<-started
	cancel()
	<-done

	require.NotNil(t, ctx.Err())
}

func TestPool_DefaultsToCPUs(t *testing.T) {
	pool := NewPool(0)
	assert.Greater(t, pool.Workers(), 0)
}
