package crawler

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisitedSet_TryInsert(t *testing.T) {
	set := NewVisitedSet()

	assert.True(t, set.TryInsert("hello"))
	assert.False(t, set.TryInsert("hello"))
	assert.True(t, set.TryInsert("hello.dev"), "output-suffixed paths are distinct identities")
	assert.Equal(t, 2, set.Len())
}

func TestVisitedSet_ConcurrentInsertWinsOnce(t *testing.T) {
	set := NewVisitedSet()

	const racers = 32
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if set.TryInsert("contested") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
