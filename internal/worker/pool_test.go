package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(context.Background(), 2, arbor.NewLogger())

	var current, peak int64
	for i := 0; i < 10; i++ {
		p.Dispatch("task", func(ctx context.Context) {
			n := atomic.AddInt64(&current, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		})
	}
	p.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestPoolDispatchAfterStopReturnsFalse(t *testing.T) {
	p := NewPool(context.Background(), 2, arbor.NewLogger())
	p.Stop()

	dispatched := p.Dispatch("task", func(ctx context.Context) {})
	assert.False(t, dispatched)
}

func TestPoolWaitBlocksUntilAllTasksComplete(t *testing.T) {
	p := NewPool(context.Background(), 4, arbor.NewLogger())
	var done int64

	for i := 0; i < 5; i++ {
		p.Dispatch("task", func(ctx context.Context) {
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&done, 1)
		})
	}
	p.Wait()

	assert.Equal(t, int64(5), atomic.LoadInt64(&done))
}

func TestPoolSurvivesTaskPanic(t *testing.T) {
	p := NewPool(context.Background(), 2, arbor.NewLogger())
	var ran int64

	p.Dispatch("panicky", func(ctx context.Context) {
		panic("boom")
	})
	p.Dispatch("fine", func(ctx context.Context) {
		atomic.AddInt64(&ran, 1)
	})
	p.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&ran))
}
