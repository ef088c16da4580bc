package workers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunAllBoundsConcurrency(t *testing.T) {
	pool := NewPool(Config{Workers: 3}, zap.NewNop())

	var running, peak int32
	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = Task{
			ID: fmt.Sprintf("task-%d", i),
			Run: func(ctx context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			},
		}
	}

	results := pool.RunAll(context.Background(), tasks)
	require.Len(t, results, 10)
	for i, result := range results {
		assert.Equal(t, fmt.Sprintf("task-%d", i), result.TaskID)
		assert.True(t, result.Success)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))

	stats := pool.Statistics()
	assert.Equal(t, int64(10), stats.TasksSubmitted)
	assert.Equal(t, int64(10), stats.TasksCompleted)
	assert.Equal(t, int64(0), stats.ActiveWorkers)
	assert.LessOrEqual(t, stats.PeakActive, int64(3))
}

func TestRunAllIsolatesFailures(t *testing.T) {
	pool := NewPool(Config{Workers: 2}, zap.NewNop())
	boom := errors.New("boom")

	results := pool.RunAll(context.Background(), []Task{
		{ID: "ok", Run: func(ctx context.Context) error { return nil }},
		{ID: "err", Run: func(ctx context.Context) error { return boom }},
		{ID: "panic", Run: func(ctx context.Context) error { panic("bad") }},
		{ID: "nil"},
	})

	assert.True(t, results[0].Success)
	assert.ErrorIs(t, results[1].Error, boom)
	assert.Contains(t, results[2].Error.Error(), "panicked")
	assert.False(t, results[3].Success)
	assert.Equal(t, int64(3), pool.Statistics().TasksFailed)
}

func TestRunAllTaskTimeout(t *testing.T) {
	pool := NewPool(Config{Workers: 1, TaskTimeout: 20 * time.Millisecond}, zap.NewNop())

	results := pool.RunAll(context.Background(), []Task{{
		ID: "slow",
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}})

	assert.ErrorIs(t, results[0].Error, context.DeadlineExceeded)
}

func TestRunAllCancelledContext(t *testing.T) {
	pool := NewPool(Config{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called int32
	results := pool.RunAll(ctx, []Task{{ID: "a", Run: func(ctx context.Context) error {
		atomic.AddInt32(&called, 1)
		return nil
	}}})

	assert.ErrorIs(t, results[0].Error, context.Canceled)
	assert.Equal(t, int32(0), called)
	assert.Equal(t, DefaultConfig().Workers, pool.Workers())
}

func TestRunAllEmpty(t *testing.T) {
	assert.Empty(t, NewPool(DefaultConfig(), zap.NewNop()).RunAll(context.Background(), nil))
}
