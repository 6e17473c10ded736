package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_MinimumOneWorker(t *testing.T) {
	p := NewPool(0)
	assert.Equal(t, 1, p.MaxWorkers())
	assert.Equal(t, DefaultTaskTimeout, p.taskTimeout)

	p = NewPool(4, WithTaskTimeout(time.Second))
	assert.Equal(t, 4, p.MaxWorkers())
	assert.Equal(t, time.Second, p.taskTimeout)
}

func TestExecuteTasks_ErrorsByIndex(t *testing.T) {
	p := NewPool(3)
	defer p.Stop()

	boom := errors.New("boom")
	tasks := []Task{
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { time.Sleep(5 * time.Millisecond); return boom },
		func(ctx context.Context) error { return nil },
	}

	errs := p.ExecuteTasks(context.Background(), tasks)
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.Equal(t, boom, errs[1])
	assert.NoError(t, errs[2])

	m := p.GetMetrics()
	assert.Equal(t, int64(3), m.TotalTasks)
	assert.Equal(t, int64(2), m.CompletedTasks)
	assert.Equal(t, int64(1), m.FailedTasks)
}

func TestExecuteTasks_BoundedConcurrency(t *testing.T) {
	p := NewPool(2)
	defer p.Stop()

	var running, peak atomic.Int32
	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return nil
		}
	}

	errs := p.ExecuteTasks(context.Background(), tasks)
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.LessOrEqual(t, p.GetMetrics().PeakWorkers, int64(2))
}

func TestExecuteTasks_CancelledContext(t *testing.T) {
	p := NewPool(1)
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	errs := p.ExecuteTasks(ctx, []Task{
		func(ctx context.Context) error { ran.Add(1); return nil },
	})

	assert.ErrorIs(t, errs[0], context.Canceled)
	assert.Equal(t, int32(0), ran.Load())
}

func TestExecuteTasks_TaskTimeout(t *testing.T) {
	p := NewPool(1, WithTaskTimeout(10*time.Millisecond))
	defer p.Stop()

	errs := p.ExecuteTasks(context.Background(), []Task{
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	assert.ErrorIs(t, errs[0], context.DeadlineExceeded)
}

func TestExecuteTasks_PanicBecomesError(t *testing.T) {
	p := NewPool(1)
	defer p.Stop()

	errs := p.ExecuteTasks(context.Background(), []Task{
		func(ctx context.Context) error { panic("bad deployment") },
		func(ctx context.Context) error { return nil },
	})
	require.Error(t, errs[0])
	assert.Contains(t, errs[0].Error(), "bad deployment")
	assert.NoError(t, errs[1])
}

func TestExecuteTasks_AfterStop(t *testing.T) {
	p := NewPool(1)
	p.Start()
	p.Stop()
	p.Stop()

	errs := p.ExecuteTasks(context.Background(), []Task{func(ctx context.Context) error { return nil }})
	assert.EqualError(t, errs[0], "worker pool is stopped")
}

func TestExecuteTasks_Empty(t *testing.T) {
	p := NewPool(1)
	defer p.Stop()
	assert.Empty(t, p.ExecuteTasks(context.Background(), nil))
}
