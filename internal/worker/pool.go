package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTaskTimeout bounds a single task when no timeout is configured
const DefaultTaskTimeout = 2 * time.Minute

// PoolMetrics provides metrics about the worker pool's performance
type PoolMetrics struct {
	TotalTasks         int64
	CompletedTasks     int64
	FailedTasks        int64
	PeakWorkers        int64
	AverageExecutionMs int64
}

// Task represents a unit of work to be executed
type Task func(ctx context.Context) error

// Option configures a Pool
type Option func(*Pool)

// WithTaskTimeout sets the per-task deadline. Zero disables it.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) {
		p.taskTimeout = d
	}
}

type job struct {
	ctx  context.Context
	task Task
	done func(error)
}

// Pool manages a fixed set of workers executing tasks concurrently
type Pool struct {
	maxWorkers  int
	taskTimeout time.Duration
	jobs        chan job
	wg          sync.WaitGroup
	started     int32
	stopping    int32

	mu             sync.Mutex
	totalTasks     int64
	completedTasks int64
	failedTasks    int64
	totalExecMs    int64
	activeWorkers  int64
	peakWorkers    int64
}

// NewPool creates a worker pool. maxWorkers below 1 is treated as 1.
func NewPool(maxWorkers int, opts ...Option) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	p := &Pool{
		maxWorkers:  maxWorkers,
		taskTimeout: DefaultTaskTimeout,
		jobs:        make(chan job, maxWorkers*2),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxWorkers returns the pool size
func (p *Pool) MaxWorkers() int {
	return p.maxWorkers
}

// Start launches the workers. Calling Start twice is a no-op.
func (p *Pool) Start() {
	if !atomic.CompareAndSwapInt32(&p.started, 0, 1) {
		return
	}
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop waits for queued tasks to finish and shuts the workers down
func (p *Pool) Stop() {
	if !atomic.CompareAndSwapInt32(&p.stopping, 0, 1) {
		return
	}
	close(p.jobs)
	p.wg.Wait()
}

// GetMetrics returns a snapshot of the pool counters
func (p *Pool) GetMetrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	finished := p.completedTasks + p.failedTasks
	if finished < 1 {
		finished = 1
	}
	return PoolMetrics{
		TotalTasks:         p.totalTasks,
		CompletedTasks:     p.completedTasks,
		FailedTasks:        p.failedTasks,
		PeakWorkers:        p.peakWorkers,
		AverageExecutionMs: p.totalExecMs / finished,
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	current := atomic.AddInt64(&p.activeWorkers, 1)
	defer atomic.AddInt64(&p.activeWorkers, -1)

	p.mu.Lock()
	if current > p.peakWorkers {
		p.peakWorkers = current
	}
	p.mu.Unlock()

	for j := range p.jobs {
		j.done(p.run(j))
	}
}

func (p *Pool) run(j job) (err error) {
	if err := j.ctx.Err(); err != nil {
		p.record(0, err)
		return err
	}

	ctx := j.ctx
	if p.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.taskTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
		p.record(time.Since(start).Milliseconds(), err)
	}()

	return j.task(ctx)
}

func (p *Pool) record(execMs int64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalExecMs += execMs
	if err != nil {
		p.failedTasks++
	} else {
		p.completedTasks++
	}
}

// ExecuteTasks runs tasks on the pool and waits for all of them. The
// returned slice holds each task's error at the task's index, so callers
// can merge results in submission order regardless of completion order.
// Tasks not yet started when ctx is done fail with ctx.Err().
func (p *Pool) ExecuteTasks(ctx context.Context, tasks []Task) []error {
	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs
	}
	if atomic.LoadInt32(&p.stopping) == 1 {
		for i := range errs {
			errs[i] = fmt.Errorf("worker pool is stopped")
		}
		return errs
	}
	p.Start()

	p.mu.Lock()
	p.totalTasks += int64(len(tasks))
	p.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		i := i
		p.jobs <- job{
			ctx:  ctx,
			task: task,
			done: func(err error) {
				errs[i] = err
				wg.Done()
			},
		}
	}
	wg.Wait()
	return errs
}
