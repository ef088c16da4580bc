package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config configures worker pool behavior
type Config struct {
	Workers     int           // Maximum tasks running at once
	TaskTimeout time.Duration // Per-task timeout, zero for none
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Workers:     3,
		TaskTimeout: 0,
	}
}

// Task represents a unit of work to be processed
type Task struct {
	ID  string
	Run func(ctx context.Context) error
}

// TaskResult represents the result of task execution
type TaskResult struct {
	TaskID    string
	Success   bool
	Error     error
	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// Pool runs groups of tasks with at most Workers of them in flight. Each
// RunAll call settles every task before it returns.
type Pool struct {
	config Config
	logger *zap.Logger

	// Statistics
	tasksSubmitted int64
	tasksCompleted int64
	tasksFailed    int64
	activeWorkers  int64
	peakActive     int64
}

// NewPool creates a new worker pool with the given configuration
func NewPool(config Config, logger *zap.Logger) *Pool {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	return &Pool{
		config: config,
		logger: logger,
	}
}

// Workers returns the concurrency limit
func (p *Pool) Workers() int {
	return p.config.Workers
}

// RunAll executes tasks and returns their results in input order. A
// cancelled context fails the tasks that have not started yet.
func (p *Pool) RunAll(ctx context.Context, tasks []Task) []TaskResult {
	results := make([]TaskResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	workers := p.config.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	queue := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			logger := p.logger.With(zap.String("worker", fmt.Sprintf("worker-%d", id)))
			for index := range queue {
				results[index] = p.processTask(ctx, logger, tasks[index])
			}
		}(i)
	}

	for i := range tasks {
		atomic.AddInt64(&p.tasksSubmitted, 1)
		queue <- i
	}
	close(queue)
	wg.Wait()

	return results
}

// processTask executes a single task with timeout handling
func (p *Pool) processTask(ctx context.Context, logger *zap.Logger, task Task) TaskResult {
	startTime := time.Now()

	active := atomic.AddInt64(&p.activeWorkers, 1)
	defer atomic.AddInt64(&p.activeWorkers, -1)
	for {
		peak := atomic.LoadInt64(&p.peakActive)
		if active <= peak || atomic.CompareAndSwapInt64(&p.peakActive, peak, active) {
			break
		}
	}

	taskCtx := ctx
	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	logger.Debug("Processing task", zap.String("task_id", task.ID))

	err := run(taskCtx, task)

	endTime := time.Now()
	duration := endTime.Sub(startTime)

	atomic.AddInt64(&p.tasksCompleted, 1)
	if err != nil {
		atomic.AddInt64(&p.tasksFailed, 1)
		logger.Warn("Task failed",
			zap.String("task_id", task.ID),
			zap.Error(err),
			zap.Duration("duration", duration))
	} else {
		logger.Debug("Task completed",
			zap.String("task_id", task.ID),
			zap.Duration("duration", duration))
	}

	return TaskResult{
		TaskID:    task.ID,
		Success:   err == nil,
		Error:     err,
		Duration:  duration,
		StartTime: startTime,
		EndTime:   endTime,
	}
}

// run calls the task, turning a panic into an error
func run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if task.Run == nil {
		return fmt.Errorf("task %s has no function", task.ID)
	}
	return task.Run(ctx)
}

// Statistics returns current worker pool statistics
func (p *Pool) Statistics() Stats {
	return Stats{
		Workers:        p.config.Workers,
		TasksSubmitted: atomic.LoadInt64(&p.tasksSubmitted),
		TasksCompleted: atomic.LoadInt64(&p.tasksCompleted),
		TasksFailed:    atomic.LoadInt64(&p.tasksFailed),
		ActiveWorkers:  atomic.LoadInt64(&p.activeWorkers),
		PeakActive:     atomic.LoadInt64(&p.peakActive),
	}
}

// Stats contains worker pool statistics
type Stats struct {
	Workers        int   `json:"workers"`
	TasksSubmitted int64 `json:"tasks_submitted"`
	TasksCompleted int64 `json:"tasks_completed"`
	TasksFailed    int64 `json:"tasks_failed"`
	ActiveWorkers  int64 `json:"active_workers"`
	PeakActive     int64 `json:"peak_active"`
}
