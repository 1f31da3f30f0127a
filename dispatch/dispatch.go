// Package dispatch implements the host event queue used for deferred,
// fire-and-forget work: tasks posted now run on a later tick, after the
// operation that posted them has returned.
package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
)

// Task is a unit of deferred work.
type Task func(ctx context.Context)

// Logger receives panics recovered from tasks.
type Logger interface {
	Error(format string, a ...interface{})
}

type Queue struct {
	logger Logger

	mu      sync.Mutex
	pending []Task
	wake    chan struct{}
}

func New(logger Logger) *Queue {
	return &Queue{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Post enqueues task without running it. It never blocks on execution.
func (q *Queue) Post(task Task) {
	if task == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, task)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of tasks waiting for the next tick.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// RunPending runs the tasks queued before the call and returns how many ran.
// Tasks posted while running wait for the next tick.
func (q *Queue) RunPending(ctx context.Context) int {
	q.mu.Lock()
	tasks := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, task := range tasks {
		q.run(ctx, task)
	}
	return len(tasks)
}

// Run ticks whenever tasks are posted until ctx is done. Tasks still
// pending at that point are left in the queue.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.wake:
			q.RunPending(ctx)
		}
	}
}

func (q *Queue) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil && q.logger != nil {
			q.logger.Error("dispatch: task panic: %v\n%s", r, debug.Stack())
		}
	}()
	task(ctx)
}
