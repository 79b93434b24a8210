package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Processor handles one kind of task.
type Processor interface {
	Process(ctx context.Context, task *Task) error
}

// Worker drains the task queue on a tick, dispatching tasks to registered
// processors by kind. One task runs at a time; webhook acknowledgment never
// waits on any of this.
type Worker struct {
	queue      *Queue
	processors map[string]Processor
	tick       time.Duration
	backoff    time.Duration
	logger     *slog.Logger
}

// NewWorker creates a worker over q. tick is the poll interval, backoff the
// base delay between retry attempts.
func NewWorker(q *Queue, tick, backoff time.Duration, logger *slog.Logger) *Worker {
	if tick <= 0 {
		tick = 5 * time.Second
	}
	if backoff <= 0 {
		backoff = 30 * time.Second
	}
	return &Worker{
		queue:      q,
		processors: make(map[string]Processor),
		tick:       tick,
		backoff:    backoff,
		logger:     logger,
	}
}

// Register binds a processor to a task kind.
func (w *Worker) Register(kind string, p Processor) {
	w.processors[kind] = p
}

// Run drains the queue until ctx is done (blocking).
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	w.logger.Info("task worker starting", "tick", w.tick.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("task worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain processes runnable tasks until the queue is empty or ctx is done.
func (w *Worker) Drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.logger.Error("dequeue failed", "error", err)
			return
		}
		if task == nil {
			return
		}
		w.handle(ctx, task)
	}
}

func (w *Worker) handle(ctx context.Context, task *Task) {
	logger := w.logger.With("task_id", task.ID, "kind", task.Kind, "attempt", task.Attempt)

	proc, ok := w.processors[task.Kind]
	if !ok {
		// No processor will ever appear mid-run; kill the task now.
		logger.Error("no processor registered for task kind")
		if err := w.queue.Fail(ctx, task.ID, fmt.Errorf("unknown task kind %q", task.Kind), 0); err != nil {
			logger.Error("failed to fail task", "error", err)
		}
		return
	}

	if err := proc.Process(ctx, task); err != nil {
		logger.Warn("task failed", "error", err)
		if ferr := w.queue.Fail(ctx, task.ID, err, w.backoff); ferr != nil {
			logger.Error("failed to record task failure", "error", ferr)
		}
		return
	}

	if err := w.queue.Complete(ctx, task.ID); err != nil {
		logger.Error("failed to complete task", "error", err)
		return
	}
	logger.Debug("task completed")
}
