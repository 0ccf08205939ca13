package remote

import (
	"context"
	"log/slog"
	"time"
)

type task struct {
	op string
	fn func(ctx context.Context) error
}

// Queue runs remote calls in the background, one at a time and in the order
// they were dispatched. Calls are best-effort: failures are logged and never
// retried, and a call dispatched while the queue is full is dropped.
type Queue struct {
	tasks        chan task
	logger       *slog.Logger
	timeout      time.Duration
	drainTimeout time.Duration
}

func NewQueue(logger *slog.Logger, size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		tasks:        make(chan task, size),
		logger:       logger,
		timeout:      5 * time.Second,
		drainTimeout: 5 * time.Second,
	}
}

// Dispatch enqueues fn without waiting for it to run.
func (q *Queue) Dispatch(op string, fn func(ctx context.Context) error) {
	select {
	case q.tasks <- task{op: op, fn: fn}:
	default:
		q.logger.Warn("remote sync queue full, dropping call", "op", op)
	}
}

// Run processes queued calls until ctx is cancelled, then gives the calls
// still queued a short deadline to go out before returning.
func (q *Queue) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			q.drain()
			return nil
		}
		select {
		case <-ctx.Done():
		case t := <-q.tasks:
			q.run(ctx, t)
		}
	}
}

func (q *Queue) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), q.drainTimeout)
	defer cancel()

	for {
		if ctx.Err() != nil {
			if n := len(q.tasks); n > 0 {
				q.logger.Warn("remote sync queue not drained before shutdown", "dropped", n)
			}
			return
		}
		select {
		case t := <-q.tasks:
			q.run(ctx, t)
		default:
			return
		}
	}
}

func (q *Queue) run(ctx context.Context, t task) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	start := time.Now()
	if err := t.fn(ctx); err != nil {
		q.logger.Error("remote sync failed", "op", t.op, "error", err)
		return
	}
	q.logger.Debug("remote sync done", "op", t.op, "duration_ms", time.Since(start).Milliseconds())
}
