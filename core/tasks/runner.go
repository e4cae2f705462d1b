// Package tasks runs transfers on a fixed pool of workers and reports their
// lifecycle to a progress tracker.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/core/progress"
	"github.com/fbz-tec/chxport/internal/logger"
	"github.com/google/uuid"
)

// ErrShuttingDown is returned by Submit once Shutdown has begun.
var ErrShuttingDown = errors.New("transfer runner is shutting down")

// Func is one unit of transfer work. report may be called with the running
// row count; the returned count is stored on completion.
type Func func(ctx context.Context, report func(rows int)) (rows int, err error)

type job struct {
	id     string
	kind   string
	ctx    context.Context
	cancel context.CancelFunc
	fn     Func
}

// Runner executes submitted transfers on a bounded pool. Submissions beyond
// the queue capacity are rejected with errs.ErrQueueFull.
type Runner struct {
	tracker progress.Tracker
	queue   chan job
	wg      sync.WaitGroup

	base context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	closed  bool
	cancels map[string]context.CancelFunc
	active  int
}

// NewRunner starts workers goroutines reading from a queue of queueSize.
func NewRunner(tracker progress.Tracker, workers, queueSize int) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	base, stop := context.WithCancel(context.Background())
	r := &Runner{
		tracker: tracker,
		queue:   make(chan job, queueSize),
		base:    base,
		stop:    stop,
		cancels: make(map[string]context.CancelFunc),
	}

	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.worker()
	}
	logger.Debug("Transfer runner started (workers=%d, queue=%d)", workers, queueSize)
	return r
}

// Submit queues fn and returns its transfer id. The id is tracked as
// progress.Queued before Submit returns.
func (r *Runner) Submit(kind string, fn Func) (string, error) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(r.base)
	j := job{id: id, kind: kind, ctx: ctx, cancel: cancel, fn: fn}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		cancel()
		return "", ErrShuttingDown
	}

	r.tracker.Queue(id, kind)

	select {
	case r.queue <- j:
		r.cancels[id] = cancel
		logger.Debug("Queued %s transfer %s", kind, id)
		return id, nil
	default:
		r.tracker.Remove(id)
		cancel()
		return "", errs.ErrQueueFull
	}
}

// Cancel stops a queued or running transfer. It reports whether id was
// known to the runner.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
		logger.Debug("Cancellation requested for transfer %s", id)
	}
	return ok
}

// Stats returns the number of running and waiting transfers.
func (r *Runner) Stats() (running, queued int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, len(r.queue)
}

// Shutdown stops accepting work and waits for queued and running transfers.
// When ctx expires first, remaining transfers are cancelled and ctx's error
// is returned.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.stop()
		return nil
	case <-ctx.Done():
		r.stop()
		<-done
		return ctx.Err()
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for j := range r.queue {
		r.run(j)
	}
}

func (r *Runner) run(j job) {
	r.mu.Lock()
	r.active++
	r.mu.Unlock()

	defer func() {
		j.cancel()
		r.mu.Lock()
		r.active--
		delete(r.cancels, j.id)
		r.mu.Unlock()
	}()

	if err := j.ctx.Err(); err != nil {
		r.tracker.Fail(j.id, fmt.Errorf("transfer cancelled: %w", err))
		return
	}

	logger.Debug("Starting %s transfer %s", j.kind, j.id)

	rows, err := r.safeCall(j)
	if err != nil {
		logger.Error("Transfer %s (%s) failed: %v", j.id, j.kind, err)
		r.tracker.Fail(j.id, err)
		return
	}

	r.tracker.Complete(j.id, rows)
	logger.Debug("Transfer %s (%s) completed: %d rows", j.id, j.kind, rows)
}

func (r *Runner) safeCall(j job) (rows int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transfer panicked: %v", p)
		}
	}()
	report := func(n int) { r.tracker.SetRows(j.id, n) }
	return j.fn(j.ctx, report)
}
