package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"ghostsync/cli/internal/logging"
)

// Job is one unit of work for an identity.
type Job func(ctx context.Context)

type identityQueue struct {
	jobs    []Job
	running bool
}

// Dispatcher runs each identity's jobs in arrival order on a dedicated
// goroutine so the receive loop never blocks on automation.
type Dispatcher struct {
	ctx    context.Context
	logger *slog.Logger

	mu     sync.Mutex
	queues map[int64]*identityQueue
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(ctx context.Context, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		ctx:    ctx,
		logger: logger.With("module", "dispatcher"),
		queues: map[int64]*identityQueue{},
	}
}

// Submit enqueues job for userID. It returns false after Close.
func (d *Dispatcher) Submit(userID int64, job Job) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	q, ok := d.queues[userID]
	if !ok {
		q = &identityQueue{}
		d.queues[userID] = q
	}
	q.jobs = append(q.jobs, job)
	if !q.running {
		q.running = true
		d.wg.Add(1)
		go d.drain(userID, q)
	}
	return true
}

// Pending reports how many jobs are queued or running for userID.
func (d *Dispatcher) Pending(userID int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[userID]
	if !ok {
		return 0
	}
	n := len(q.jobs)
	if q.running {
		n++
	}
	return n
}

func (d *Dispatcher) drain(userID int64, q *identityQueue) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(q.jobs) == 0 {
			q.running = false
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		d.mu.Unlock()
		d.run(userID, job)
	}
}

func (d *Dispatcher) run(userID int64, job Job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("job panic", "user_id", userID, "panic", logging.Redact(fmt.Sprint(r)), "stack", string(debug.Stack()))
		}
	}()
	job(d.ctx)
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
