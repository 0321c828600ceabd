// Package mainloop marshals work onto the host's own execution context.
//
// Host state may only be touched from the host's turn. Other goroutines
// Post callbacks; the host calls Drain once per frame and runs them in the
// order they were posted.
package mainloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrClosed is returned by Call once the queue has been closed.
var ErrClosed = errors.New("mainloop: queue closed")

// Queue is an unbounded FIFO of callbacks run on the host's turn.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	closed  bool

	logger *slog.Logger
}

// New creates a Queue. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{logger: logger.With("component", "mainloop")}
}

// Post schedules fn for the next Drain. It never blocks. Callbacks posted
// after Close are discarded and Post reports false.
func (q *Queue) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.pending = append(q.pending, fn)
	return true
}

// Drain runs every callback posted before the call and returns how many ran.
// Callbacks posted while draining wait for the next Drain. A panicking
// callback is logged and does not stop the rest.
func (q *Queue) Drain() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range batch {
		q.safeExecute(fn)
	}
	return len(batch)
}

// Len returns the number of callbacks waiting for Drain.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Call posts fn and waits for it to run on the host's turn. It returns fn's
// error, ctx.Err() if ctx ends first, or ErrClosed.
func (q *Queue) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if !q.Post(func() { done <- q.callSafe(fn) }) {
		return ErrClosed
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close discards pending callbacks and rejects new ones.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.pending = nil
	q.mu.Unlock()
}

func (q *Queue) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("callback panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (q *Queue) callSafe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("callback panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("mainloop: callback panic: %v", r)
		}
	}()
	return fn()
}
