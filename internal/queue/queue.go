// internal/queue/queue.go
package queue

import (
	"context"
	"errors"
	"time"
)

// DefaultCapacity is the slot count used when Config.Capacity is zero.
// It is sized to the largest burst any producer emits before the consumer
// drains; a deeper burst blocks the sender (soft invariant, not enforced).
const DefaultCapacity = 3

// ErrSendTimeout is returned by Send when SendTimeout elapses on a full queue.
var ErrSendTimeout = errors.New("queue: send timeout")

// Config fixes the queue geometry and send policy at construction.
type Config struct {
	Capacity int

	// SendTimeout bounds how long Send waits for a free slot.
	// Zero blocks until a slot frees or ctx ends.
	SendTimeout time.Duration
}

// Queue is a bounded FIFO with many producers and exactly one consumer.
type Queue[T any] struct {
	ch      chan T
	timeout time.Duration
}

// New creates an empty queue.
func New[T any](cfg Config) *Queue[T] {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue[T]{
		ch:      make(chan T, capacity),
		timeout: cfg.SendTimeout,
	}
}

// Send enqueues msg, blocking while the queue is full.
func (q *Queue[T]) Send(ctx context.Context, msg T) error {
	// fast path: free slot
	select {
	case q.ch <- msg:
		return nil
	default:
	}

	var expired <-chan time.Time
	if q.timeout > 0 {
		t := time.NewTimer(q.timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case q.ch <- msg:
		return nil
	case <-expired:
		return ErrSendTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post enqueues msg ignoring SendTimeout: it waits for a free slot until
// ctx ends. For producers whose messages must not be lost.
func (q *Queue[T]) Post(ctx context.Context, msg T) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive dequeues the oldest message, blocking while the queue is empty.
func (q *Queue[T]) Receive(ctx context.Context) (T, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Len reports the number of queued messages.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap reports the fixed capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }
