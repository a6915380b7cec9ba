package harness

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO whose consumers park until an item is pushed or
// the queue is closed.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	// ready holds at most one wakeup; consumers re-check the queue after
	// every wakeup and pass it on if items remain.
	ready chan struct{}
	done  chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// push appends v. It fails with ErrConnectionClosed once the queue is closed.
func (q *queue[T]) push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrConnectionClosed
	}
	q.items = append(q.items, v)
	q.signal()
	return nil
}

// next removes and returns the oldest item. Items pushed before close are
// still returned; after that it fails with ErrConnectionClosed.
func (q *queue[T]) next(ctx context.Context) (T, error) {
	var zero T

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			if len(q.items) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return v, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, ErrConnectionClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// tryNext removes and returns the oldest item without waiting.
func (q *queue[T]) tryNext() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return v, true
}

// close stops accepting items and wakes every waiter.
func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

// abandon closes the queue and discards anything not yet retrieved.
func (q *queue[T]) abandon() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return n
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// signal must be called with q.mu held.
func (q *queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
