// Package queue provides the work queue of the outbox watcher.
package queue

import "sync"

// Unique is a goroutine-safe FIFO queue that holds each item at most once.
//
// Enqueueing an item that is already waiting keeps its original position. Ready signals
// consumers that the queue became non-empty.
type Unique[T comparable] struct {
	mu     sync.Mutex
	items  []T
	queued map[T]struct{}
	ready  chan struct{}
}

// NewUnique creates an empty queue with room for prealloc items.
func NewUnique[T comparable](prealloc int) *Unique[T] {
	if prealloc < 0 {
		prealloc = 0
	}

	return &Unique[T]{
		items:  make([]T, 0, prealloc),
		queued: make(map[T]struct{}, prealloc),
		ready:  make(chan struct{}, 1),
	}
}

// Enqueue adds item to the tail of the queue. It returns false if item is already queued.
func (q *Unique[T]) Enqueue(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.queued[item]; ok {
		return false
	}
	q.queued[item] = struct{}{}
	q.items = append(q.items, item)

	select {
	case q.ready <- struct{}{}:
	default:
	}

	return true
}

// Dequeue removes and returns the item at the head of the queue.
// The second return value is false if the queue is empty.
func (q *Unique[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	delete(q.queued, item)

	return item, true
}

// Ready returns a channel that receives a value after an item was enqueued. Consumers drain
// the queue with Dequeue after each signal.
func (q *Unique[T]) Ready() <-chan struct{} {
	return q.ready
}

// Reset drops every queued item.
func (q *Unique[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = q.items[:0]
	clear(q.queued)
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *Unique[T]) IsEmpty() bool {
	return q.Length() == 0
}

// Length returns the number of items in the queue.
func (q *Unique[T]) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
