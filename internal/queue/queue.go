// Package queue provides the FIFO work queues the kernel drains while
// resolving presets and plugins.
package queue

import (
	"errors"
	"sync"
)

// DefaultMaxSize bounds a queue created without an explicit size. Preset
// chains deeper than this are treated as runaway generation.
const DefaultMaxSize = 512

// ErrQueueFull is returned when attempting to enqueue to a full queue.
var ErrQueueFull = errors.New("queue is full")

// Queue is a thread-safe FIFO queue.
type Queue[T any] struct {
	entries []T
	mu      sync.Mutex
	maxSize int
}

// New creates a Queue holding at most maxSize entries.
// If maxSize is <= 0, DefaultMaxSize is used.
func New[T any](maxSize int) *Queue[T] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Queue[T]{
		entries: make([]T, 0),
		maxSize: maxSize,
	}
}

// Enqueue adds an entry to the back of the queue.
// Returns ErrQueueFull if the queue is at maximum capacity.
func (q *Queue[T]) Enqueue(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		return ErrQueueFull
	}

	q.entries = append(q.entries, v)
	return nil
}

// EnqueueAll adds entries in order. On overflow nothing is added.
func (q *Queue[T]) EnqueueAll(vs ...T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries)+len(vs) > q.maxSize {
		return ErrQueueFull
	}

	q.entries = append(q.entries, vs...)
	return nil
}

// PushFront places entries at the front, vs[0] first, ahead of everything
// already queued. On overflow nothing is added.
func (q *Queue[T]) PushFront(vs ...T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries)+len(vs) > q.maxSize {
		return ErrQueueFull
	}

	entries := make([]T, 0, len(vs)+len(q.entries))
	entries = append(entries, vs...)
	q.entries = append(entries, q.entries...)
	return nil
}

// Dequeue removes and returns the entry at the front of the queue.
// Returns (zero value, false) if the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.entries) == 0 {
		return zero, false
	}

	v := q.entries[0]
	q.entries[0] = zero
	q.entries = q.entries[1:]
	return v, true
}

// Peek returns the entry at the front of the queue without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		var zero T
		return zero, false
	}
	return q.entries[0], true
}

// Len returns the current number of entries in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.entries)
}

// Drain removes and returns all entries, leaving the queue empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return []T{}
	}

	result := q.entries
	q.entries = make([]T, 0)
	return result
}
