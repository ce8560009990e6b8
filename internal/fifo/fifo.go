// Package fifo provides a fixed-capacity FIFO queue used for rolling
// time-series windows.
package fifo

// Queue is a fixed-capacity first-in-first-out queue. Appending beyond
// capacity evicts the oldest element, so the length never exceeds the
// capacity. Not safe for concurrent use.
type Queue[T any] struct {
	items []T
	cap   int
}

// NewQueue creates a queue holding at most capacity elements.
// A capacity below 1 is treated as 1.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
	}
}

// Push appends a value, evicting the oldest element when full.
func (q *Queue[T]) Push(v T) {
	if len(q.items) == q.cap {
		copy(q.items, q.items[1:])
		q.items[len(q.items)-1] = v
		return
	}
	q.items = append(q.items, v)
}

// Len returns the number of elements currently held.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Values returns the elements oldest first. The slice is a copy.
func (q *Queue[T]) Values() []T {
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}
