// Package ringbuf provides a bounded FIFO that evicts its oldest element when full.
// It is not safe for concurrent use; owners serialize access with their own lock.
package ringbuf

// Ring is a fixed-capacity FIFO. Pushing into a full ring evicts the oldest element.
type Ring[T any] struct {
	buf   []T
	head  int // index of the oldest element
	size  int
	evict uint64
}

// New creates a ring holding at most capacity elements. Minimum capacity is 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v. If the ring was full the evicted oldest element is returned with true.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if r.size == len(r.buf) {
		evicted = r.buf[r.head]
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
		r.evict++
		return evicted, true
	}
	r.buf[(r.head+r.size)%len(r.buf)] = v
	r.size++
	return evicted, false
}

// Pop removes and returns the oldest element
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	v := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.size--
	return v, true
}

// Peek returns the oldest element without removing it
func (r *Ring[T]) Peek() (T, bool) {
	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.buf[r.head], true
}

// Len returns the number of stored elements
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the capacity
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Evicted returns how many elements were pushed out by overflow
func (r *Ring[T]) Evicted() uint64 {
	return r.evict
}

// Items returns a copy of all elements, oldest first
func (r *Ring[T]) Items() []T {
	return r.Last(r.size)
}

// Last returns a copy of the newest n elements, oldest first
func (r *Ring[T]) Last(n int) []T {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	start := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+start+i)%len(r.buf)]
	}
	return out
}

// Do calls fn for every element, oldest first
func (r *Ring[T]) Do(fn func(T)) {
	for i := 0; i < r.size; i++ {
		fn(r.buf[(r.head+i)%len(r.buf)])
	}
}

// Reset drops all elements. The eviction counter is kept.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.head = 0
	r.size = 0
}

// Resize changes the capacity, keeping the newest elements. It returns how many were dropped.
func (r *Ring[T]) Resize(capacity int) int {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == len(r.buf) {
		return 0
	}
	keep := r.Last(capacity)
	dropped := r.size - len(keep)

	r.buf = make([]T, capacity)
	copy(r.buf, keep)
	r.head = 0
	r.size = len(keep)
	return dropped
}
