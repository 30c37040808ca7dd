package router

import "sync"

// Queue is a thread-safe FIFO ring that doubles its capacity when full,
// up to a limit. At the limit the oldest item is overwritten and counted
// as dropped, so producers never block.
type Queue[T any] struct {
	mu     sync.Mutex
	buf    []T
	head   int
	count  int
	limit  int
	closed bool
	ready  chan struct{}

	pushed  int64
	popped  int64
	dropped int64
	grows   int
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Len     int
	Cap     int
	Pushed  int64
	Popped  int64
	Dropped int64
	Grows   int
}

// NewQueue creates a queue with the given initial capacity that grows up
// to limit items. A limit below the initial capacity disables growth.
func NewQueue[T any](initial, limit int) *Queue[T] {
	initial = max(initial, 1)
	limit = max(limit, initial)
	return &Queue[T]{
		buf:   make([]T, initial),
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

// Push appends item. It returns false once the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if q.count == len(q.buf) {
		if len(q.buf) < q.limit {
			q.growLocked(min(len(q.buf)*2, q.limit))
		} else {
			var zero T
			q.buf[q.head] = zero
			q.head = (q.head + 1) % len(q.buf)
			q.count--
			q.dropped++
		}
	}

	q.buf[(q.head+q.count)%len(q.buf)] = item
	q.count++
	q.pushed++

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Pop removes the oldest item without blocking.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.count == 0 {
		return zero, false
	}
	item := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.popped++
	return item, true
}

// Drain removes up to n items (all items if n <= 0), oldest first.
func (q *Queue[T]) Drain(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}
	if n <= 0 || n > q.count {
		n = q.count
	}

	out := make([]T, n)
	var zero T
	for i := range out {
		out[i] = q.buf[q.head]
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
	}
	q.count -= n
	q.popped += int64(n)
	return out
}

// Ready is signalled after a Push. A consumer selects on it and then
// drains; one signal may cover many items.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Close stops further pushes. Queued items can still be drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Len:     q.count,
		Cap:     len(q.buf),
		Pushed:  q.pushed,
		Popped:  q.popped,
		Dropped: q.dropped,
		Grows:   q.grows,
	}
}

// growLocked moves the ring into a buffer of size n, unwrapping it.
func (q *Queue[T]) growLocked(n int) {
	buf := make([]T, n)
	if q.head+q.count <= len(q.buf) {
		copy(buf, q.buf[q.head:q.head+q.count])
	} else {
		k := copy(buf, q.buf[q.head:])
		copy(buf[k:], q.buf[:q.count-k])
	}
	q.buf = buf
	q.head = 0
	q.grows++
}
