package queue

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of queued chunks.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithoutCopy stores chunks as given. Use it only when callers never reuse
// the slices they enqueue.
func WithoutCopy() Option {
	return func(q *InMemoryQueue) {
		q.copy = false
	}
}
