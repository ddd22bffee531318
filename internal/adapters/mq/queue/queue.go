// Package queue buffers PCM audio chunks between a client socket and a
// speech recognizer.
//
// Enqueue never blocks: a full queue rejects the chunk so that a slow
// recognizer cannot stall the socket reader.
package queue

import (
	"context"
	"io"
	"sync"

	"github.com/dazdaz/chirp-demo-enhanced/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 512 // ~15s of 30ms frames
)

// Chunk is one binary audio frame as received from the client.
type Chunk []byte

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a chunk. It returns ErrFull or ErrClosed when the chunk
	// was not accepted.
	Enqueue(ctx context.Context, c Chunk) error

	// Dequeue returns a channel that yields chunks in order and is closed
	// once the queue is closed and drained.
	Dequeue() <-chan Chunk

	// Len returns the current number of queued chunks.
	Len() int

	// Close ends input. Queued chunks remain readable.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	chunks   chan Chunk
	capacity int
	copy     bool

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		copy:     true,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.chunks = make(chan Chunk, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds a chunk to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Chunk) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	if q.copy {
		c = append(Chunk(nil), c...)
	}

	select {
	case q.chunks <- c:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueUtilization(float64(len(q.chunks)) / float64(q.capacity))
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue() <-chan Chunk {
	return q.chunks
}

// Next blocks until a chunk is available, the queue is drained after Close,
// or ctx is done. ok is false in the latter two cases.
func (q *InMemoryQueue) Next(ctx context.Context) (c Chunk, ok bool) {
	select {
	case c, ok = <-q.chunks:
		if ok {
			metrics.RecordQueueDequeue()
			metrics.UpdateQueueUtilization(float64(len(q.chunks)) / float64(q.capacity))
		}
		return c, ok
	case <-ctx.Done():
		return nil, false
	}
}

// Len returns the current number of queued chunks.
func (q *InMemoryQueue) Len() int {
	return len(q.chunks)
}

// Capacity returns the maximum number of queued chunks.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close ends input. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.chunks)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Reader adapts a queue to an io.Reader over the concatenated chunks.
// Read returns io.EOF once the queue is closed and drained, and ctx.Err()
// when ctx ends first.
type Reader struct {
	ctx  context.Context
	q    *InMemoryQueue
	rest []byte
}

// NewReader returns a Reader draining q.
func NewReader(ctx context.Context, q *InMemoryQueue) *Reader {
	return &Reader{ctx: ctx, q: q}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	for len(r.rest) == 0 {
		c, ok := r.q.Next(r.ctx)
		if !ok {
			if err := r.ctx.Err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		r.rest = c
	}
	n := copy(p, r.rest)
	r.rest = r.rest[n:]
	return n, nil
}
