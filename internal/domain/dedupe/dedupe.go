// Package dedupe tracks submission ids so that retried high-score
// submissions are stored at most once.
package dedupe

import (
	"container/list"
	"context"
	"strings"
	"sync"
)

// DefaultMaxSize bounds the number of ids remembered by default.
const DefaultMaxSize = 10000

// Deduper records seen submission ids.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so that a failed submission can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper remembers ids in insertion order and evicts the oldest
// once maxSize is reached. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	scope   string
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: DefaultMaxSize,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) key(id string) string {
	if d.scope == "" {
		return id
	}
	return d.scope + "/" + id
}

// SeenAndRecord returns true if id was already recorded, otherwise it records
// it and returns false.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	k := d.key(id)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[k]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.seen[k] = d.order.PushFront(k)
	return false
}

// Unrecord removes id from the seen set.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	k := d.key(id)

	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[k]; ok {
		d.order.Remove(el)
		delete(d.seen, k)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	if el := d.order.Back(); el != nil {
		d.order.Remove(el)
		delete(d.seen, el.Value.(string))
	}
}

// Size returns the current number of remembered ids.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}

// SubmissionKey joins a board name and a client submission id into the key
// recorded by the deduper. Blank ids yield "".
func SubmissionKey(board, submissionID string) string {
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return ""
	}
	return board + ":" + submissionID
}
