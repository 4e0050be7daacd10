// Package cursor implements paginated, prefetching retrieval over a
// ranked id list: the client pulls bounded batches of documents while
// a background prefetch keeps the buffer topped up at a 1.75x
// high-water mark, using a sync.Cond rather than a busy-wait to
// coordinate the prefetch goroutine with batch consumers.
package cursor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kvindex/knndb/pkg/domain"
)

// DocumentSource is the narrow slice of collection behavior a cursor
// needs: fetching documents by id, wherever they happen to live.
type DocumentSource interface {
	GetDocuments(ids []uint64, projection map[string]interface{}) ([]domain.Document, error)
}

const (
	DefaultBatchSize = 50
	DefaultTimeout   = 1800 * time.Second
)

// Cursor holds a ranked id list, a projection, and a prefetch buffer.
type Cursor struct {
	id        string
	source    DocumentSource
	projection map[string]interface{}

	batchSize int
	timeout   time.Duration
	allMode   bool

	mu              sync.Mutex
	cond            *sync.Cond
	ids             []uint64
	buffer          []domain.Document
	createdAt       time.Time
	lastInteraction time.Time
}

// Option configures a Cursor at construction time.
type Option func(*Cursor)

func WithBatchSize(n int) Option {
	return func(c *Cursor) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Cursor) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAllMode switches the cursor into "retrieve everything" mode: the
// batch size becomes unbounded and the entire id list is prefetched in
// one synchronous pass before New returns.
func WithAllMode() Option {
	return func(c *Cursor) { c.allMode = true }
}

// New creates a cursor over ids and spawns its initial prefetch.
func New(source DocumentSource, ids []uint64, projection map[string]interface{}, opts ...Option) *Cursor {
	now := time.Now()
	c := &Cursor{
		id:              newCursorID(now),
		source:          source,
		projection:      projection,
		batchSize:       DefaultBatchSize,
		timeout:         DefaultTimeout,
		ids:             append([]uint64(nil), ids...),
		createdAt:       now,
		lastInteraction: now,
	}
	c.cond = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	if c.allMode {
		if c.batchSize < len(c.ids) {
			c.batchSize = len(c.ids)
		}
		if c.batchSize == 0 {
			c.batchSize = 1
		}
		c.prefetch()
	} else {
		go c.prefetch()
	}
	return c
}

func newCursorID(t time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d", t.UnixMilli())))
	return hex.EncodeToString(sum[:])
}

// ID returns the cursor's registry key.
func (c *Cursor) ID() string { return c.id }

// LastInteraction reports when the cursor was last touched by a
// RetrieveBatch call.
func (c *Cursor) LastInteraction() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastInteraction
}

// Timeout returns the cursor's reclaim timeout.
func (c *Cursor) Timeout() time.Duration { return c.timeout }

// prefetch fills the buffer up to 1.75*batchSize documents. The lock
// is held for the whole fill, fetch included, so RetrieveBatch never
// observes ids taken off the list whose documents are not yet in the
// buffer.
func (c *Cursor) prefetch() {
	c.mu.Lock()
	highWater := int(1.75 * float64(c.batchSize))
	if highWater < c.batchSize {
		highWater = c.batchSize
	}
	for len(c.buffer) < highWater && len(c.ids) > 0 {
		n := highWater - len(c.buffer)
		if n > len(c.ids) {
			n = len(c.ids)
		}
		chunk := append([]uint64(nil), c.ids[:n]...)
		c.ids = c.ids[n:]

		docs, err := c.source.GetDocuments(chunk, c.projection)
		if err != nil {
			log.Printf("WARN: cursor %s: prefetch fetch failed: %v", c.id, err)
		}

		c.buffer = append(c.buffer, docs...)
	}
	c.cond.Broadcast()
	c.mu.Unlock()
}

// RetrieveBatch blocks until the buffer holds batchSize documents or
// the id list is exhausted, returns up to batchSize documents, kicks
// off another prefetch, and reports finished = true iff both the id
// list and the buffer are now empty.
func (c *Cursor) RetrieveBatch() ([]domain.Document, bool) {
	c.mu.Lock()
	for len(c.buffer) < c.batchSize && len(c.ids) > 0 {
		c.cond.Wait()
	}

	n := c.batchSize
	if n > len(c.buffer) {
		n = len(c.buffer)
	}
	batch := append([]domain.Document(nil), c.buffer[:n]...)
	c.buffer = c.buffer[n:]
	c.lastInteraction = time.Now()
	finished := len(c.ids) == 0 && len(c.buffer) == 0
	remaining := len(c.ids) > 0
	c.mu.Unlock()

	if remaining {
		go c.prefetch()
	}
	return batch, finished
}

// Destroy acquires the batch lock and clears the cursor's buffers,
// matching the original's destructor discipline.
func (c *Cursor) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = nil
	c.buffer = nil
}
