package cursor

import (
	"sync"
	"time"

	"github.com/kvindex/knndb/pkg/domain"
)

// Registry is the process-wide table of live cursors, keyed by their
// id, with a timeout sweep that reclaims abandoned cursors.
type Registry struct {
	mu      sync.Mutex
	cursors map[string]*Cursor
}

func NewRegistry() *Registry {
	return &Registry{cursors: make(map[string]*Cursor)}
}

// Open creates a cursor and registers it.
func (r *Registry) Open(source DocumentSource, ids []uint64, projection map[string]interface{}, opts ...Option) *Cursor {
	c := New(source, ids, projection, opts...)
	r.mu.Lock()
	r.cursors[c.ID()] = c
	r.mu.Unlock()
	return c
}

// Retrieve pulls the next batch from the cursor named by id. A
// finished cursor schedules its own kill by removing itself from the
// registry before returning.
func (r *Registry) Retrieve(id string) ([]domain.Document, bool, error) {
	r.mu.Lock()
	c, ok := r.cursors[id]
	r.mu.Unlock()
	if !ok {
		return nil, false, domain.NewError(domain.MissingKeys, "unknown cursor "+id)
	}

	docs, finished := c.RetrieveBatch()
	if finished {
		r.remove(id)
	}
	return docs, finished, nil
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	if c, ok := r.cursors[id]; ok {
		c.Destroy()
		delete(r.cursors, id)
	}
	r.mu.Unlock()
}

// SweepExpired destroys and removes every cursor whose
// now-lastInteraction >= its timeout. Returns the number removed.
func (r *Registry) SweepExpired(now time.Time) int {
	r.mu.Lock()
	var expired []string
	for id, c := range r.cursors {
		if now.Sub(c.LastInteraction()) >= c.Timeout() {
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.remove(id)
	}
	return len(expired)
}

// Len reports the number of live cursors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cursors)
}
