package collection

import (
	"log"
	"sync"

	"github.com/kvindex/knndb/pkg/domain"
	"github.com/kvindex/knndb/pkg/index"
	"github.com/kvindex/knndb/pkg/segment"
)

// rebuildGate implements a two-phase rebuild coalescing policy: at
// most one rebuild runs at a time, and at most one more is queued
// behind it — any additional trigger while both slots are occupied is
// simply dropped, since the queued run will pick up whatever changed
// in the meantime anyway. A TryLock-guarded working mutex plus a
// pending flag gets this coalescing behavior without a busy-wait.
type rebuildGate struct {
	mu      sync.Mutex
	working sync.Mutex
	pending bool
}

// BuildIndexes runs the shadow-rebuild protocol: a fresh "shadow"
// index catalog is built from a full scan of every segment, then
// atomically swapped into the live catalog. Concurrent calls coalesce
// per rebuildGate's policy.
func (c *Collection) BuildIndexes() {
	g := &c.rebuild

	g.mu.Lock()
	if !g.working.TryLock() {
		g.pending = true
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	for {
		c.doBuildIndexes()

		g.mu.Lock()
		if g.pending {
			g.pending = false
			g.mu.Unlock()
			continue
		}
		g.working.Unlock()
		g.mu.Unlock()
		return
	}
}

func (c *Collection) doBuildIndexes() {
	c.specsMu.Lock()
	specs := append([]index.Spec(nil), c.specs...)
	c.specsMu.Unlock()
	if len(specs) == 0 {
		return
	}

	shadow := make(map[string]index.Index, len(specs))
	for _, spec := range specs {
		shadow[spec.Name] = index.Build(spec)
	}

	segs := c.Segments()
	var wg sync.WaitGroup
	for _, s := range segs {
		wg.Add(1)
		go func(s *segment.Segment) {
			defer wg.Done()
			err := s.ForEach(func(doc domain.Document) error {
				for _, idx := range shadow {
					idx.AddItem(doc)
				}
				return nil
			})
			if err != nil {
				log.Printf("WARN: collection %s: rebuild: segment %s stream failed: %v", c.name, s.Path(), err)
			}
		}(s)
	}
	wg.Wait()

	for _, idx := range shadow {
		idx.Finish()
	}
	c.catalog.Swap(shadow)
}

// CreateIndex adds spec to the collection's index set and schedules an
// asynchronous rebuild so the new index is populated without blocking
// the caller.
func (c *Collection) CreateIndex(spec index.Spec) {
	c.specsMu.Lock()
	c.specs = append(c.specs, spec)
	c.specsMu.Unlock()
	go c.BuildIndexes()
}

// Specs returns a snapshot of the collection's configured index
// specs, for metadata persistence.
func (c *Collection) Specs() []index.Spec {
	c.specsMu.Lock()
	defer c.specsMu.Unlock()
	return append([]index.Spec(nil), c.specs...)
}

// SetSpecs replaces the collection's configured index specs (used
// when loading collection.metadata).
func (c *Collection) SetSpecs(specs []index.Spec) {
	c.specsMu.Lock()
	c.specs = append([]index.Spec(nil), specs...)
	c.specsMu.Unlock()
}
