// Package collection owns a named aggregate's storage segments and
// index catalog: insert routing, document lookup/edit/remove, the
// shadow index rebuild protocol, and TTL sweeping. Inserts go to a
// randomly picked existing segment (or a fresh one), and missing ids
// are drawn at random and redrawn on collision, rather than taken from
// a global counter.
package collection

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sync"

	"github.com/kvindex/knndb/pkg/domain"
	"github.com/kvindex/knndb/pkg/index"
	"github.com/kvindex/knndb/pkg/segment"
)

const (
	minSegmentsBeforeRandomPick = 10
	segmentPickTries            = 5
)

// Collection is a named aggregate of storage segments plus an index
// catalog.
type Collection struct {
	name string
	dir  string

	maxElements int

	segmentsMu sync.RWMutex
	segments   []*segment.Segment

	catalog *index.Catalog

	specsMu sync.Mutex
	specs   []index.Spec

	saveLock sync.Mutex

	rebuild rebuildGate
}

// New creates an empty collection rooted at dir (dir is the
// col_<name> directory; it must already exist). maxElements caps the
// live-document count of every segment the collection creates; 0
// falls back to segment.DefaultMaxElements.
func New(name, dir string, maxElements int) *Collection {
	return &Collection{
		name:        name,
		dir:         dir,
		maxElements: maxElements,
		catalog:     index.NewCatalog(),
	}
}

func (c *Collection) Name() string { return c.name }
func (c *Collection) Dir() string  { return c.dir }

// CountDocuments sums live document counts across every segment.
func (c *Collection) CountDocuments() int {
	c.segmentsMu.RLock()
	defer c.segmentsMu.RUnlock()
	total := 0
	for _, s := range c.segments {
		total += s.Count()
	}
	return total
}

// AllIDs returns the union of every segment's live ids. Used by the
// query executor's select-all fallback.
func (c *Collection) AllIDs() []uint64 {
	var out []uint64
	c.segmentsMu.RLock()
	segs := append([]*segment.Segment(nil), c.segments...)
	c.segmentsMu.RUnlock()
	for _, s := range segs {
		s.ForEachID(func(id uint64) { out = append(out, id) })
	}
	return out
}

// IndexedKeys projects the catalog by included field name.
func (c *Collection) IndexedKeys() map[string][]index.Index {
	return c.catalog.IndexedKeys()
}

// Catalog exposes the underlying index catalog (used by the database
// root when scheduling rebuilds and by CreateIndex).
func (c *Collection) Catalog() *index.Catalog { return c.catalog }

// Insert assigns ids to any doc missing one, routes each doc to a
// target segment, and buffers it there. Returns assigned ids in input
// order.
func (c *Collection) Insert(docs []domain.Document) ([]uint64, error) {
	ids := make([]uint64, len(docs))
	for i, doc := range docs {
		id, ok := doc.ID()
		if !ok {
			id = c.generateUnusedID()
			doc = doc.Clone()
			doc.SetID(id)
		} else if c.savedAnywhere(id) {
			return nil, fmt.Errorf("collection %s: document id %d already exists", c.name, id)
		}
		target, err := c.pickSegmentForInsert()
		if err != nil {
			return nil, err
		}
		if err := target.Insert(doc); err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (c *Collection) savedAnywhere(id uint64) bool {
	c.segmentsMu.RLock()
	defer c.segmentsMu.RUnlock()
	for _, s := range c.segments {
		if s.SavedHere(id) {
			return true
		}
	}
	return false
}

// generateUnusedID draws ids below 2^53: documents read back from a
// segment file carry their id as a float64, which holds every integer
// in that range exactly, so a generated id survives a flush unchanged.
func (c *Collection) generateUnusedID() uint64 {
	for {
		id := rand.Uint64N(1 << 53)
		if id != 0 && !c.savedAnywhere(id) {
			return id
		}
	}
}

// pickSegmentForInsert prefers an existing segment under capacity,
// chosen by a bounded number of random tries;
// fall back to creating a new segment if none was found or the
// collection has fewer than minSegmentsBeforeRandomPick segments.
func (c *Collection) pickSegmentForInsert() (*segment.Segment, error) {
	c.segmentsMu.Lock()
	defer c.segmentsMu.Unlock()

	if len(c.segments) >= minSegmentsBeforeRandomPick {
		for try := 0; try < segmentPickTries; try++ {
			candidate := c.segments[rand.IntN(len(c.segments))]
			if !candidate.IsFull() {
				return candidate, nil
			}
		}
	}

	newSeg, err := c.createSegmentLocked()
	if err != nil {
		return nil, err
	}
	return newSeg, nil
}

func (c *Collection) createSegmentLocked() (*segment.Segment, error) {
	name := fmt.Sprintf("%016x%s", rand.Uint64(), segment.Extension)
	path := filepath.Join(c.dir, name)
	s, err := segment.Open(path, segment.WithMaxElements(c.maxElements))
	if err != nil {
		return nil, fmt.Errorf("collection %s: create segment: %w", c.name, err)
	}
	c.segments = append(c.segments, s)
	return s, nil
}

// addSegment registers an already-opened segment (used by Load).
func (c *Collection) addSegment(s *segment.Segment) {
	c.segmentsMu.Lock()
	c.segments = append(c.segments, s)
	c.segmentsMu.Unlock()
}

// GetDocuments fetches the requested ids, wherever they live, applying
// projection. Results are returned in the same order as ids (callers
// such as the cursor prefetch rely on this to preserve the executor's
// rank order across batches). Satisfies pkg/cursor.DocumentSource and
// the HTTP layer's get-by-id path.
func (c *Collection) GetDocuments(ids []uint64, projection map[string]interface{}) ([]domain.Document, error) {
	c.segmentsMu.RLock()
	segs := append([]*segment.Segment(nil), c.segments...)
	c.segmentsMu.RUnlock()

	byID := make(map[uint64]domain.Document, len(ids))
	for _, s := range segs {
		var want []uint64
		for _, id := range ids {
			if _, already := byID[id]; already {
				continue
			}
			if s.SavedHere(id) {
				want = append(want, id)
			}
		}
		if len(want) == 0 {
			continue
		}
		docs, err := s.Get(want, projection, false)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if id, ok := doc.ID(); ok {
				byID[id] = doc
			}
		}
	}

	out := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// EditDocument applies upd to the document named by id, wherever it
// lives. Returns false if no segment tracks id.
func (c *Collection) EditDocument(id uint64, upd domain.Document) (bool, error) {
	c.segmentsMu.RLock()
	segs := append([]*segment.Segment(nil), c.segments...)
	c.segmentsMu.RUnlock()

	for _, s := range segs {
		if ok, err := s.Edit(id, upd); ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

// RemoveDocument deletes the document named by id. Returns false if no
// segment tracks it.
func (c *Collection) RemoveDocument(id uint64) bool {
	c.segmentsMu.RLock()
	segs := append([]*segment.Segment(nil), c.segments...)
	c.segmentsMu.RUnlock()

	for _, s := range segs {
		if s.Remove(id) {
			return true
		}
	}
	return false
}

// Flush saves every segment (rewriting pending mutations to disk).
func (c *Collection) Flush() error {
	c.segmentsMu.RLock()
	segs := append([]*segment.Segment(nil), c.segments...)
	c.segmentsMu.RUnlock()

	for _, s := range segs {
		if err := s.Save(); err != nil {
			return fmt.Errorf("collection %s: flush segment %s: %w", c.name, s.Path(), err)
		}
	}
	return nil
}

// Segments returns a snapshot of the collection's current segments.
func (c *Collection) Segments() []*segment.Segment {
	c.segmentsMu.RLock()
	defer c.segmentsMu.RUnlock()
	return append([]*segment.Segment(nil), c.segments...)
}
