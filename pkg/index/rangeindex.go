package index

import (
	"sort"

	"github.com/kvindex/knndb/pkg/domain"
)

// RangeIndex stores an ordered (key, id) list over one numeric (or
// numeric-string-coercible) field, supporting inclusive bound queries.
//
// AddItem only runs during a catalog rebuild's streaming pass, so
// entries are appended unsorted and the whole slice is sorted once in
// Finish, rather than maintaining a continuously sorted structure.
type RangeIndex struct {
	*base
	keyName string
	entries []rangeEntry
	sorted  bool
}

type rangeEntry struct {
	key float64
	id  uint64
}

func NewRangeIndex(name, keyName string) *RangeIndex {
	return &RangeIndex{base: newBase(name, TypeRange), keyName: keyName}
}

func (r *RangeIndex) Reset() {
	r.markBuilding()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.sorted = false
}

func (r *RangeIndex) IncludedKeys() []string { return []string{r.keyName} }

func (r *RangeIndex) SaveMetadata() Spec {
	return Spec{Name: r.name, Type: TypeRange, KeyName: r.keyName}
}

func (r *RangeIndex) AddItem(doc map[string]interface{}) {
	value, ok := doc[r.keyName]
	if !ok {
		return
	}
	f, ok := domain.ToFloat64(value)
	if !ok {
		return
	}
	id, ok := domain.ToUint64(doc["id"])
	if !ok {
		return
	}
	r.mu.Lock()
	r.entries = append(r.entries, rangeEntry{key: f, id: id})
	r.sorted = false
	r.mu.Unlock()
}

func (r *RangeIndex) Finish() {
	r.mu.Lock()
	sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].key < r.entries[j].key })
	r.sorted = true
	r.mu.Unlock()
	r.markReady()
}

// Perform returns every id whose key falls in [low, high] inclusive.
func (r *RangeIndex) Perform(low, high float64) []uint64 {
	r.waitReady()
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.sorted {
		sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].key < r.entries[j].key })
		r.sorted = true
	}
	lo := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].key >= low })
	var out []uint64
	for i := lo; i < len(r.entries) && r.entries[i].key <= high; i++ {
		out = append(out, r.entries[i].id)
	}
	return out
}
