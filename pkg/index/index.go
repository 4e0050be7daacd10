// Package index implements the four index variants (KeyValue,
// MultipleKeyValue, Range, Knn) behind a shared capability contract,
// plus the Catalog that owns a collection's named indexes and
// supports the shadow-rebuild swap. Each variant is a tagged struct
// dispatched by type switch in the query executor rather than a
// classical inheritance hierarchy.
package index

import (
	"sync"
	"time"
)

// Type identifies an index variant. The integer values match the
// collection.metadata wire schema (0 KeyValue, 1 MultipleKeyValue,
// 2 Knn, 3 Range).
type Type int

const (
	TypeKeyValue Type = iota
	TypeMultipleKeyValue
	TypeKnn
	TypeRange
)

// Index is the capability contract every variant satisfies. Reading
// a probe result requires a type switch on the concrete variant (see
// pkg/query) since each variant's Perform method takes different
// arguments; what's shared is lifecycle and introspection.
type Index interface {
	Type() Type
	Name() string
	Reset()
	AddItem(doc map[string]interface{})
	Finish()
	IncludedKeys() []string
	SaveMetadata() Spec
}

// base is embedded (by pointer — see newBase) by every variant and
// provides the createdAt stamp, the useLock guarding internal maps,
// and the inBuilding wait gate. A condition variable backs the wait
// gate so Perform blocks cheaply while a rebuild is in progress
// instead of spinning.
type base struct {
	name string
	typ  Type

	mu sync.Mutex // useLock

	readyMu   sync.Mutex
	readyCond *sync.Cond
	building  bool
	createdAt int64
}

// newBase returns a heap-allocated *base so the sync.Cond built against
// &b.readyMu stays valid: a value receiver here would let the struct
// get copied into each variant's embedding field, leaving readyCond.L
// pointing at the original stack/heap temporary's mutex instead of the
// copy's — Wait would then try to unlock a different, unlocked mutex.
func newBase(name string, typ Type) *base {
	b := &base{name: name, typ: typ, building: true}
	b.readyCond = sync.NewCond(&b.readyMu)
	return b
}

func (b *base) Name() string { return b.name }
func (b *base) Type() Type   { return b.typ }

// markBuilding flags the index as under construction; Perform calls
// block in waitReady until markReady is called.
func (b *base) markBuilding() {
	b.readyMu.Lock()
	b.building = true
	b.readyMu.Unlock()
}

func (b *base) markReady() {
	b.readyMu.Lock()
	b.building = false
	b.createdAt = time.Now().Unix()
	b.readyCond.Broadcast()
	b.readyMu.Unlock()
}

func (b *base) waitReady() {
	b.readyMu.Lock()
	for b.building {
		b.readyCond.Wait()
	}
	b.readyMu.Unlock()
}

func (b *base) createdAtUnix() int64 {
	b.readyMu.Lock()
	defer b.readyMu.Unlock()
	return b.createdAt
}

// Finish is the default lifecycle stamp: clear inBuilding and record
// createdAt. Variants whose Finish does additional work (Range sorts
// its buffered entries; MultipleKeyValue finishes its sub-indexes)
// define their own Finish and call markReady directly; KeyValue and
// Knn use this one unmodified.
func (b *base) Finish() {
	b.markReady()
}

// Spec is the canonical, variant-agnostic description of an index, as
// persisted in collection.metadata and used to reconstruct an Index
// instance during load or rebuild.
type Spec struct {
	Name              string   `json:"name"`
	Type              Type     `json:"type"`
	KeyName           string   `json:"keyName,omitempty"`
	KeyNames          []string `json:"keyNames,omitempty"`
	IsHashedIndex     bool     `json:"-"`
	IsFullHashedIndex bool     `json:"isFullHashedIndex,omitempty"`
	IsHashedIndexes   []bool   `json:"-"`
	Space             int      `json:"space,omitempty"`
}

// FromWire reconstructs a Spec from the generic map shape the
// collection.metadata JSON file stores an index as. The "isHashedIndex"
// field is bool for KeyValue and []bool for MultipleKeyValue, so it
// can't be a single fixed-type struct tag; it is decoded by hand here
// instead of relying on encoding/json's struct unmarshaling. A typed
// []string "keyNames", as ToWire produces, is accepted too;
// "isHashedIndex" is read only as a bool or a JSON-decoded
// []interface{}, so a typed []bool from ToWire is not picked up.
func FromWire(raw map[string]interface{}) Spec {
	s := Spec{}
	if v, ok := raw["name"].(string); ok {
		s.Name = v
	}
	if v, ok := raw["type"]; ok {
		if f, ok := toFloat(v); ok {
			s.Type = Type(int(f))
		}
	}
	if v, ok := raw["keyName"].(string); ok {
		s.KeyName = v
	}
	switch kv := raw["keyNames"].(type) {
	case []interface{}:
		for _, item := range kv {
			if str, ok := item.(string); ok {
				s.KeyNames = append(s.KeyNames, str)
			}
		}
	case []string:
		s.KeyNames = append(s.KeyNames, kv...)
	}
	if v, ok := raw["isFullHashedIndex"].(bool); ok {
		s.IsFullHashedIndex = v
	}
	switch hv := raw["isHashedIndex"].(type) {
	case bool:
		s.IsHashedIndex = hv
	case []interface{}:
		for _, item := range hv {
			if b, ok := item.(bool); ok {
				s.IsHashedIndexes = append(s.IsHashedIndexes, b)
			}
		}
	}
	if v, ok := raw["space"]; ok {
		if f, ok := toFloat(v); ok {
			s.Space = int(f)
		}
	}
	return s
}

// ToWire renders a Spec back into the generic collection.metadata
// shape.
func (s Spec) ToWire() map[string]interface{} {
	out := map[string]interface{}{
		"name": s.Name,
		"type": int(s.Type),
	}
	switch s.Type {
	case TypeKeyValue:
		out["keyName"] = s.KeyName
		out["isHashedIndex"] = s.IsHashedIndex
	case TypeMultipleKeyValue:
		out["keyNames"] = s.KeyNames
		out["isFullHashedIndex"] = s.IsFullHashedIndex
		hashed := make([]bool, len(s.KeyNames))
		copy(hashed, s.IsHashedIndexes)
		out["isHashedIndex"] = hashed
	case TypeKnn:
		out["keyName"] = s.KeyName
		out["space"] = s.Space
	case TypeRange:
		out["keyName"] = s.KeyName
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Build constructs a fresh, empty Index instance from a Spec.
func Build(spec Spec) Index {
	switch spec.Type {
	case TypeKeyValue:
		return NewKeyValueIndex(spec.Name, spec.KeyName, spec.IsHashedIndex)
	case TypeMultipleKeyValue:
		return NewMultipleKeyValueIndex(spec.Name, spec.KeyNames, spec.IsHashedIndexes)
	case TypeKnn:
		space := spec.Space
		if space <= 0 {
			space = 1
		}
		return NewKnnIndex(spec.Name, spec.KeyName, space)
	case TypeRange:
		return NewRangeIndex(spec.Name, spec.KeyName)
	default:
		return NewKeyValueIndex(spec.Name, spec.KeyName, false)
	}
}
