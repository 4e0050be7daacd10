package index

import "github.com/kvindex/knndb/pkg/domain"

// KnnIndex wraps the ANN backend with fixed-dimension vectors:
// addItem pads or truncates the embedding to the configured space,
// resizes backend capacity by one, then inserts.
type KnnIndex struct {
	*base
	keyName string
	space   int
	backend *annBackend
}

func NewKnnIndex(name, keyName string, space int) *KnnIndex {
	return &KnnIndex{
		base:    newBase(name, TypeKnn),
		keyName: keyName,
		space:   space,
		backend: newAnnBackend(space),
	}
}

func (k *KnnIndex) Reset() {
	k.markBuilding()
	k.mu.Lock()
	defer k.mu.Unlock()
	k.backend = newAnnBackend(k.space)
}

func (k *KnnIndex) IncludedKeys() []string { return []string{k.keyName} }

func (k *KnnIndex) SaveMetadata() Spec {
	return Spec{Name: k.name, Type: TypeKnn, KeyName: k.keyName, Space: k.space}
}

// AddItem extracts the array field, coerces each element to float64,
// zero-pads or truncates to the configured dimension, then inserts.
func (k *KnnIndex) AddItem(doc map[string]interface{}) {
	raw, ok := doc[k.keyName].([]interface{})
	if !ok {
		return
	}
	id, ok := domain.ToUint64(doc["id"])
	if !ok {
		return
	}
	vec := make([]float64, k.space)
	for i := 0; i < k.space && i < len(raw); i++ {
		f, ok := domain.ToFloat64(raw[i])
		if !ok {
			return
		}
		vec[i] = f
	}

	k.mu.Lock()
	k.backend.resize(1)
	k.backend.addPoint(vec, id)
	k.mu.Unlock()
}

// Perform pads/truncates the query vector to the configured dimension
// and returns up to k nearest neighbors, ordered descending by
// distance (largest first) — the max-heap-pop order the scoring rule
// in pkg/query relies on, reproduced here by simply reversing the
// backend's ascending result instead of maintaining an actual heap.
func (k *KnnIndex) Perform(value []float64, k2 int) []DistanceID {
	k.waitReady()

	vec := make([]float64, k.space)
	for i := 0; i < k.space && i < len(value); i++ {
		vec[i] = value[i]
	}

	k.mu.Lock()
	backend := k.backend
	k.mu.Unlock()

	ascending := backend.searchKNN(vec, k2)
	out := make([]DistanceID, len(ascending))
	for i, d := range ascending {
		out[len(ascending)-1-i] = d
	}
	return out
}
