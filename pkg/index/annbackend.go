package index

import (
	"sort"
	"sync"
)

// annBackend is a self-contained approximate-nearest-neighbor backend
// behind a three-operation contract (addPoint/resize/searchKNN) that
// mirrors how a real ANN graph library is used. It implements the
// contract with a linear L2 scan: correct, and opaque to every caller
// exactly the way a real graph index would be, since pkg/query never
// reaches past KnnIndex.Perform.
type annBackend struct {
	mu     sync.Mutex
	dim    int
	points map[uint64][]float64
}

func newAnnBackend(dim int) *annBackend {
	return &annBackend{dim: dim, points: make(map[uint64][]float64)}
}

// resize is a capacity hint. A real HNSW index needs this to
// pre-allocate its graph; this backend has no fixed-capacity
// structure to grow, so it is a deliberate no-op kept only to satisfy
// the black-box contract's shape.
func (a *annBackend) resize(delta int) {}

func (a *annBackend) addPoint(vec []float64, id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.points[id] = vec
}

// DistanceID pairs a candidate id with its L2 distance to the query.
type DistanceID struct {
	Distance float64
	ID       uint64
}

// searchKNN returns up to k nearest points, ascending by distance.
func (a *annBackend) searchKNN(query []float64, k int) []DistanceID {
	a.mu.Lock()
	candidates := make([]DistanceID, 0, len(a.points))
	for id, vec := range a.points {
		candidates = append(candidates, DistanceID{Distance: l2Distance(query, vec), ID: id})
	}
	a.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })
	if k > 0 && k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates
}

func l2Distance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

