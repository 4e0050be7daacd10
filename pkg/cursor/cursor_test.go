package cursor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvindex/knndb/pkg/domain"
)

type fakeSource struct {
	docs map[uint64]domain.Document
}

func (f *fakeSource) GetDocuments(ids []uint64, _ map[string]interface{}) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := f.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func newFakeSource(n int) *fakeSource {
	docs := make(map[uint64]domain.Document, n)
	for i := 1; i <= n; i++ {
		docs[uint64(i)] = domain.Document{"id": uint64(i)}
	}
	return &fakeSource{docs: docs}
}

func idsRange(n int) []uint64 {
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = uint64(i + 1)
	}
	return ids
}

func TestCursorDrainsEveryIdExactlyOnce(t *testing.T) {
	source := newFakeSource(125)
	c := New(source, idsRange(125), nil, WithBatchSize(50))

	seen := make(map[uint64]bool)
	var batchSizes []int
	for {
		docs, finished := c.RetrieveBatch()
		batchSizes = append(batchSizes, len(docs))
		for _, d := range docs {
			id, _ := d.ID()
			assert.False(t, seen[id], "id %d retrieved twice", id)
			seen[id] = true
		}
		if finished {
			break
		}
	}
	assert.Equal(t, []int{50, 50, 25}, batchSizes)
	assert.Len(t, seen, 125)
}

func TestCursorAllModePrefetchesEverythingUpFront(t *testing.T) {
	source := newFakeSource(10)
	c := New(source, idsRange(10), nil, WithAllMode())

	docs, finished := c.RetrieveBatch()
	assert.True(t, finished)
	assert.Len(t, docs, 10)
}

func TestRegistrySweepExpiredRemovesStaleCursors(t *testing.T) {
	source := newFakeSource(5)
	reg := NewRegistry()
	c := reg.Open(source, idsRange(5), nil, WithBatchSize(1), WithTimeout(10*time.Millisecond))
	require.Equal(t, 1, reg.Len())

	removed := reg.SweepExpired(time.Now().Add(time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, reg.Len())
	_ = c
}

func TestRegistryRetrieveRemovesFinishedCursor(t *testing.T) {
	source := newFakeSource(3)
	reg := NewRegistry()
	c := reg.Open(source, idsRange(3), nil, WithAllMode())

	_, finished, err := reg.Retrieve(c.ID())
	require.NoError(t, err)
	assert.True(t, finished)
	assert.Equal(t, 0, reg.Len())
}
