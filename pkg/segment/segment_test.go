package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvindex/knndb/pkg/domain"
)

func newTestSegment(t *testing.T) (*Segment, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seg0.knndb")
	s, err := Open(path)
	require.NoError(t, err)
	return s, dir
}

func TestInsertAndSaveRoundTrip(t *testing.T) {
	s, dir := newTestSegment(t)

	require.NoError(t, s.Insert(domain.Document{"id": uint64(1), "title": "A"}))
	require.NoError(t, s.Insert(domain.Document{"id": uint64(2), "title": "B"}))
	require.NoError(t, s.Save())

	assert.Equal(t, 2, s.Count())

	reopened, err := Open(s.Path())
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())
	assert.True(t, reopened.SavedHere(1))
	assert.True(t, reopened.SavedHere(2))

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1, "save should have removed the old file")
}

func TestRemoveThenSaveLeavesTombstone(t *testing.T) {
	s, _ := newTestSegment(t)
	require.NoError(t, s.Insert(domain.Document{"id": uint64(1), "n": float64(1)}))
	require.NoError(t, s.Insert(domain.Document{"id": uint64(2), "n": float64(2)}))
	require.NoError(t, s.Insert(domain.Document{"id": uint64(3), "n": float64(3)}))
	require.NoError(t, s.Save())

	assert.True(t, s.Remove(2))
	require.NoError(t, s.Save())

	assert.Equal(t, 2, s.Count())
	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), EmptyRowSequence)
}

func TestRemovedSlotIsRecycledByNextInsert(t *testing.T) {
	s, _ := newTestSegment(t)
	require.NoError(t, s.Insert(domain.Document{"id": uint64(1)}))
	require.NoError(t, s.Insert(domain.Document{"id": uint64(2)}))
	require.NoError(t, s.Save())
	s.Remove(1)
	require.NoError(t, s.Save())

	require.NoError(t, s.Insert(domain.Document{"id": uint64(3)}))
	require.NoError(t, s.Save())

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), EmptyRowSequence, "the tombstoned slot should have been reused")
}

func TestEditPendingInsertAppliesDirectly(t *testing.T) {
	s, _ := newTestSegment(t)
	require.NoError(t, s.Insert(domain.Document{"id": uint64(1), "count": float64(1)}))

	ok, err := s.Edit(1, domain.Document{"count": float64(9)})
	require.NoError(t, err)
	assert.True(t, ok)

	docs, err := s.Get([]uint64{1}, nil, false)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, float64(9), docs[0]["count"])
}

func TestEditFlushedDocumentReadYourOwnWrite(t *testing.T) {
	s, _ := newTestSegment(t)
	require.NoError(t, s.Insert(domain.Document{"id": uint64(7), "count": float64(4)}))
	require.NoError(t, s.Save())

	ok, err := s.Edit(7, domain.Document{
		"#inc": map[string]interface{}{"key": "count", "value": float64(3)},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	docs, err := s.Get([]uint64{7}, nil, false)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, float64(7), docs[0]["count"])

	require.NoError(t, s.Save())
	reopened, err := Open(s.Path())
	require.NoError(t, err)
	docs, err = reopened.Get([]uint64{7}, nil, false)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, float64(7), docs[0]["count"])
}

func TestGetProjection(t *testing.T) {
	s, _ := newTestSegment(t)
	require.NoError(t, s.Insert(domain.Document{"id": uint64(1), "title": "A", "body": "long"}))
	require.NoError(t, s.Save())

	docs, err := s.Get([]uint64{1}, map[string]interface{}{"title": true}, false)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, domain.Document{"id": uint64(1), "title": "A"}, docs[0])
}

func TestForEachFlushesThenStreams(t *testing.T) {
	s, _ := newTestSegment(t)
	require.NoError(t, s.Insert(domain.Document{"id": uint64(1)}))
	require.NoError(t, s.Insert(domain.Document{"id": uint64(2)}))

	var seen []uint64
	err := s.ForEach(func(doc domain.Document) error {
		id, _ := doc.ID()
		seen = append(seen, id)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2}, seen)
}

func TestOpenRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.knndb")
	require.NoError(t, os.WriteFile(path, []byte("not json\n"), 0o644))

	_, err := Open(path)
	assert.Error(t, err, "a crash-leftover truncated file must fail loudly so the collection loader can drop it")
}
