package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvindex/knndb/pkg/domain"
	"github.com/kvindex/knndb/pkg/index"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	return New(WithDataDir(t.TempDir()))
}

func TestCreateCollectionInsertSelect(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.CreateCollection("books")
	require.NoError(t, err)
	require.NoError(t, db.CreateIndex("books", index.Spec{Name: "by_title", Type: index.TypeKeyValue, KeyName: "title"}))

	ids, err := db.Insert("books", []domain.Document{{"title": "A"}, {"title": "B"}})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	c, ok := db.Collection("books")
	require.True(t, ok)
	require.NoError(t, c.Flush())
	c.BuildIndexes()

	results, err := db.Select("books", map[string]interface{}{"title": "A"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids[0], results[0].ID)
	assert.Equal(t, 1.0, results[0].Score)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db := New(WithDataDir(dir))
	_, err := db.CreateCollection("books")
	require.NoError(t, err)
	_, err = db.Insert("books", []domain.Document{{"title": "A"}})
	require.NoError(t, err)
	require.NoError(t, db.Save())

	reloaded := New(WithDataDir(dir))
	require.NoError(t, reloaded.Load())
	c, ok := reloaded.Collection("books")
	require.True(t, ok)
	assert.Equal(t, 1, c.CountDocuments())
}

func TestUpdateAndRemoveEffectedCount(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.CreateCollection("counters")
	require.NoError(t, err)
	require.NoError(t, db.CreateIndex("counters", index.Spec{Name: "by_id", Type: index.TypeKeyValue, KeyName: "id"}))

	ids, err := db.Insert("counters", []domain.Document{{"count": float64(4)}})
	require.NoError(t, err)

	c, ok := db.Collection("counters")
	require.True(t, ok)
	require.NoError(t, c.Flush())
	c.BuildIndexes()

	n, err := db.Update("counters", map[string]interface{}{"id": ids[0]}, domain.Document{
		"#inc": map[string]interface{}{"key": "count", "value": float64(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := db.GetDocuments("counters", ids, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 7.0, docs[0]["count"])

	c.BuildIndexes()
	removed, err := db.Remove("counters", map[string]interface{}{"id": ids[0]})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestCursorDrainsEveryIDExactlyOnce(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.CreateCollection("paged")
	require.NoError(t, err)

	docs := make([]domain.Document, 125)
	for i := range docs {
		docs[i] = domain.Document{"n": float64(i)}
	}
	_, err = db.Insert("paged", docs)
	require.NoError(t, err)

	c, ok := db.Collection("paged")
	require.True(t, ok)
	allIDs := c.AllIDs()
	require.Len(t, allIDs, 125)

	cur, err := db.OpenCursor("paged", allIDs, nil)
	require.NoError(t, err)

	seen := make(map[uint64]bool)
	batchCount := 0
	for {
		batch, finished := cur.RetrieveBatch()
		batchCount++
		for _, d := range batch {
			id, _ := d.ID()
			assert.False(t, seen[id], "id %d seen twice", id)
			seen[id] = true
		}
		if finished {
			break
		}
	}
	assert.Equal(t, 125, len(seen))
	assert.Equal(t, 3, batchCount)
}

func TestManagerLoopStartStopIsIdempotent(t *testing.T) {
	db := newTestDatabase(t)
	db.StartManagerLoop()
	db.StartManagerLoop()
	time.Sleep(time.Millisecond)
	db.StopManagerLoop()
	db.StopManagerLoop()
}
