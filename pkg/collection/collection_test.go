package collection

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvindex/knndb/pkg/domain"
	"github.com/kvindex/knndb/pkg/index"
)

func newTestCollection(t *testing.T) *Collection {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "col_books")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return New("books", dir, 0)
}

func TestInsertRoundTrip(t *testing.T) {
	c := newTestCollection(t)
	ids, err := c.Insert([]domain.Document{
		{"title": "A"},
		{"title": "B"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NoError(t, c.Flush())

	assert.Equal(t, 2, c.CountDocuments())
	all := c.AllIDs()
	assert.ElementsMatch(t, ids, all)
}

func TestInsertWithExplicitIDCollisionRejected(t *testing.T) {
	c := newTestCollection(t)
	_, err := c.Insert([]domain.Document{{"id": uint64(7), "title": "A"}})
	require.NoError(t, err)

	_, err = c.Insert([]domain.Document{{"id": uint64(7), "title": "B"}})
	assert.Error(t, err)
}

func TestRebuildUnderConcurrentReadsNeverObservesEmptyCatalog(t *testing.T) {
	c := newTestCollection(t)
	c.SetSpecs([]index.Spec{{Name: "by_color", Type: index.TypeKeyValue, KeyName: "color"}})

	for i := 0; i < 50; i++ {
		_, err := c.Insert([]domain.Document{{"color": "red"}})
		require.NoError(t, err)
	}
	require.NoError(t, c.Flush())
	c.BuildIndexes()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 4)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				idx, ok := c.Catalog().Get("by_color")
				if !ok {
					errs <- assertionError("catalog entry missing mid-rebuild")
					return
				}
				kv, ok := idx.(*index.KeyValueIndex)
				if !ok {
					errs <- assertionError("unexpected index type mid-rebuild")
					return
				}
				key, _ := kv.SerializeQueryValue("red")
				_ = kv.Perform([]string{key})
			}
		}()
	}

	for i := 0; i < 10; i++ {
		c.BuildIndexes()
	}
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

type assertionError string

func (e assertionError) Error() string { return string(e) }

func TestTTLSweepRemovesExpiredDocuments(t *testing.T) {
	c := newTestCollection(t)
	past := time.Now().Add(-time.Minute).Unix()
	ids, err := c.Insert([]domain.Document{
		{"title": "expired", "&ttl": float64(past)},
		{"title": "fresh"},
	})
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	removed, err := c.SweepExpired(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.CountDocuments())
	assert.NotContains(t, c.AllIDs(), ids[0])
}

func TestLoadDropsUnparsableSegmentFile(t *testing.T) {
	c := newTestCollection(t)
	_, err := c.Insert([]domain.Document{{"title": "ok"}})
	require.NoError(t, err)
	require.NoError(t, c.Flush())
	require.NoError(t, c.SaveMetadata())

	garbagePath := filepath.Join(c.Dir(), "garbage.knndb")
	require.NoError(t, os.WriteFile(garbagePath, []byte("not json\nnot json either\n"), 0o644))

	reloaded, err := Load(c.Dir(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.CountDocuments())
	_, statErr := os.Stat(garbagePath)
	assert.True(t, os.IsNotExist(statErr), "unparsable segment file should have been deleted")
}
