package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvindex/knndb/pkg/domain"
)

func TestApply_PlainFieldOverwrite(t *testing.T) {
	old := domain.Document{"id": uint64(1), "title": "A"}
	out, err := Apply(old, domain.Document{"title": "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", out["title"])
	assert.Equal(t, uint64(1), out["id"])
	assert.Equal(t, "A", old["title"], "Apply must not mutate the original document")
}

func TestApply_Inc(t *testing.T) {
	old := domain.Document{"id": uint64(7), "count": float64(4)}
	out, err := Apply(old, domain.Document{
		"#inc": map[string]interface{}{"key": "count", "value": float64(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(7), out["count"])
}

func TestApply_IncOnMissingFieldStartsAtZero(t *testing.T) {
	old := domain.Document{"id": uint64(1)}
	out, err := Apply(old, domain.Document{
		"#inc": map[string]interface{}{"key": "visits", "value": float64(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(1), out["visits"])
}

func TestApply_UnknownOperatorErrors(t *testing.T) {
	old := domain.Document{"id": uint64(1)}
	_, err := Apply(old, domain.Document{"#bogus": map[string]interface{}{}})
	require.Error(t, err)
	assert.Equal(t, domain.OperatorError, domain.KindOf(err))
}

func TestReduce_EmptyProjectionReturnsUnchanged(t *testing.T) {
	doc := domain.Document{"id": uint64(1), "title": "A", "body": "..."}
	out := Reduce(doc, nil)
	assert.Equal(t, doc, out)
}

func TestReduce_KeepsIdRegardlessOfProjection(t *testing.T) {
	doc := domain.Document{"id": uint64(1), "title": "A", "body": "..."}
	out := Reduce(doc, map[string]interface{}{"title": true})
	assert.Equal(t, domain.Document{"id": uint64(1), "title": "A"}, out)
}

func TestReduce_FalsyEntryIsExcluded(t *testing.T) {
	doc := domain.Document{"id": uint64(1), "title": "A", "body": "..."}
	out := Reduce(doc, map[string]interface{}{"title": true, "body": false})
	assert.Equal(t, domain.Document{"id": uint64(1), "title": "A"}, out)
}
