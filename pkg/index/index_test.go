package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildReady(spec Spec) Index {
	idx := Build(spec)
	idx.Finish()
	return idx
}

func TestKeyValueIndexEqualityHit(t *testing.T) {
	idx := NewKeyValueIndex("color", "color", false)
	idx.AddItem(map[string]interface{}{"id": uint64(42), "color": "red"})
	idx.Finish()

	serialized, err := idx.SerializeQueryValue("red")
	require.NoError(t, err)
	ids := idx.Perform([]string{serialized})
	assert.Equal(t, []uint64{42}, ids)
}

func TestKeyValueIndexHashed(t *testing.T) {
	idx := NewKeyValueIndex("color_h", "color", true)
	idx.AddItem(map[string]interface{}{"id": uint64(1), "color": "red"})
	idx.Finish()

	serialized, err := idx.SerializeQueryValue("red")
	require.NoError(t, err)
	assert.NotEqual(t, `"red"`, serialized, "hashed index should not key on the raw JSON value")
	assert.Equal(t, []uint64{1}, idx.Perform([]string{serialized}))
}

func TestKeyValueIndexDistinguishesStringAndNumber(t *testing.T) {
	idx := NewKeyValueIndex("n", "n", false)
	idx.AddItem(map[string]interface{}{"id": uint64(1), "n": "42"})
	idx.AddItem(map[string]interface{}{"id": uint64(2), "n": float64(42)})
	idx.Finish()

	strKey, _ := idx.SerializeQueryValue("42")
	numKey, _ := idx.SerializeQueryValue(float64(42))
	assert.Equal(t, []uint64{1}, idx.Perform([]string{strKey}))
	assert.Equal(t, []uint64{2}, idx.Perform([]string{numKey}))
}

func TestMultipleKeyValueIndexANDSemantics(t *testing.T) {
	idx := NewMultipleKeyValueIndex("cs", []string{"color", "size"}, nil)
	idx.AddItem(map[string]interface{}{"id": uint64(1), "color": "red", "size": "L"})
	idx.AddItem(map[string]interface{}{"id": uint64(2), "color": "red", "size": "M"})
	idx.AddItem(map[string]interface{}{"id": uint64(3), "color": "blue", "size": "L"})
	idx.Finish()

	ids, err := idx.Perform(map[string]interface{}{"color": "red", "size": "L"})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)
}

func TestRangeIndexInclusiveBounds(t *testing.T) {
	idx := NewRangeIndex("n", "n")
	for i := 0; i <= 10; i++ {
		idx.AddItem(map[string]interface{}{"id": uint64(i), "n": float64(i)})
	}
	idx.Finish()

	ids := idx.Perform(5, 8)
	assert.ElementsMatch(t, []uint64{5, 6, 7, 8}, ids)
	assert.NotContains(t, ids, uint64(4))
	assert.NotContains(t, ids, uint64(9))
}

func TestRangeIndexCoercesNumericStrings(t *testing.T) {
	idx := NewRangeIndex("n", "n")
	idx.AddItem(map[string]interface{}{"id": uint64(1), "n": "7.5"})
	idx.Finish()
	assert.Equal(t, []uint64{1}, idx.Perform(0, 10))
}

func TestKnnIndexOrdering(t *testing.T) {
	idx := NewKnnIndex("vec", "vec", 3)
	idx.AddItem(map[string]interface{}{"id": uint64(1), "vec": []interface{}{0.0, 0.0, 0.0}})
	idx.AddItem(map[string]interface{}{"id": uint64(2), "vec": []interface{}{1.0, 0.0, 0.0}})
	idx.AddItem(map[string]interface{}{"id": uint64(3), "vec": []interface{}{10.0, 0.0, 0.0}})
	idx.Finish()

	results := idx.Perform([]float64{0, 0, 0}, 3)
	require.Len(t, results, 3)
	// Descending by distance: farthest (id 3) first, nearest (id 1) last.
	assert.Equal(t, uint64(3), results[0].ID)
	assert.Equal(t, uint64(1), results[2].ID)
	assert.Greater(t, results[0].Distance, results[1].Distance)
	assert.Greater(t, results[1].Distance, results[2].Distance)
}

func TestKnnIndexPadsShortVectors(t *testing.T) {
	idx := NewKnnIndex("vec", "vec", 4)
	idx.AddItem(map[string]interface{}{"id": uint64(1), "vec": []interface{}{1.0, 2.0}})
	idx.Finish()

	results := idx.Perform([]float64{1, 2, 0, 0}, 1)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Distance)
}

func TestCatalogSwapRetainsDisplaced(t *testing.T) {
	c := NewCatalog()
	oldIdx := buildReady(Spec{Name: "color", Type: TypeKeyValue, KeyName: "color"})
	c.Put("color", oldIdx)

	newIdx := buildReady(Spec{Name: "color", Type: TypeKeyValue, KeyName: "color"})
	c.Swap(map[string]Index{"color": newIdx})

	got, ok := c.Get("color")
	require.True(t, ok)
	assert.Same(t, newIdx, got)

	retained := c.Retained()
	require.Len(t, retained, 1)
	assert.Same(t, oldIdx, retained[0])
}

func TestSpecWireRoundTrip(t *testing.T) {
	spec := Spec{Name: "cs", Type: TypeMultipleKeyValue, KeyNames: []string{"color", "size"}, IsHashedIndexes: []bool{false, true}}
	wire := spec.ToWire()
	back := FromWire(wire)
	assert.Equal(t, spec.Name, back.Name)
	assert.Equal(t, spec.Type, back.Type)
	assert.Equal(t, spec.KeyNames, back.KeyNames)
	assert.Equal(t, spec.IsHashedIndexes, back.IsHashedIndexes)
}
