// Package query implements the query executor: it turns a query
// document into index probes, accumulates per-document scores, and
// returns a ranked, limited, normalized result list.
package query

import (
	"sort"
	"strings"

	"github.com/kvindex/knndb/pkg/domain"
	"github.com/kvindex/knndb/pkg/index"
)

// Collection is the slice of collection behavior the executor needs.
// pkg/collection.Collection satisfies this.
type Collection interface {
	IndexedKeys() map[string][]index.Index
	AllIDs() []uint64
	CountDocuments() int
}

// Result is one ranked, normalized hit.
type Result struct {
	ID    uint64
	Score float64
}

const defaultLimit = 1000

// Execute runs query against coll and returns results sorted
// descending by normalized score, truncated to the requested (or
// default) limit.
func Execute(coll Collection, query map[string]interface{}) ([]Result, error) {
	for key := range query {
		if strings.HasPrefix(key, "#") {
			switch key {
			case "#limit", "#similar", "#range":
			default:
				return nil, domain.NewError(domain.OperatorError, "unknown operator "+key)
			}
		}
	}

	limit := defaultLimit
	if raw, ok := query["#limit"]; ok {
		if f, ok := domain.ToFloat64(raw); ok && f > 0 {
			limit = int(f)
		}
	}

	scores := make(map[uint64]float64)
	maxScore := 0.0
	nonTrivial := false

	equality := make(map[string]interface{})
	for key, value := range query {
		if !strings.HasPrefix(key, "#") {
			equality[key] = value
		}
	}

	if len(equality) > 0 {
		nonTrivial = true
		probedComposites := make(map[index.Index]bool)
		indexedKeys := coll.IndexedKeys()
		for key, value := range equality {
			maxScore += 1000
			for _, idx := range indexedKeys[key] {
				switch v := idx.(type) {
				case *index.KeyValueIndex:
					serialized, err := v.SerializeQueryValue(value)
					if err != nil {
						return nil, domain.WrapError(domain.WrongType, "could not serialize query value for "+key, err)
					}
					for _, id := range v.Perform([]string{serialized}) {
						scores[id] += 1000
					}
				case *index.MultipleKeyValueIndex:
					if probedComposites[idx] {
						continue
					}
					probedComposites[idx] = true
					n := 0
					for _, k := range v.IncludedKeys() {
						if _, present := equality[k]; present {
							n++
						}
					}
					ids, err := v.Perform(equality)
					if err != nil {
						return nil, err
					}
					for _, id := range ids {
						scores[id] += float64(1000 * n)
					}
				}
			}
		}
	}

	if simRaw, ok := query["#similar"]; ok {
		if err := applySimilar(coll, scores, simRaw); err != nil {
			return nil, err
		}
		nonTrivial = true
	}

	if rangeRaw, ok := query["#range"]; ok {
		added, err := applyRange(coll, scores, rangeRaw)
		if err != nil {
			return nil, err
		}
		if added {
			maxScore += 1000
		}
		nonTrivial = true
	}

	if !nonTrivial {
		maxScore = 1000
		for _, id := range coll.AllIDs() {
			scores[id] = 1000
		}
	}

	var results []Result
	for id, score := range scores {
		if score >= maxScore {
			results = append(results, Result{ID: id, Score: score})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}

	denom := maxScore
	if denom < 1 {
		denom = 1
	}
	for i := range results {
		results[i].Score /= denom
	}
	return results, nil
}

func applySimilar(coll Collection, scores map[uint64]float64, raw interface{}) error {
	spec, ok := raw.(map[string]interface{})
	if !ok {
		return domain.NewError(domain.WrongType, "#similar must be an object")
	}
	fieldName, ok := spec["fieldName"].(string)
	if !ok || fieldName == "" {
		return domain.NewError(domain.MissingKeys, "#similar missing fieldName")
	}
	rawVec, ok := spec["value"].([]interface{})
	if !ok {
		return domain.NewError(domain.WrongType, "#similar value must be an array of numbers")
	}
	if len(rawVec) == 0 {
		return domain.NewError(domain.ZeroItems, "#similar value must not be empty")
	}
	vec := make([]float64, len(rawVec))
	for i, v := range rawVec {
		f, ok := domain.ToFloat64(v)
		if !ok {
			return domain.NewError(domain.WrongType, "#similar value must contain only numbers")
		}
		vec[i] = f
	}

	k := coll.CountDocuments()
	if rawK, ok := spec["k"]; ok {
		if f, ok := domain.ToFloat64(rawK); ok && f > 0 {
			k = int(f)
		}
	}

	var knnIdx *index.KnnIndex
	for _, idx := range coll.IndexedKeys()[fieldName] {
		if ki, ok := idx.(*index.KnnIndex); ok {
			knnIdx = ki
			break
		}
	}
	if knnIdx == nil {
		return domain.NewError(domain.IndexMissing, "no Knn index on "+fieldName)
	}

	results := knnIdx.Perform(vec, k)
	if len(results) == 0 {
		return nil
	}
	maxDistance := results[0].Distance + 1
	denom := maxDistance / 850
	if denom == 0 {
		denom = 1
	}
	for _, r := range results {
		scores[r.ID] += (maxDistance - r.Distance) / denom
	}
	return nil
}

func applyRange(coll Collection, scores map[uint64]float64, raw interface{}) (bool, error) {
	spec, ok := raw.(map[string]interface{})
	if !ok {
		return false, domain.NewError(domain.WrongType, "#range must be an object")
	}
	fieldName, ok := spec["fieldName"].(string)
	if !ok || fieldName == "" {
		return false, domain.NewError(domain.MissingKeys, "#range missing fieldName")
	}
	lower, ok1 := domain.ToFloat64(spec["lower"])
	higher, ok2 := domain.ToFloat64(spec["higher"])
	if !ok1 || !ok2 {
		return false, domain.NewError(domain.WrongType, "#range lower/higher must be numeric")
	}

	var rangeIdx *index.RangeIndex
	for _, idx := range coll.IndexedKeys()[fieldName] {
		if ri, ok := idx.(*index.RangeIndex); ok {
			rangeIdx = ri
			break
		}
	}
	if rangeIdx == nil {
		return false, domain.NewError(domain.IndexMissing, "no Range index on "+fieldName)
	}

	for _, id := range rangeIdx.Perform(lower, higher) {
		scores[id] += 1000
	}
	return true, nil
}
