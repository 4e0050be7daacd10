// Package update implements the small JSON update language applied to
// documents in place: plain field replacement plus the "#inc"
// operator, and the companion projection ("reduce")
// used to trim documents before they leave the engine. Updates clone
// the original document before mutating it so a failed update never
// corrupts the stored copy.
package update

import "github.com/kvindex/knndb/pkg/domain"

// incOperator is the payload of an "#inc" clause: {"key": "...",
// "value": <number>}.
type incOperator struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Apply returns a new document built by cloning old and then, for each
// key in the update document, either overwriting the field (plain
// keys) or dispatching to an operator (keys prefixed with "#").
//
// Unknown "#" operators are rejected with a domain.OperatorError:
// silently ignoring an update is a worse failure mode for a document
// store than refusing it.
func Apply(old domain.Document, upd domain.Document) (domain.Document, error) {
	out := old.Clone()
	for key, val := range upd {
		if len(key) == 0 || key[0] != '#' {
			out[key] = val
			continue
		}
		switch key {
		case "#inc":
			if err := applyInc(out, val); err != nil {
				return nil, err
			}
		default:
			return nil, domain.NewError(domain.OperatorError, "unknown update operator "+key)
		}
	}
	return out, nil
}

func applyInc(doc domain.Document, raw interface{}) error {
	spec, ok := raw.(map[string]interface{})
	if !ok {
		return domain.NewError(domain.WrongType, "#inc requires an object with key/value")
	}
	keyName, ok := spec["key"].(string)
	if !ok || keyName == "" {
		return domain.NewError(domain.MissingKeys, "#inc missing field key")
	}
	incValue, ok := domain.ToFloat64(spec["value"])
	if !ok {
		return domain.NewError(domain.WrongType, "#inc value must be numeric")
	}
	prev := 0.0
	if existing, present := doc[keyName]; present {
		if f, ok := domain.ToFloat64(existing); ok {
			prev = f
		}
	}
	doc[keyName] = prev + incValue
	return nil
}

// Reduce applies a projection to doc. An empty/nil projection returns
// doc unchanged. Otherwise the result always contains "id" plus every
// field named by a truthy projection entry that exists on doc.
func Reduce(doc domain.Document, projection map[string]interface{}) domain.Document {
	if len(projection) == 0 {
		return doc
	}
	out := domain.Document{}
	if id, ok := doc["id"]; ok {
		out["id"] = id
	}
	for field, want := range projection {
		if !truthy(want) {
			continue
		}
		if v, ok := doc[field]; ok {
			out[field] = v
		}
	}
	return out
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return domain.IsTruthy(t)
	default:
		return false
	}
}
