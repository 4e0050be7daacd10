package index

// MultipleKeyValueIndex holds one KeyValueIndex sub-index per field
// and AND-scores a multi-field equality probe: only ids that hit on
// every requested key are returned.
type MultipleKeyValueIndex struct {
	*base
	keyNames   []string
	subIndexes map[string]*KeyValueIndex
}

func NewMultipleKeyValueIndex(name string, keyNames []string, hashed []bool) *MultipleKeyValueIndex {
	m := &MultipleKeyValueIndex{
		base:       newBase(name, TypeMultipleKeyValue),
		keyNames:   keyNames,
		subIndexes: make(map[string]*KeyValueIndex, len(keyNames)),
	}
	for i, k := range keyNames {
		isHashed := false
		if i < len(hashed) {
			isHashed = hashed[i]
		}
		m.subIndexes[k] = NewKeyValueIndex(name+"."+k, k, isHashed)
	}
	return m
}

func (m *MultipleKeyValueIndex) Reset() {
	m.markBuilding()
	for _, sub := range m.subIndexes {
		sub.Reset()
	}
}

// Finish finishes every sub-index (each uses base.Finish), then marks
// the composite index ready.
func (m *MultipleKeyValueIndex) Finish() {
	for _, sub := range m.subIndexes {
		sub.Finish()
	}
	m.markReady()
}

func (m *MultipleKeyValueIndex) IncludedKeys() []string { return m.keyNames }

func (m *MultipleKeyValueIndex) SaveMetadata() Spec {
	hashed := make([]bool, len(m.keyNames))
	for i, k := range m.keyNames {
		hashed[i] = m.subIndexes[k].hashed
	}
	return Spec{Name: m.name, Type: TypeMultipleKeyValue, KeyNames: m.keyNames, IsHashedIndexes: hashed}
}

func (m *MultipleKeyValueIndex) AddItem(doc map[string]interface{}) {
	for _, sub := range m.subIndexes {
		sub.AddItem(doc)
	}
}

// Perform runs each field's probe independently and returns only the
// ids that hit on every key present in query.
func (m *MultipleKeyValueIndex) Perform(query map[string]interface{}) ([]uint64, error) {
	hitCounts := make(map[uint64]int)
	queried := 0
	for key, value := range query {
		sub, ok := m.subIndexes[key]
		if !ok {
			continue
		}
		queried++
		serialized, err := sub.SerializeQueryValue(value)
		if err != nil {
			return nil, err
		}
		for _, id := range sub.Perform([]string{serialized}) {
			hitCounts[id]++
		}
	}
	var out []uint64
	for id, count := range hitCounts {
		if count == queried {
			out = append(out, id)
		}
	}
	return out, nil
}
