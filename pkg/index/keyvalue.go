package index

import (
	"crypto/sha256"
	"encoding/hex"

	json "github.com/goccy/go-json"

	"github.com/kvindex/knndb/pkg/domain"
)

// KeyValueIndex maps the serialized JSON form of one field's value to
// the list of document ids carrying it. When hashed, the value is
// SHA-256-ed first for a fixed-length, coarser key.
type KeyValueIndex struct {
	*base
	keyName string
	hashed  bool
	data    map[string][]uint64
}

func NewKeyValueIndex(name, keyName string, hashed bool) *KeyValueIndex {
	return &KeyValueIndex{
		base:    newBase(name, TypeKeyValue),
		keyName: keyName,
		hashed:  hashed,
		data:    make(map[string][]uint64),
	}
}

func (k *KeyValueIndex) Reset() {
	k.markBuilding()
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data = make(map[string][]uint64)
}

func (k *KeyValueIndex) IncludedKeys() []string { return []string{k.keyName} }

func (k *KeyValueIndex) SaveMetadata() Spec {
	return Spec{Name: k.name, Type: TypeKeyValue, KeyName: k.keyName, IsHashedIndex: k.hashed}
}

// AddItem extracts the indexed field from doc and, if present, adds
// the document's id to that value's bucket. A doc with no usable id
// or missing field is skipped silently.
func (k *KeyValueIndex) AddItem(doc map[string]interface{}) {
	value, ok := doc[k.keyName]
	if !ok {
		return
	}
	id, ok := domain.ToUint64(doc["id"])
	if !ok {
		return
	}
	key, err := k.serializeKey(value)
	if err != nil {
		return
	}
	k.mu.Lock()
	k.data[key] = append(k.data[key], id)
	k.mu.Unlock()
}

func (k *KeyValueIndex) serializeKey(value interface{}) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	if !k.hashed {
		return string(raw), nil
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// SerializeQueryValue renders a query value the same way AddItem
// would key it, for use by the executor's equality probe.
func (k *KeyValueIndex) SerializeQueryValue(value interface{}) (string, error) {
	return k.serializeKey(value)
}

// Perform looks up each already-serialized value and returns the
// union of matching ids, one lookup per value, unique ids overall.
func (k *KeyValueIndex) Perform(values []string) []uint64 {
	k.waitReady()
	k.mu.Lock()
	defer k.mu.Unlock()

	seen := make(map[uint64]bool)
	var out []uint64
	for _, v := range values {
		for _, id := range k.data[v] {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

