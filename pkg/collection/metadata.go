package collection

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/kvindex/knndb/pkg/index"
	"github.com/kvindex/knndb/pkg/segment"
)

// MetadataFile is the well-known collection metadata filename.
const MetadataFile = "collection.metadata"

type metadataDoc struct {
	Name    string                   `json:"name"`
	Indexes []map[string]interface{} `json:"indexes"`
}

// Load reconstructs a collection from dir: reads collection.metadata,
// builds the index specs, then loads every .knndb segment in
// parallel. A segment whose file fails to parse is treated as a
// mid-flush crash remnant: it is deleted and loading continues.
// maxElements is the configured per-segment document cap
// (MAX_ELEMENTS_IN_STORAGE), applied to every segment opened here and
// to segments this collection creates later (a loaded segment already
// above the cap keeps its documents and only stops taking inserts).
func Load(dir string, maxElements int) (*Collection, error) {
	raw, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("collection: load %s: %w", dir, err)
	}
	var meta metadataDoc
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("collection: parse %s: %w", filepath.Join(dir, MetadataFile), err)
	}

	c := New(meta.Name, dir, maxElements)
	specs := make([]index.Spec, 0, len(meta.Indexes))
	for _, entry := range meta.Indexes {
		specs = append(specs, index.FromWire(entry))
	}
	c.SetSpecs(specs)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("collection: read dir %s: %w", dir, err)
	}

	type loaded struct {
		seg  *segment.Segment
		err  error
		path string
	}
	results := make(chan loaded, len(entries))
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), segment.Extension) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		count++
		go func(path string) {
			s, err := segment.Open(path, segment.WithMaxElements(maxElements))
			results <- loaded{seg: s, err: err, path: path}
		}(path)
	}
	for i := 0; i < count; i++ {
		r := <-results
		if r.err != nil {
			log.Printf("WARN: collection %s: dropping unparsable segment: %v", meta.Name, r.err)
			if r.path != "" {
				if rmErr := os.Remove(r.path); rmErr != nil && !os.IsNotExist(rmErr) {
					log.Printf("WARN: collection %s: could not remove unparsable segment %s: %v", meta.Name, r.path, rmErr)
				}
			}
			continue
		}
		c.addSegment(r.seg)
	}

	go c.BuildIndexes()
	return c, nil
}

// SaveMetadata writes collection.metadata atomically (truncate +
// write) under the collection's saveLock, excluding overlapping
// flushes for this collection.
func (c *Collection) SaveMetadata() error {
	c.saveLock.Lock()
	defer c.saveLock.Unlock()

	specs := c.Specs()
	meta := metadataDoc{Name: c.name, Indexes: make([]map[string]interface{}, 0, len(specs))}
	for _, spec := range specs {
		meta.Indexes = append(meta.Indexes, spec.ToWire())
	}

	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("collection %s: marshal metadata: %w", c.name, err)
	}

	path := filepath.Join(c.dir, MetadataFile)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("collection %s: write metadata: %w", c.name, err)
	}
	return nil
}

// Create makes a new, empty collection directory with no indexes.
// maxElements is the configured per-segment document cap
// (MAX_ELEMENTS_IN_STORAGE).
func Create(name, dataPath string, maxElements int) (*Collection, error) {
	dir := filepath.Join(dataPath, "col_"+name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("collection: create %s: %w", name, err)
	}
	c := New(name, dir, maxElements)
	if err := c.SaveMetadata(); err != nil {
		return nil, err
	}
	return c, nil
}
