// Package database implements the database root: it loads and saves
// every collection under a data directory and runs the periodic
// manager loop (TTL sweep, metadata flush, cursor reaping).
package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kvindex/knndb/pkg/collection"
	"github.com/kvindex/knndb/pkg/cursor"
	"github.com/kvindex/knndb/pkg/domain"
)

// collectionDirPrefix names the on-disk directories holding one
// collection each.
const collectionDirPrefix = "col_"

// Database is the root object: a named, RWMutex-guarded map of
// collections rooted at dataPath, plus a shared cursor registry.
type Database struct {
	mu          sync.RWMutex
	dataPath    string
	maxElements int

	collections map[string]*collection.Collection
	cursors     *cursor.Registry

	mgrOnce manager
}

// Option configures a Database at construction time.
type Option func(*Database)

// WithDataDir overrides the default data directory ("./data").
func WithDataDir(dir string) Option {
	return func(db *Database) { db.dataPath = dir }
}

// WithMaxElementsInStorage overrides the default per-segment document
// cap (MAX_ELEMENTS_IN_STORAGE, default 50000).
func WithMaxElementsInStorage(n int) Option {
	return func(db *Database) {
		if n > 0 {
			db.maxElements = n
		}
	}
}

// New creates an empty Database. Call Load to populate it from disk.
func New(opts ...Option) *Database {
	db := &Database{
		dataPath:    "./data",
		maxElements: domain.DefaultMaxElementsInStorage,
		collections: make(map[string]*collection.Collection),
		cursors:     cursor.NewRegistry(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Cursors exposes the database's shared cursor registry.
func (db *Database) Cursors() *cursor.Registry { return db.cursors }

// DataPath returns the directory this database is rooted at.
func (db *Database) DataPath() string { return db.dataPath }

// Collection returns the named collection, if loaded.
func (db *Database) Collection(name string) (*collection.Collection, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.collections[name]
	return c, ok
}

// Collections returns a snapshot of every loaded collection.
func (db *Database) Collections() []*collection.Collection {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*collection.Collection, 0, len(db.collections))
	for _, c := range db.collections {
		out = append(out, c)
	}
	return out
}

// CreateCollection creates a new, empty, on-disk collection and
// registers it. Returns the existing collection without error if one
// of this name already exists.
func (db *Database) CreateCollection(name string) (*collection.Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if c, ok := db.collections[name]; ok {
		return c, nil
	}
	c, err := collection.Create(name, db.dataPath, db.maxElements)
	if err != nil {
		return nil, fmt.Errorf("database: create collection %s: %w", name, err)
	}
	db.collections[name] = c
	return c, nil
}

// Load scans dataPath for col_* directories and loads each as a
// collection, in parallel. A collection whose metadata or segments
// cannot be read is logged and skipped rather than aborting the whole
// load — the same crash-leftover tolerance a single segment applies
// to its own file applies here at the collection level.
func (db *Database) Load() error {
	entries, err := os.ReadDir(db.dataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(db.dataPath, 0o755)
		}
		return fmt.Errorf("database: read data dir %s: %w", db.dataPath, err)
	}

	type loaded struct {
		name string
		c    *collection.Collection
		err  error
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), collectionDirPrefix) {
			dirs = append(dirs, entry.Name())
		}
	}

	results := make(chan loaded, len(dirs))
	var wg sync.WaitGroup
	for _, name := range dirs {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			dir := filepath.Join(db.dataPath, name)
			c, err := collection.Load(dir, db.maxElements)
			results <- loaded{name: name, c: c, err: err}
		}(name)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	db.mu.Lock()
	defer db.mu.Unlock()
	for r := range results {
		if r.err != nil {
			log.Printf("WARN: database: skipping unloadable collection dir %s: %v", r.name, r.err)
			continue
		}
		db.collections[r.c.Name()] = r.c
	}
	return nil
}

// Save flushes every segment and writes collection.metadata for every
// loaded collection. Per-collection metadata writes are excluded from
// overlapping each other via the collection's own saveLock; Save
// itself does not globally serialize against a concurrent Save call.
func (db *Database) Save() error {
	for _, c := range db.Collections() {
		if err := c.Flush(); err != nil {
			return fmt.Errorf("database: save: %w", err)
		}
		if err := c.SaveMetadata(); err != nil {
			return fmt.Errorf("database: save: %w", err)
		}
	}
	return nil
}
