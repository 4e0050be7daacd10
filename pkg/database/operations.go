package database

import (
	"fmt"

	"github.com/kvindex/knndb/pkg/cursor"
	"github.com/kvindex/knndb/pkg/domain"
	"github.com/kvindex/knndb/pkg/index"
	"github.com/kvindex/knndb/pkg/query"
)

// GetDocuments fetches the requested ids from collName, wherever they
// live, applying projection.
func (db *Database) GetDocuments(collName string, ids []uint64, projection map[string]interface{}) ([]domain.Document, error) {
	c, ok := db.Collection(collName)
	if !ok {
		return nil, fmt.Errorf("database: collection %s not found", collName)
	}
	return c.GetDocuments(ids, projection)
}

// OpenCursor registers a new cursor over a ranked result list, scoped
// to collName, and returns it.
func (db *Database) OpenCursor(collName string, ids []uint64, projection map[string]interface{}, opts ...cursor.Option) (*cursor.Cursor, error) {
	c, ok := db.Collection(collName)
	if !ok {
		return nil, fmt.Errorf("database: collection %s not found", collName)
	}
	return db.cursors.Open(c, ids, projection, opts...), nil
}

// Insert routes docs into collName's segments, assigning ids where
// missing, and schedules an asynchronous index rebuild: every mutation
// triggers a background full rebuild of the collection's catalog.
func (db *Database) Insert(collName string, docs []domain.Document) ([]uint64, error) {
	c, ok := db.Collection(collName)
	if !ok {
		return nil, fmt.Errorf("database: collection %s not found", collName)
	}
	ids, err := c.Insert(docs)
	if err != nil {
		return nil, err
	}
	go c.BuildIndexes()
	return ids, nil
}

// Select runs query against collName's catalog and returns the ranked,
// normalized result list (no document fetch yet — callers needing
// documents use GetDocuments or open a cursor over the ids).
func (db *Database) Select(collName string, queryDoc map[string]interface{}) ([]query.Result, error) {
	c, ok := db.Collection(collName)
	if !ok {
		return nil, fmt.Errorf("database: collection %s not found", collName)
	}
	return query.Execute(c, queryDoc)
}

// Update applies upd to every document selected by queryDoc, wherever
// it lives, and schedules a rebuild. Returns the number of documents
// touched.
func (db *Database) Update(collName string, queryDoc map[string]interface{}, upd domain.Document) (int, error) {
	c, ok := db.Collection(collName)
	if !ok {
		return 0, fmt.Errorf("database: collection %s not found", collName)
	}
	results, err := query.Execute(c, queryDoc)
	if err != nil {
		return 0, err
	}
	touched := 0
	for _, r := range results {
		ok, err := c.EditDocument(r.ID, upd)
		if err != nil {
			return touched, err
		}
		if ok {
			touched++
		}
	}
	if touched > 0 {
		go c.BuildIndexes()
	}
	return touched, nil
}

// Remove deletes every document selected by queryDoc and schedules a
// rebuild. Returns the number of documents removed.
func (db *Database) Remove(collName string, queryDoc map[string]interface{}) (int, error) {
	c, ok := db.Collection(collName)
	if !ok {
		return 0, fmt.Errorf("database: collection %s not found", collName)
	}
	results, err := query.Execute(c, queryDoc)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, r := range results {
		if c.RemoveDocument(r.ID) {
			removed++
		}
	}
	if removed > 0 {
		go c.BuildIndexes()
	}
	return removed, nil
}

// CreateIndex adds spec to collName's catalog and triggers a rebuild.
func (db *Database) CreateIndex(collName string, spec index.Spec) error {
	c, ok := db.Collection(collName)
	if !ok {
		return fmt.Errorf("database: collection %s not found", collName)
	}
	c.CreateIndex(spec)
	return nil
}
