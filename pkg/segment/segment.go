// Package segment implements a storage segment: one row-oriented file
// of newline-delimited JSON documents (or sentinel tombstone lines),
// plus the in-memory buffers that let inserts/edits/deletes be cheap
// until the next flush.
package segment

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/kvindex/knndb/pkg/domain"
	"github.com/kvindex/knndb/pkg/update"
)

// Segment owns one on-disk row file and the buffers of mutations
// pending against it.
type Segment struct {
	fileLock sync.Mutex

	path        string
	maxElements int

	idPositions     map[uint64]int
	newDocuments    map[uint64]domain.Document
	editedDocuments map[int]domain.Document
	removedDocuments map[int]bool
}

// Open reads path once (creating it if absent) and populates
// idPositions from its current contents. A malformed line makes Open
// fail loudly; the collection loader is expected to delete such a
// file and continue without it, tolerating a segment left behind by a
// crash mid-write.
func Open(path string, opts ...Option) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("segment: open %s: %w", path, err)
	}
	defer f.Close()

	s := &Segment{
		path:             path,
		maxElements:      DefaultMaxElements,
		idPositions:      make(map[uint64]int),
		newDocuments:     make(map[uint64]domain.Document),
		editedDocuments:  make(map[int]domain.Document),
		removedDocuments: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	index := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line != EmptyRowSequence {
			var doc domain.Document
			if err := json.Unmarshal([]byte(line), &doc); err != nil {
				return nil, fmt.Errorf("segment: parse %s line %d: %w", path, index, err)
			}
			id, ok := doc.ID()
			if !ok {
				return nil, fmt.Errorf("segment: %s line %d missing id", path, index)
			}
			s.idPositions[id] = index
		}
		index++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("segment: scan %s: %w", path, err)
	}
	return s, nil
}

// Path returns the segment's current on-disk path. It changes on
// every successful Save (the file "rolls" to a new SHA-256-derived
// name).
func (s *Segment) Path() string {
	s.fileLock.Lock()
	defer s.fileLock.Unlock()
	return s.path
}

// Count returns the number of live documents, persisted or pending.
func (s *Segment) Count() int {
	s.fileLock.Lock()
	defer s.fileLock.Unlock()
	return len(s.idPositions) + len(s.newDocuments)
}

// IsFull reports whether the segment is at or above its element cap.
func (s *Segment) IsFull() bool {
	return s.Count() >= s.maxElements
}

// ForEachID invokes fn with every live id the segment currently
// tracks, without touching the underlying file.
func (s *Segment) ForEachID(fn func(uint64)) {
	s.fileLock.Lock()
	ids := make([]uint64, 0, len(s.idPositions)+len(s.newDocuments))
	for id := range s.idPositions {
		ids = append(ids, id)
	}
	for id := range s.newDocuments {
		ids = append(ids, id)
	}
	s.fileLock.Unlock()
	for _, id := range ids {
		fn(id)
	}
}

// SavedHere reports whether id is tracked by this segment, whether
// flushed to disk or only buffered as a pending insert.
func (s *Segment) SavedHere(id uint64) bool {
	s.fileLock.Lock()
	defer s.fileLock.Unlock()
	if _, ok := s.idPositions[id]; ok {
		return true
	}
	_, ok := s.newDocuments[id]
	return ok
}

// Insert buffers doc for the next Save. doc must already carry an id.
func (s *Segment) Insert(doc domain.Document) error {
	id, ok := doc.ID()
	if !ok {
		return fmt.Errorf("segment: insert: document has no id")
	}
	s.fileLock.Lock()
	defer s.fileLock.Unlock()
	s.newDocuments[id] = doc.Clone()
	return nil
}

// Edit records a pending update for id. Returns false if the segment
// doesn't track id at all.
//
// Ids that are still pending inserts (no line index yet assigned)
// have their buffered document updated directly in place instead of
// being queued against a line index, since an id absent from
// idPositions has no line to queue against; pending inserts are
// handled as their own case rather than colliding on line index 0.
func (s *Segment) Edit(id uint64, upd domain.Document) (bool, error) {
	s.fileLock.Lock()
	defer s.fileLock.Unlock()

	if doc, ok := s.newDocuments[id]; ok {
		merged, err := update.Apply(doc, upd)
		if err != nil {
			return true, err
		}
		merged.SetID(id)
		s.newDocuments[id] = merged
		return true, nil
	}
	if lineIndex, ok := s.idPositions[id]; ok {
		s.editedDocuments[lineIndex] = upd
		return true, nil
	}
	return false, nil
}

// Remove marks id as deleted. Returns false if id isn't in
// idPositions; pending inserts are not removable this way.
func (s *Segment) Remove(id uint64) bool {
	s.fileLock.Lock()
	defer s.fileLock.Unlock()
	lineIndex, ok := s.idPositions[id]
	if !ok {
		return false
	}
	s.removedDocuments[lineIndex] = true
	delete(s.idPositions, id)
	return true
}

// Get returns documents for the requested ids (or every live document
// if all is true), applying projection. Pending edits are folded into
// the result so a Get immediately after Edit observes the update
// without requiring an intervening Save — a deliberate strengthening
// of the read path beyond the line-oriented original, since the
// update/select round trip (scenario E3) has no other synchronization
// point.
func (s *Segment) Get(ids []uint64, projection map[string]interface{}, all bool) ([]domain.Document, error) {
	s.fileLock.Lock()
	defer s.fileLock.Unlock()
	return s.getLocked(ids, projection, all)
}

func (s *Segment) getLocked(ids []uint64, projection map[string]interface{}, all bool) ([]domain.Document, error) {
	var out []domain.Document

	if all {
		for _, doc := range s.newDocuments {
			out = append(out, update.Reduce(doc.Clone(), projection))
		}
	} else {
		for _, id := range ids {
			if doc, ok := s.newDocuments[id]; ok {
				out = append(out, update.Reduce(doc.Clone(), projection))
			}
		}
	}

	rows := make(map[int]bool)
	if !all {
		for _, id := range ids {
			if lineIndex, ok := s.idPositions[id]; ok {
				rows[lineIndex] = true
			}
		}
	}
	if len(rows) == 0 && !all {
		return out, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("segment: get: open %s: %w", s.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	index := 0
	for scanner.Scan() {
		line := scanner.Text()
		if all || rows[index] {
			if line != EmptyRowSequence {
				var doc domain.Document
				if err := json.Unmarshal([]byte(line), &doc); err != nil {
					log.Printf("WARN: segment: skipping unparsable line %d in %s: %v", index, s.path, err)
					index++
					continue
				}
				if pending, ok := s.editedDocuments[index]; ok {
					if merged, err := update.Apply(doc, pending); err == nil {
						doc = merged
					}
				}
				out = append(out, update.Reduce(doc, projection))
			}
		}
		index++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("segment: get: scan %s: %w", s.path, err)
	}
	return out, nil
}

// ForEach flushes pending mutations and then invokes fn with every
// live document in the segment.
func (s *Segment) ForEach(fn func(domain.Document) error) error {
	if err := s.Save(); err != nil {
		return err
	}
	s.fileLock.Lock()
	defer s.fileLock.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("segment: for_each: open %s: %w", s.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == EmptyRowSequence {
			continue
		}
		var doc domain.Document
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			log.Printf("WARN: segment: skipping unparsable line in %s during for_each: %v", s.path, err)
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Save performs the atomic-rewrite flush protocol: pending inserts,
// edits, and removes are folded into a freshly named file, which then
// replaces the old one.
func (s *Segment) Save() error {
	s.fileLock.Lock()
	defer s.fileLock.Unlock()

	if len(s.newDocuments) == 0 && len(s.editedDocuments) == 0 && len(s.removedDocuments) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	oldName := filepath.Base(s.path)
	sum := sha256.Sum256([]byte(oldName))
	newPath := filepath.Join(dir, hex.EncodeToString(sum[:])+Extension)

	newFile, err := os.OpenFile(newPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("segment: save: create %s: %w", newPath, err)
	}
	writer := bufio.NewWriter(newFile)

	oldFile, err := os.Open(s.path)
	if err != nil {
		newFile.Close()
		return fmt.Errorf("segment: save: open %s: %w", s.path, err)
	}

	scanner := bufio.NewScanner(oldFile)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineIndex := 0
	writeErr := error(nil)
	for scanner.Scan() && writeErr == nil {
		line := scanner.Text()
		switch {
		case line == EmptyRowSequence:
			if len(s.newDocuments) > 0 {
				var pickedID uint64
				var pickedDoc domain.Document
				for id, doc := range s.newDocuments {
					pickedID, pickedDoc = id, doc
					break
				}
				writeErr = writeJSONLine(writer, pickedDoc)
				delete(s.newDocuments, pickedID)
				s.idPositions[pickedID] = lineIndex
			} else {
				_, writeErr = writer.WriteString(EmptyRowSequence + "\n")
			}
		case s.removedDocuments[lineIndex]:
			_, writeErr = writer.WriteString(EmptyRowSequence + "\n")
			delete(s.removedDocuments, lineIndex)
		default:
			if pending, ok := s.editedDocuments[lineIndex]; ok {
				var oldDoc domain.Document
				if err := json.Unmarshal([]byte(line), &oldDoc); err != nil {
					log.Printf("WARN: segment: save: unparsable line %d in %s, keeping as-is: %v", lineIndex, s.path, err)
					_, writeErr = writer.WriteString(line + "\n")
				} else {
					merged, err := update.Apply(oldDoc, pending)
					if err != nil {
						log.Printf("WARN: segment: save: update at line %d rejected, keeping original: %v", lineIndex, err)
						_, writeErr = writer.WriteString(line + "\n")
					} else {
						writeErr = writeJSONLine(writer, merged)
					}
				}
				delete(s.editedDocuments, lineIndex)
			} else {
				_, writeErr = writer.WriteString(line + "\n")
			}
		}
		lineIndex++
	}
	if writeErr == nil {
		writeErr = scanner.Err()
	}
	oldFile.Close()

	for id, doc := range s.newDocuments {
		if writeErr != nil {
			break
		}
		writeErr = writeJSONLine(writer, doc)
		s.idPositions[id] = lineIndex
		lineIndex++
	}
	s.newDocuments = make(map[uint64]domain.Document)

	if writeErr == nil {
		writeErr = writer.Flush()
	}
	newFile.Close()
	if writeErr != nil {
		os.Remove(newPath)
		return fmt.Errorf("segment: save: %w", writeErr)
	}

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: segment: save: could not remove old file %s: %v", s.path, err)
	}
	s.path = newPath
	return nil
}

func writeJSONLine(w *bufio.Writer, doc domain.Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.WriteString("\n")
	return err
}
