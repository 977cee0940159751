// Package snapshot persists the whole document store and inverted index as a
// single JSON file and restores it.
//
// File layout:
//
//	{
//	  "docs":     [{"id": 1, "url": "...", "title": "...", "content": "...", "created_at": 1700000000}],
//	  "inverted": {"term": [[doc_id, term_frequency], ...]}
//	}
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/errors"
)

// Snapshot is the persisted form of an index.
type Snapshot struct {
	Docs     []index.Document             `json:"docs"`
	Inverted map[string]index.PostingList `json:"inverted"`
}

// Empty returns a snapshot with no documents and no terms.
func Empty() *Snapshot {
	return &Snapshot{
		Docs:     []index.Document{},
		Inverted: map[string]index.PostingList{},
	}
}

// FromIndex flattens ix. Documents and postings come out ordered by id so
// that equal indexes serialise to equal bytes.
func FromIndex(ix *index.Index) *Snapshot {
	return &Snapshot{
		Docs:     ix.Documents(),
		Inverted: ix.InvertedSnapshot(),
	}
}

// Index rebuilds the in-memory structures from the persisted postings.
func (s *Snapshot) Index() *index.Index {
	return index.Restore(s.Docs, s.Inverted)
}

// CorruptionError reports a snapshot file that exists but could not be read
// or decoded. Load returns it alongside an empty snapshot.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("snapshot %s unreadable: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() []error {
	return []error{apperrors.ErrCorruptSnapshot, e.Err}
}

// Load reads the snapshot at path. A missing file yields an empty snapshot
// and no error. An unreadable or undecodable file yields an empty snapshot
// and a *CorruptionError; the caller decides whether to carry on.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return Empty(), &CorruptionError{Path: path, Err: err}
	}
	snap, err := decode(data)
	if err != nil {
		return Empty(), &CorruptionError{Path: path, Err: err}
	}
	return snap, nil
}

// ReadDocuments returns only the document list stored at path. found is false
// when the file does not exist. Read and decode failures are returned.
func ReadDocuments(path string) (docs []index.Document, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, fmt.Errorf("reading index file: %w", &CorruptionError{Path: path, Err: err})
	}
	var onlyDocs struct {
		Docs []index.Document `json:"docs"`
	}
	if err := json.Unmarshal(data, &onlyDocs); err != nil {
		return nil, true, fmt.Errorf("parsing index file: %w", &CorruptionError{Path: path, Err: err})
	}
	return onlyDocs.Docs, true, nil
}

func decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.Docs == nil {
		snap.Docs = []index.Document{}
	}
	if snap.Inverted == nil {
		snap.Inverted = map[string]index.PostingList{}
	}
	return &snap, nil
}

// Package-level hooks so tests can force the fallback paths.
var (
	rename    = os.Rename
	writeFile = writeFileSync
)

// Save writes snap to a temporary file next to path and renames it into
// place. If the atomic path fails it falls back to writing path directly;
// if that fails too the error wraps ErrPersistence.
func Save(path string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return apperrors.Newf(apperrors.ErrPersistence, "encoding snapshot: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Newf(apperrors.ErrPersistence, "creating index directory: %v", err)
	}

	tmpPath := path + ".tmp"
	atomicErr := writeFile(tmpPath, data)
	if atomicErr == nil {
		atomicErr = rename(tmpPath, path)
	}
	if atomicErr == nil {
		return nil
	}
	_ = os.Remove(tmpPath)

	if err := writeFile(path, data); err != nil {
		return apperrors.Newf(apperrors.ErrPersistence,
			"writing %s: atomic write: %v; direct write: %v", path, atomicErr, err)
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return f.Close()
}
