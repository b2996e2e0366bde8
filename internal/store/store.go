// Package store implements the Mapping Store: durable, file-based
// persistence of mappings, per-side snapshots, and the append-only
// operation log (spec.md §4.2). It is deliberately not a database —
// one JSON file per mapping, one JSON file per (localId, side)
// snapshot, and a JSON-lines op log — so a crash between writes leaves
// an inspectable, individually-recoverable file on disk rather than a
// half-committed transaction.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jra3/tasksync/internal/model"
)

// Store is a workspace-scoped Mapping Store. One process at a time is
// expected to hold a Store open for a given directory; cross-process
// coordination is out of scope (spec.md §4.2).
type Store struct {
	mu  sync.Mutex
	dir string

	mappingsDir  string
	snapshotsDir string
	opLogPath    string

	opLog *os.File
}

// Open creates (if absent) the workspace directory layout under dir and
// returns a Store backed by it.
func Open(dir string) (*Store, error) {
	s := &Store{
		dir:          dir,
		mappingsDir:  filepath.Join(dir, "mappings"),
		snapshotsDir: filepath.Join(dir, "snapshots"),
		opLogPath:    filepath.Join(dir, "ops-log.jsonl"),
	}

	for _, d := range []string{s.mappingsDir, s.snapshotsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", d, err)
		}
	}

	f, err := os.OpenFile(s.opLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open op log: %w", err)
	}
	s.opLog = f

	return s, nil
}

// Close releases the op log file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opLog.Close()
}

func (s *Store) mappingPath(localID string) string {
	return filepath.Join(s.mappingsDir, safeFileName(localID)+".json")
}

func (s *Store) snapshotPath(localID string, side model.Side) string {
	return filepath.Join(s.snapshotsDir, fmt.Sprintf("%s.%s.json", safeFileName(localID), side))
}

// GetMapping returns the mapping for a local task id, or (nil, false)
// if none has been recorded yet.
func (s *Store) GetMapping(localID string) (*model.Mapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMapping(s.mappingPath(localID))
}

// GetMappingByRemoteKey scans recorded mappings for one pointing at
// remoteKey. Mapping count per workspace is small enough that a linear
// scan is the simplest correct implementation; there is no secondary
// index to keep consistent.
func (s *Store) GetMappingByRemoteKey(remoteKey string) (*model.Mapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.mappingsDir)
	if err != nil {
		return nil, false, fmt.Errorf("list mappings: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m, ok, err := s.readMapping(filepath.Join(s.mappingsDir, e.Name()))
		if err != nil {
			return nil, false, err
		}
		if ok && m.RemoteKey == remoteKey {
			return m, true, nil
		}
	}
	return nil, false, nil
}

// PutMapping writes a mapping, replacing any existing one for the same
// local id.
func (s *Store) PutMapping(m model.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.mappingPath(m.LocalID), m)
}

// DeleteMapping removes the mapping for a local id. Deleting a mapping
// that doesn't exist is not an error.
func (s *Store) DeleteMapping(localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.mappingPath(localID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete mapping %s: %w", localID, err)
	}
	return nil
}

// ListMappings returns every recorded mapping. Order is not
// significant to callers; it reflects directory iteration order.
func (s *Store) ListMappings() ([]model.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.mappingsDir)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	var out []model.Mapping
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m, ok, err := s.readMapping(filepath.Join(s.mappingsDir, e.Name()))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

// GetSnapshot returns the last-recorded snapshot for (localID, side),
// or (nil, false) if none exists yet. A missing snapshot is reported as
// absence, not an error: the reconciler classifies that mapping as
// Unknown and rebuilds both snapshots on the next successful sync
// (spec.md §4.2 invariant).
func (s *Store) GetSnapshot(localID string, side model.Side) (*model.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.snapshotPath(localID, side))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read snapshot %s/%s: %w", localID, side, err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("parse snapshot %s/%s: %w", localID, side, err)
	}
	return &snap, true, nil
}

// PutSnapshot writes a snapshot for (localID, side), replacing any
// prior one. Callers that need both sides updated together (the
// reconciler, after a successful sync) must call this twice; the store
// does not enforce that pairing (spec.md §4.2).
func (s *Store) PutSnapshot(snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.snapshotPath(snap.LocalID, snap.Side), snap)
}

// AppendOp appends one entry to the op log. The log is append-only and
// never rewritten, so a crash mid-write can corrupt at most the final
// line; every prior entry remains readable.
func (s *Store) AppendOp(entry model.OpLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal op log entry: %w", err)
	}
	data = append(data, '\n')
	if _, err := s.opLog.Write(data); err != nil {
		return fmt.Errorf("append op log: %w", err)
	}
	return s.opLog.Sync()
}

func (s *Store) readMapping(path string) (*model.Mapping, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read mapping %s: %w", path, err)
	}
	var m model.Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, fmt.Errorf("parse mapping %s: %w", path, err)
	}
	return &m, true, nil
}

// writeJSONAtomic marshals v and writes it to path via a temp file plus
// rename, so a reader never observes a partially-written file.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// safeFileName maps a local task id to a filesystem-safe file stem.
// Local ids are expected to already be simple tokens (the owning CLI's
// own id format); this only guards against path separators sneaking in.
func safeFileName(id string) string {
	return filepath.Base(filepath.Clean(id))
}
