package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Terminal states for a processed file.
const (
	StateSucceeded = "Succeeded"
	StateFailed    = "Failed"
)

// Record is one processed-file entry.
type Record struct {
	ID       string    `json:"id"`
	Hash     string    `json:"hash"`
	State    string    `json:"state"`
	LastSeen time.Time `json:"last_seen"`
}

// ledgerFile is the on-disk JSON layout.
type ledgerFile struct {
	ProcessedFiles []Record  `json:"processed_files"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Ledger is the durable processed-file record. It is a single-writer
// resource owned by the monitor loop; external callers read snapshots.
// Every mutation persists atomically via temp-file + rename.
type Ledger struct {
	path string

	mu      sync.RWMutex
	records map[string]Record
}

// LoadLedger reads the ledger from disk; a missing file yields an empty
// ledger.
func LoadLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path, records: make(map[string]Record)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	var file ledgerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing ledger: %w", err)
	}
	for _, rec := range file.ProcessedFiles {
		l.records[rec.ID] = rec
	}
	return l, nil
}

// ShouldProcess reports whether a listed file needs (re)processing:
// never seen, previously Failed, or content hash changed. A Succeeded
// file with an unchanged hash is skipped.
func (l *Ledger) ShouldProcess(id, hash string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	if !ok {
		return true
	}
	if rec.State == StateFailed {
		return true
	}
	return rec.Hash != hash
}

// Mark records a terminal state for a file and persists the ledger.
func (l *Ledger) Mark(id, hash, state string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[id] = Record{ID: id, Hash: hash, State: state, LastSeen: time.Now().UTC()}
	return l.persistLocked()
}

// Touch refreshes last_seen for an already-terminal file without
// changing its state.
func (l *Ledger) Touch(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return nil
	}
	rec.LastSeen = time.Now().UTC()
	l.records[id] = rec
	return l.persistLocked()
}

// Snapshot returns a copy of all records, ordered by id.
func (l *Ledger) Snapshot() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// persistLocked writes the ledger atomically: temp file in the same
// directory, then rename.
func (l *Ledger) persistLocked() error {
	file := ledgerFile{
		ProcessedFiles: make([]Record, 0, len(l.records)),
		LastUpdated:    time.Now().UTC(),
	}
	for _, rec := range l.records {
		file.ProcessedFiles = append(file.ProcessedFiles, rec)
	}
	sort.Slice(file.ProcessedFiles, func(i, j int) bool {
		return file.ProcessedFiles[i].ID < file.ProcessedFiles[j].ID
	})

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("creating ledger temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing ledger temp file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}
