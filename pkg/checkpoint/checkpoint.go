package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	errs "cinepipe/pkg/errors"
	"cinepipe/pkg/logger"
)

const snapshotFile = "row_counts.json"

// Record is the durable progress marker for one collection. Offset is the
// row index up to which link wrapping has completed; RowCount is the
// collection length observed when the record was last saved.
type Record struct {
	Collection string    `json:"collection"`
	Offset     int       `json:"offset"`
	RowCount   int       `json:"row_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int       `json:"version"`
}

// Manager handles checkpoint and row-count snapshot persistence
type Manager struct {
	dir    string
	logger logger.Logger
}

// NewManager creates a checkpoint manager rooted at dir, creating it if needed
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &Manager{
		dir:    dir,
		logger: logger.GetLogger(),
	}, nil
}

// Dir returns the checkpoint directory
func (m *Manager) Dir() string {
	return m.dir
}

// path returns the checkpoint file path for a collection
func (m *Manager) path(collection string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_").Replace(collection)
	return filepath.Join(m.dir, fmt.Sprintf("%s.checkpoint.json", safe))
}

// Load loads the checkpoint record for a collection. Returns (nil, nil) when
// no checkpoint exists. An unreadable or corrupt file yields a typed
// checkpoint_corruption error; callers fall back to offset 0 and rely on the
// per-row wrapped check.
func (m *Manager) Load(collection string) (*Record, error) {
	data, err := os.ReadFile(m.path(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No checkpoint exists
		}
		return nil, errs.New(errs.ErrorTypeCheckpointCorruption,
			fmt.Sprintf("failed to read checkpoint for %s: %v", collection, err), 0)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errs.New(errs.ErrorTypeCheckpointCorruption,
			fmt.Sprintf("failed to decode checkpoint for %s: %v", collection, err), 0)
	}

	m.logger.DebugWithFields("checkpoint loaded", map[string]interface{}{
		"collection": record.Collection,
		"offset":     record.Offset,
		"row_count":  record.RowCount,
		"updated_at": record.UpdatedAt,
	})

	return &record, nil
}

// Save persists a checkpoint record atomically: the record is written to a
// temporary file, fsynced, and renamed over the old one, so a reader always
// sees either the old or the new value. A record passed without CreatedAt
// inherits it from the stored record, so the field keeps marking when the
// collection was first processed.
func (m *Manager) Save(record *Record) error {
	record.UpdatedAt = time.Now()
	if record.CreatedAt.IsZero() {
		if existing, err := m.Load(record.Collection); err == nil && existing != nil {
			record.CreatedAt = existing.CreatedAt
		}
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.UpdatedAt
	}
	if record.Version == 0 {
		record.Version = 1
	}

	if err := m.writeAtomic(m.path(record.Collection), record); err != nil {
		return errs.New(errs.ErrorTypePersistence,
			fmt.Sprintf("failed to save checkpoint for %s: %v", record.Collection, err), 0)
	}

	m.logger.DebugWithFields("checkpoint saved", map[string]interface{}{
		"collection": record.Collection,
		"offset":     record.Offset,
		"row_count":  record.RowCount,
	})

	return nil
}

// Reset removes the checkpoint record for a collection. Missing records are
// not an error.
func (m *Manager) Reset(collection string) error {
	if err := os.Remove(m.path(collection)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}

	m.logger.InfoWithFields("checkpoint reset", map[string]interface{}{
		"collection": collection,
	})
	return nil
}

// Exists checks if a checkpoint file exists for a collection
func (m *Manager) Exists(collection string) bool {
	_, err := os.Stat(m.path(collection))
	return err == nil
}

// LoadSnapshot loads the per-collection row-count snapshot used by the
// change detector. A missing or unreadable snapshot yields an empty map so
// every collection's rows count as new, which is correct on first run.
func (m *Manager) LoadSnapshot() map[string]int {
	counts := make(map[string]int)

	data, err := os.ReadFile(filepath.Join(m.dir, snapshotFile))
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.WithError(err).Warn("failed to read row-count snapshot, treating as empty")
		}
		return counts
	}

	if err := json.Unmarshal(data, &counts); err != nil {
		m.logger.WithError(err).Warn("failed to decode row-count snapshot, treating as empty")
		return make(map[string]int)
	}

	return counts
}

// SaveSnapshot persists the row-count snapshot atomically
func (m *Manager) SaveSnapshot(counts map[string]int) error {
	if err := m.writeAtomic(filepath.Join(m.dir, snapshotFile), counts); err != nil {
		return errs.New(errs.ErrorTypePersistence,
			fmt.Sprintf("failed to save row-count snapshot: %v", err), 0)
	}

	m.logger.DebugWithFields("row-count snapshot saved", map[string]interface{}{
		"collections": len(counts),
	})
	return nil
}

// writeAtomic writes v as indented JSON via a temp file and rename
func (m *Manager) writeAtomic(path string, v interface{}) error {
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode: %w", err)
	}

	// Ensure data is on disk before the rename makes it visible
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	return nil
}
