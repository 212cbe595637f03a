// Package ledger persists the identity of the one outstanding job so it
// survives application restarts. Only job identity and its last known
// status are mirrored; file handles and timers never are.
package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is the durable mirror of the in-flight job.
type Snapshot struct {
	JobID       string    `json:"jobId"`
	Filename    string    `json:"filename"`
	LastStatus  string    `json:"lastStatus,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
}

// Store defines the persistence operations for the job snapshot.
type Store interface {
	Save(Snapshot) error
	Clear() error
	// LoadPending returns the saved snapshot, or ok=false when no job is
	// pending. Absence of the snapshot file means no pending job.
	LoadPending() (snap Snapshot, ok bool, err error)
}

// JSONStore keeps the snapshot in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed snapshot store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Save writes the snapshot, creating parent directories as needed.
func (s *JSONStore) Save(snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}

// Clear removes the snapshot. Clearing an already-clear ledger is a no-op.
func (s *JSONStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// LoadPending reads the snapshot from disk.
func (s *JSONStore) LoadPending() (Snapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, err
	}
	if snap.JobID == "" {
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}
