// Package statefile persists the deployment run state as a single JSON
// document on disk. Writes go through a temp file in the same directory
// followed by a rename, so readers never observe a partial document.
package statefile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shiplock/shiplock/internal/domain"
)

// Store is a file-backed [domain.StateStore].
type Store struct {
	path string
}

// New creates a store persisting to the given path. Parent directories are
// created on first save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Load reads and validates the persisted state.
func (s *Store) Load(_ context.Context) (domain.RunState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.RunState{}, domain.ErrStateNotFound
	}
	if err != nil {
		return domain.RunState{}, fmt.Errorf("read state file: %w", err)
	}

	var state domain.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.RunState{}, fmt.Errorf("%w: %v", domain.ErrCorruptState, err)
	}
	if err := state.Validate(); err != nil {
		return domain.RunState{}, err
	}
	return state, nil
}

// Save atomically replaces the state file.
func (s *Store) Save(_ context.Context, state domain.RunState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Reset removes the state file. Removing an absent file is not an error.
func (s *Store) Reset(_ context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}
