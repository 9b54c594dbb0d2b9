package selection

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Store saves the last selected device under XDG_STATE_HOME or
// ~/.local/state.
type Store struct {
	path string
	mu   sync.Mutex
}

type record struct {
	Selected string `json:"selected"`
}

// NewStore creates a selection store at the default path.
func NewStore() (*Store, error) {
	path, err := selectionPath()
	if err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

// NewStoreAt creates a selection store backed by path.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// Selected returns the last selected device if stored.
func (s *Store) Selected() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil {
		return "", false, err
	}
	return rec.Selected, rec.Selected != "", nil
}

// Select stores deviceID as the last selected device.
func (s *Store) Select(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(record{Selected: deviceID})
}

// Clear forgets the selection.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) read() (record, error) {
	var rec record
	file, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rec, nil
		}
		return rec, err
	}
	if len(file) == 0 {
		return rec, nil
	}
	if err := json.Unmarshal(file, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *Store) write(rec record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, payload, 0o600)
}

func selectionPath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "zonectl", "selection.json"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "zonectl", "selection.json"), nil
}
