// Package state persists the listener's update offset and routing state as a
// JSON file.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"telemux/internal/model"
)

// record is the on-disk form. Pointer fields distinguish a missing key in
// an older file from an explicit zero value.
type record struct {
	LastUpdateID      int     `json:"last_update_id"`
	LastActiveSession *string `json:"last_active_session"`
	AutoCapture       *bool   `json:"auto_capture"`
}

// Store reads and writes the listener state file.
type Store struct {
	path string
}

// NewStore returns a Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted state, or the zero state if no file exists.
// Fields missing from older files take their zero values.
func (s *Store) Load() (model.ListenerState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.ListenerState{}, nil
	}
	if err != nil {
		return model.ListenerState{}, fmt.Errorf("read state: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.ListenerState{}, fmt.Errorf("decode state %s: %w", s.path, err)
	}

	st := model.ListenerState{Offset: rec.LastUpdateID}
	if rec.LastActiveSession != nil {
		st.LastActiveSession = *rec.LastActiveSession
	}
	if rec.AutoCapture != nil {
		st.AutoCapture = *rec.AutoCapture
	}
	return st, nil
}

// Save writes the full state, creating the parent directory if needed. The
// file is replaced atomically.
func (s *Store) Save(st model.ListenerState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	rec := record{LastUpdateID: st.Offset, AutoCapture: &st.AutoCapture}
	if st.LastActiveSession != "" {
		session := st.LastActiveSession
		rec.LastActiveSession = &session
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
