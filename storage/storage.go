// Package storage persists per-document JSON artifacts (cached page IR,
// patch logs, overlay state) behind a small key/value interface. Keys are
// slash-separated paths such as "documents/<doc_id>/patches.json". Backend
// selection beyond local disk is the surrounding service's concern.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is a flat blob store keyed by slash-separated paths.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
	Exists(key string) bool
	Delete(key string) error
}

// NotFoundError reports a Get against a missing key.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("storage: key %q not found", e.Key)
}

// IsNotFound reports whether err is a missing-key error.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// EncodeJSON renders v as the canonical JSON this system persists: compact
// separators and, for map-typed values, lexically sorted keys. Encoding the
// same value twice yields identical bytes.
func EncodeJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("storage: encode: %w", err)
	}
	return data, nil
}

// DecodeJSON parses canonical JSON into out.
func DecodeJSON(data []byte, out interface{}) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("storage: decode: %w", err)
	}
	return nil
}

// DiskStore keeps blobs under a root directory, one file per key.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	if root == "" {
		return nil, errors.New("storage: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) path(key string) (string, error) {
	cleaned := filepath.Clean(strings.ReplaceAll(key, "/", string(filepath.Separator)))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(s.root, cleaned), nil
}

func (s *DiskStore) Get(key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Key: key}
		}
		return nil, fmt.Errorf("storage: read %q: %w", key, err)
	}
	return data, nil
}

// Put writes atomically: a temp file in the target directory is renamed
// over the destination so readers never observe a partial write.
func (s *DiskStore) Put(key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("storage: create dir for %q: %w", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return fmt.Errorf("storage: temp file for %q: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: close %q: %w", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: rename %q: %w", key, err)
	}
	return nil
}

func (s *DiskStore) Exists(key string) bool {
	p, err := s.path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

func (s *DiskStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete %q: %w", key, err)
	}
	return nil
}

// MemStore is an in-memory Store for tests and ephemeral callers.
type MemStore struct {
	blobs map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (s *MemStore) Get(key string) ([]byte, error) {
	data, ok := s.blobs[key]
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemStore) Put(key string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[key] = stored
	return nil
}

func (s *MemStore) Exists(key string) bool {
	_, ok := s.blobs[key]
	return ok
}

func (s *MemStore) Delete(key string) error {
	delete(s.blobs, key)
	return nil
}
