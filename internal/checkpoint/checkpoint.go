// Package checkpoint persists per-term crawl progress across process restarts.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore reads and writes the progress map as a single JSON object on
// local disk. It provides no locking; concurrent callers share a Tracker,
// which serializes access.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore rooted at path. The file itself is
// created lazily on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the persisted progress map. A missing, empty or corrupt file
// degrades to an empty map rather than an error: no progress recorded.
func (s *FileStore) Load() map[string]int {
	data, err := os.ReadFile(s.path)
	if err != nil || len(data) == 0 {
		return map[string]int{}
	}
	var pages map[string]int
	if err := json.Unmarshal(data, &pages); err != nil {
		return map[string]int{}
	}
	if pages == nil {
		return map[string]int{}
	}
	return pages
}

// Save atomically overwrites the full persisted map by writing to a
// temporary file in the same directory and renaming it into place.
func (s *FileStore) Save(pages map[string]int) error {
	data, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()       //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
