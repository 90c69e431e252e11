// Package jsonstore provides the write-then-rename JSON document
// persistence discipline shared by the Learned-Facts Store and the
// Rollback Ledger (§5, §6.1): every mutation rewrites the whole document
// to a temp file in the same directory, then atomically renames it over
// the real path, so a crash mid-write never leaves a partial document.
package jsonstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and unmarshals the JSON document at path into dst. A missing
// file is not an error — dst is left at its zero value so callers can seed
// defaults.
func Load(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("jsonstore: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("jsonstore: unmarshal %s: %w", path, err)
	}
	return nil
}

// Save marshals src and atomically replaces the document at path.
func Save(path string, src any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("jsonstore: create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonstore: marshal %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("jsonstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("jsonstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("jsonstore: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("jsonstore: rename into place: %w", err)
	}
	return nil
}
