// Package storage provides the durable blob collaborators backing the
// conversation store: a single serialized blob under a fixed name, read
// once at startup and rewritten on every store mutation.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Blob is durable storage for one named blob. Load returns (nil, nil) when
// no blob has been saved yet; that is not an error.
type Blob interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// File stores the blob as a single file, written atomically via a temp
// file and rename so a crash mid-write never leaves a torn blob behind.
type File struct {
	path string
}

// NewFile creates a File blob at path. The parent directory is created on
// first Save, not here.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads the blob file. A missing file yields (nil, nil).
func (f *File) Load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blob file: %w", err)
	}
	return data, nil
}

// Save writes data to a temp file in the same directory and renames it
// over the blob file.
func (f *File) Save(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp blob: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp blob: %w", err)
	}
	return nil
}
