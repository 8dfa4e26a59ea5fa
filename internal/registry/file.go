package registry

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/hargabyte/stableid/internal/fsutil"
)

// DefaultPath is the conventional location of the registry document.
const DefaultPath = "config/uuid_mapping.json"

// FileBackend stores the registry document on the local filesystem.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend for the registry document at path.
func NewFileBackend(path string) *FileBackend {
	if path == "" {
		path = DefaultPath
	}
	return &FileBackend{path: path}
}

// Path returns the registry document path.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) Name() string { return b.path }

func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) Load(ctx context.Context) (map[string]map[string]string, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Save writes the document to a temp file beside the target and renames it
// into place, so an interrupted save never leaves a truncated registry.
func (b *FileBackend) Save(ctx context.Context, m map[string]map[string]string) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(b.path, data, 0o644)
}
