package registry

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotExist is returned by a Backend when no registry has been saved yet.
var ErrNotExist = errors.New("registry does not exist")

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Backend persists the full registry mapping. Implementations write the whole
// mapping on every save; there is no partial update.
type Backend interface {
	// Load returns the saved mapping, or ErrNotExist if nothing was saved.
	Load(ctx context.Context) (map[string]map[string]string, error)
	// Save replaces the stored mapping.
	Save(ctx context.Context, m map[string]map[string]string) error
	// Name describes the backend and its location for diagnostics.
	Name() string
	Close() error
}

// Load reads the registry from b. A registry that was never saved loads as
// an empty registry rather than an error.
func Load(ctx context.Context, b Backend) (*Registry, error) {
	m, err := b.Load(ctx)
	if errors.Is(err, ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load registry from %s: %w", b.Name(), err)
	}
	return FromMap(m), nil
}

// Save writes the full registry to b.
func Save(ctx context.Context, b Backend, r *Registry) error {
	if err := b.Save(ctx, r.Map()); err != nil {
		return fmt.Errorf("save registry to %s: %w", b.Name(), err)
	}
	return nil
}

// Copy loads the registry from src and saves it unchanged into dst.
// Returns the number of bindings copied. A missing source is an error.
func Copy(ctx context.Context, src, dst Backend) (int, error) {
	m, err := src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load registry from %s: %w", src.Name(), err)
	}
	r := FromMap(m)
	if err := Save(ctx, dst, r); err != nil {
		return 0, err
	}
	return r.Len(), nil
}
