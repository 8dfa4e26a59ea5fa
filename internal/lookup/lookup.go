// Package lookup answers forward and reverse identifier queries against a
// previously reconciled registry.
package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/hargabyte/stableid/internal/registry"
)

var (
	// ErrRegistryMissing means no registry has been saved yet.
	ErrRegistryMissing = errors.New("registry not found")

	// ErrNotFound means a required semantic identifier has no binding.
	ErrNotFound = errors.New("no stable id")
)

// Service is a read-only view of a loaded registry. It is safe for
// concurrent use.
type Service struct {
	reg    *registry.Registry
	source string
}

// New loads the registry from b. A registry that was never saved is an
// error wrapping ErrRegistryMissing.
func New(ctx context.Context, b registry.Backend) (*Service, error) {
	m, err := b.Load(ctx)
	if errors.Is(err, registry.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s: run 'stableid reconcile' first", ErrRegistryMissing, b.Name())
	}
	if err != nil {
		return nil, fmt.Errorf("load registry from %s: %w", b.Name(), err)
	}
	return &Service{reg: registry.FromMap(m), source: b.Name()}, nil
}

// FromRegistry wraps an already loaded registry.
func FromRegistry(r *registry.Registry) *Service {
	return &Service{reg: r, source: "memory"}
}

// Source describes where the registry was loaded from.
func (s *Service) Source() string { return s.source }

// Registry returns the loaded registry. Callers must not mutate it.
func (s *Service) Registry() *registry.Registry { return s.reg }

// GetUUID returns the stable id bound to semantic in class. When required
// is true a missing binding is an error wrapping ErrNotFound; otherwise it
// is reported through the boolean.
func (s *Service) GetUUID(class, semantic string, required bool) (string, bool, error) {
	stable, ok := s.reg.StableID(class, semantic)
	if !ok && required {
		return "", false, fmt.Errorf("%w for %s/%s: the identifier may not exist in the registry; run 'stableid reconcile' to mint ids for new identifiers", ErrNotFound, class, semantic)
	}
	return stable, ok, nil
}

// GetSemanticID returns the semantic id currently bound to stable in class.
func (s *Service) GetSemanticID(class, stable string) (string, bool) {
	return s.reg.SemanticID(class, stable)
}

// GetAllUUIDs returns a copy of the semantic to stable map of class. An
// unknown class yields an empty map.
func (s *Service) GetAllUUIDs(class string) map[string]string {
	return s.reg.ClassIDs(class)
}

func (s *Service) HasClass(class string) bool {
	return s.reg.HasClass(class)
}

// ListClasses returns the registry classes in sorted order.
func (s *Service) ListClasses() []string {
	return s.reg.Classes()
}

// Entries returns the bindings of class sorted by stable id.
func (s *Service) Entries(class string) []registry.Entry {
	return s.reg.Entries(class)
}

// Len returns the total number of bindings.
func (s *Service) Len() int {
	return s.reg.Len()
}
