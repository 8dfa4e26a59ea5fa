// Package reconcile compares the semantic identifiers currently present in
// the sources against the registry.
//
// Identifiers seen for the first time are bound to freshly minted stable
// identifiers. Registry entries whose identifier has disappeared are
// reported as missing, together with current identifiers of the same class
// that look like a rename. Missing entries are never removed: registry
// growth is monotonic.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hargabyte/stableid/internal/extract"
	"github.com/hargabyte/stableid/internal/registry"
	"github.com/hargabyte/stableid/internal/report"
)

// Defaults for Reconciler.
const (
	DefaultThreshold      = 0.75
	DefaultMaxSuggestions = 3
)

// maxMintAttempts bounds re-minting when a fresh id is already taken.
const maxMintAttempts = 8

// ErrMintCollision is returned when the minter keeps producing identifiers
// that already exist in the registry.
var ErrMintCollision = errors.New("minted stable identifier already in registry")

// Reconciler holds the tuning of a reconciliation. The zero value is usable.
type Reconciler struct {
	// Minter generates stable ids. Nil means UUIDMinter{Prefix: DefaultPrefix}.
	Minter Minter

	// Threshold is the minimum similarity ratio for a rename suggestion.
	// Nil means DefaultThreshold; a threshold of 0 suggests every candidate.
	Threshold *float64

	// MaxSuggestions caps suggestions per missing id. Zero means
	// DefaultMaxSuggestions.
	MaxSuggestions int

	// Now stamps the report. Nil means time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func (r *Reconciler) minter() Minter {
	if r.Minter == nil {
		return UUIDMinter{Prefix: DefaultPrefix}
	}
	return r.Minter
}

func (r *Reconciler) threshold() float64 {
	if r.Threshold == nil {
		return DefaultThreshold
	}
	return *r.Threshold
}

func (r *Reconciler) maxSuggestions() int {
	if r.MaxSuggestions == 0 {
		return DefaultMaxSuggestions
	}
	return r.MaxSuggestions
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Reconcile updates reg in memory from snap and returns the sync report.
// It binds new identifiers and reports missing ones; nothing is persisted.
// An error leaves reg with the bindings made before the failure and must
// not be saved.
func (r *Reconciler) Reconcile(reg *registry.Registry, snap *extract.Snapshot) (*report.SyncReport, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	rep := report.NewSyncReport(now())
	log := r.logger()

	for _, class := range snap.Classes() {
		if reg.EnsureClass(class) {
			log.Info("new class", "class", class)
		}

		for _, semantic := range snap.IDs(class) {
			if _, ok := reg.StableID(class, semantic); ok {
				continue
			}
			stable, err := r.mint(reg)
			if err != nil {
				return nil, fmt.Errorf("mint id for %s/%s: %w", class, semantic, err)
			}
			if err := reg.Bind(class, stable, semantic); err != nil {
				return nil, err
			}
			rep.NewIDs = append(rep.NewIDs, report.NewID{Class: class, UUID: stable, SemanticID: semantic})
			log.Info("new id", "class", class, "semantic_id", semantic, "uuid", stable)
		}
	}

	for _, class := range reg.Classes() {
		if !snap.Has(class) {
			log.Debug("registry class has no sources", "class", class)
		}
		current := distinct(snap.IDs(class))
		present := make(map[string]bool, len(current))
		for _, id := range current {
			present[id] = true
		}

		for _, e := range reg.Entries(class) {
			if present[e.SemanticID] {
				continue
			}
			similar := FindSimilar(e.SemanticID, current, r.threshold(), r.maxSuggestions())
			rep.MissingIDs = append(rep.MissingIDs, report.MissingID{
				Class:      class,
				UUID:       e.StableID,
				SemanticID: e.SemanticID,
				Similar:    similar,
			})

			attrs := []any{"class", class, "semantic_id", e.SemanticID, "uuid", e.StableID}
			if len(similar) > 0 {
				attrs = append(attrs, "possible_match", similar[0].Candidate, "ratio", fmt.Sprintf("%.0f%%", similar[0].Ratio*100))
			}
			log.Warn("missing id", attrs...)
		}
	}

	return rep, nil
}

// mint returns a stable id not yet present anywhere in reg.
func (r *Reconciler) mint(reg *registry.Registry) (string, error) {
	m := r.minter()
	for i := 0; i < maxMintAttempts; i++ {
		id, err := m.Mint()
		if err != nil {
			return "", err
		}
		if !reg.Contains(id) {
			return id, nil
		}
		r.logger().Warn("minted id collides with registry, retrying", "uuid", id)
	}
	return "", ErrMintCollision
}
