// Package registry holds the authoritative binding between permanent stable
// identifiers and the human-authored semantic identifiers they were minted for.
//
// The mapping is grouped by class: class -> stable id -> semantic id. A derived
// reverse index (class -> semantic id -> stable id) is kept alongside it and is
// rebuilt for a class every time that class is mutated, so it never diverges
// from the authoritative mapping.
package registry

import (
	"errors"
	"fmt"
	"sort"
)

// ErrImmutable is returned when a bind would change an existing stable id.
var ErrImmutable = errors.New("stable id is immutable")

// Entry is a single binding of a stable id to a semantic id within a class.
type Entry struct {
	Class      string `json:"class" yaml:"class"`
	StableID   string `json:"uuid" yaml:"uuid"`
	SemanticID string `json:"semantic_id" yaml:"semantic_id"`
}

// Collision records a semantic id bound in more than one class when the
// registry is flattened into a GlobalMap.
type Collision struct {
	SemanticID string
	Kept       Entry
	Dropped    Entry
}

// Registry is the in-memory registry. It is not safe for concurrent mutation.
type Registry struct {
	classes map[string]map[string]string
	reverse map[string]map[string]string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		classes: make(map[string]map[string]string),
		reverse: make(map[string]map[string]string),
	}
}

// FromMap builds a registry from a class -> stable id -> semantic id mapping.
// The input is copied.
func FromMap(m map[string]map[string]string) *Registry {
	r := New()
	for class, ids := range m {
		cp := make(map[string]string, len(ids))
		for stable, semantic := range ids {
			cp[stable] = semantic
		}
		r.classes[class] = cp
		r.rebuild(class)
	}
	return r
}

// Map returns a deep copy of the authoritative mapping.
func (r *Registry) Map() map[string]map[string]string {
	out := make(map[string]map[string]string, len(r.classes))
	for class, ids := range r.classes {
		cp := make(map[string]string, len(ids))
		for stable, semantic := range ids {
			cp[stable] = semantic
		}
		out[class] = cp
	}
	return out
}

// Classes returns all class names in sorted order.
func (r *Registry) Classes() []string {
	classes := make([]string, 0, len(r.classes))
	for class := range r.classes {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}

// HasClass reports whether the class exists, even with no entries.
func (r *Registry) HasClass(class string) bool {
	_, ok := r.classes[class]
	return ok
}

// EnsureClass creates an empty entry set for class if none exists.
// Returns true if the class was created.
func (r *Registry) EnsureClass(class string) bool {
	if _, ok := r.classes[class]; ok {
		return false
	}
	r.classes[class] = make(map[string]string)
	r.reverse[class] = make(map[string]string)
	return true
}

// Bind records stable -> semantic within class. Rebinding a stable id to the
// semantic id it already carries is a no-op; rebinding it to anything else
// fails with ErrImmutable.
func (r *Registry) Bind(class, stable, semantic string) error {
	r.EnsureClass(class)
	if existing, ok := r.classes[class][stable]; ok {
		if existing == semantic {
			return nil
		}
		return fmt.Errorf("%w: %s/%s is bound to %q", ErrImmutable, class, stable, existing)
	}
	r.classes[class][stable] = semantic
	r.rebuild(class)
	return nil
}

// SemanticID returns the semantic id bound to stable in class.
func (r *Registry) SemanticID(class, stable string) (string, bool) {
	semantic, ok := r.classes[class][stable]
	return semantic, ok
}

// StableID returns the stable id bound to semantic in class via the reverse index.
func (r *Registry) StableID(class, semantic string) (string, bool) {
	stable, ok := r.reverse[class][semantic]
	return stable, ok
}

// ClassIDs returns a copy of the semantic id -> stable id index for class.
// Returns an empty map for unknown classes.
func (r *Registry) ClassIDs(class string) map[string]string {
	idx := r.reverse[class]
	out := make(map[string]string, len(idx))
	for semantic, stable := range idx {
		out[semantic] = stable
	}
	return out
}

// Entries returns the bindings of class sorted by stable id.
func (r *Registry) Entries(class string) []Entry {
	ids := r.classes[class]
	stables := make([]string, 0, len(ids))
	for stable := range ids {
		stables = append(stables, stable)
	}
	sort.Strings(stables)

	entries := make([]Entry, 0, len(stables))
	for _, stable := range stables {
		entries = append(entries, Entry{Class: class, StableID: stable, SemanticID: ids[stable]})
	}
	return entries
}

// Len returns the total number of bindings across all classes.
func (r *Registry) Len() int {
	n := 0
	for _, ids := range r.classes {
		n += len(ids)
	}
	return n
}

// ClassLen returns the number of bindings in class.
func (r *Registry) ClassLen(class string) int {
	return len(r.classes[class])
}

// Contains reports whether stable is bound in any class.
func (r *Registry) Contains(stable string) bool {
	for _, ids := range r.classes {
		if _, ok := ids[stable]; ok {
			return true
		}
	}
	return false
}

// GlobalMap flattens every class into one semantic id -> stable id map.
// Classes are folded in sorted order and the first binding of a semantic id
// wins; later bindings of the same text in other classes are returned as
// collisions.
func (r *Registry) GlobalMap() (map[string]string, []Collision) {
	global := make(map[string]string)
	owner := make(map[string]Entry)
	var collisions []Collision

	for _, class := range r.Classes() {
		for _, e := range r.reverseEntries(class) {
			if kept, seen := owner[e.SemanticID]; seen {
				collisions = append(collisions, Collision{SemanticID: e.SemanticID, Kept: kept, Dropped: e})
				continue
			}
			owner[e.SemanticID] = e
			global[e.SemanticID] = e.StableID
		}
	}
	return global, collisions
}

// reverseEntries returns the reverse index of class as entries sorted by semantic id.
func (r *Registry) reverseEntries(class string) []Entry {
	idx := r.reverse[class]
	semantics := make([]string, 0, len(idx))
	for semantic := range idx {
		semantics = append(semantics, semantic)
	}
	sort.Strings(semantics)

	entries := make([]Entry, 0, len(semantics))
	for _, semantic := range semantics {
		entries = append(entries, Entry{Class: class, StableID: idx[semantic], SemanticID: semantic})
	}
	return entries
}

// rebuild recomputes the reverse index for class. When two stable ids carry
// the same semantic id the lexicographically largest stable id wins: existing
// registries were always resolved by inverting the key-sorted document with
// later keys overwriting earlier ones, and references minted from them must
// keep resolving to the same id.
func (r *Registry) rebuild(class string) {
	idx := make(map[string]string, len(r.classes[class]))
	for _, e := range r.Entries(class) {
		idx[e.SemanticID] = e.StableID
	}
	r.reverse[class] = idx
}
