package lookup

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hargabyte/stableid/internal/registry"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	b := registry.NewFileBackend(filepath.Join(t.TempDir(), "uuid_mapping.json"))
	m := map[string]map[string]string{
		"PropertyValue": {"mbo_1": "ebv_genetic_diversity", "mbo_2": "ebv_species_traits"},
		"Action":        {},
	}
	if err := b.Save(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	s, err := New(context.Background(), b)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewMissingRegistry(t *testing.T) {
	b := registry.NewFileBackend(filepath.Join(t.TempDir(), "absent.json"))

	_, err := New(context.Background(), b)
	if !errors.Is(err, ErrRegistryMissing) {
		t.Fatalf("expected ErrRegistryMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), "stableid reconcile") {
		t.Errorf("error should tell the operator what to run: %v", err)
	}
}

func TestGetUUID(t *testing.T) {
	s := setupService(t)

	tests := []struct {
		name     string
		class    string
		semantic string
		required bool
		want     string
		wantOK   bool
		wantErr  error
	}{
		{"found", "PropertyValue", "ebv_genetic_diversity", true, "mbo_1", true, nil},
		{"found optional", "PropertyValue", "ebv_species_traits", false, "mbo_2", true, nil},
		{"absent required", "PropertyValue", "ebv_unknown", true, "", false, ErrNotFound},
		{"absent optional", "PropertyValue", "ebv_unknown", false, "", false, nil},
		{"wrong class", "Action", "ebv_genetic_diversity", true, "", false, ErrNotFound},
		{"unknown class", "Nope", "x", false, "", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := s.GetUUID(tt.class, tt.semantic, tt.required)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("GetUUID() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("GetUUID() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestGetSemanticID(t *testing.T) {
	s := setupService(t)

	if got, ok := s.GetSemanticID("PropertyValue", "mbo_2"); !ok || got != "ebv_species_traits" {
		t.Errorf("GetSemanticID = %q, %v", got, ok)
	}
	if _, ok := s.GetSemanticID("PropertyValue", "mbo_404"); ok {
		t.Error("unknown stable id should be absent")
	}
}

func TestGetAllUUIDs(t *testing.T) {
	s := setupService(t)

	want := map[string]string{"ebv_genetic_diversity": "mbo_1", "ebv_species_traits": "mbo_2"}
	if got := s.GetAllUUIDs("PropertyValue"); !reflect.DeepEqual(got, want) {
		t.Errorf("GetAllUUIDs = %v, want %v", got, want)
	}
	if got := s.GetAllUUIDs("Nope"); len(got) != 0 {
		t.Errorf("GetAllUUIDs(unknown) = %v", got)
	}
}

func TestClasses(t *testing.T) {
	s := setupService(t)

	if !s.HasClass("Action") || s.HasClass("Nope") {
		t.Error("HasClass misreported")
	}
	if got := s.ListClasses(); !reflect.DeepEqual(got, []string{"Action", "PropertyValue"}) {
		t.Errorf("ListClasses = %v", got)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if s.Registry().ClassLen("PropertyValue") != 2 {
		t.Errorf("Registry().ClassLen = %d, want 2", s.Registry().ClassLen("PropertyValue"))
	}
}
