package extract

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClassFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"data/PropertyValue.csv", "PropertyValue"},
		{"remote/Action.csv", "Action"},
		{"Dataset.tsv", "Dataset"},
		{"out/archive.v2.csv", "archive.v2"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := ClassFromPath(tt.path); got != tt.want {
			t.Errorf("ClassFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "Person.csv", "id\n")
	writeSource(t, dir, "Action.csv", "id\n")
	writeSource(t, dir, "notes.txt", "ignored\n")
	writeSource(t, dir, ".Action.csv", "id\n")

	sources, err := Discover(dir, "*.csv")
	if err != nil {
		t.Fatal(err)
	}

	want := []Source{
		{Path: filepath.Join(dir, "Action.csv"), Class: "Action"},
		{Path: filepath.Join(dir, "Person.csv"), Class: "Person"},
	}
	if !reflect.DeepEqual(sources, want) {
		t.Errorf("Discover = %v, want %v", sources, want)
	}

	// Hidden files need a pattern that names them
	hidden, err := Discover(dir, ".*.csv")
	if err != nil {
		t.Fatal(err)
	}
	if len(hidden) != 1 || hidden[0].Class != ".Action" {
		t.Errorf("Discover(.*.csv) = %v", hidden)
	}

	// No match is not an error
	none, err := Discover(dir, "*.json")
	if err != nil || len(none) != 0 {
		t.Errorf("Discover(*.json) = %v, %v", none, err)
	}

	if _, err := Discover(dir, "[bad"); err == nil {
		t.Error("expected error for malformed pattern")
	}
}

func TestReadIdentifiers(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "PropertyValue.csv", "id,name\nebv_a,A\n  ebv_b  ,B\n,blank\n   ,spaces\nebv_a,dup\n")
	writeSource(t, dir, "Empty.csv", "id,name\n")
	writeSource(t, dir, "NoID.csv", "name\nx\n")

	sources, err := Discover(dir, "*.csv")
	if err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	r := &Reader{IDColumn: "id", Logger: slog.New(slog.NewTextHandler(&logs, nil))}
	snap := r.Read(sources)

	// Sorted discovery order: Empty, NoID (skipped), PropertyValue
	if got := snap.Classes(); !reflect.DeepEqual(got, []string{"Empty", "PropertyValue"}) {
		t.Errorf("Classes = %v", got)
	}

	if got := snap.IDs("PropertyValue"); !reflect.DeepEqual(got, []string{"ebv_a", "ebv_b", "ebv_a"}) {
		t.Errorf("IDs(PropertyValue) = %q", got)
	}

	if !snap.Has("Empty") || len(snap.IDs("Empty")) != 0 {
		t.Error("class with header only should be present with no ids")
	}

	if snap.Has("NoID") {
		t.Error("source without id column should be skipped")
	}
	if !strings.Contains(logs.String(), "identifier column not found") {
		t.Errorf("expected warning about missing column, got %q", logs.String())
	}

	if snap.Len() != 3 {
		t.Errorf("Len = %d, want 3", snap.Len())
	}
}

func TestReadIdentifiersSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "Good.csv", "id\nx\n")

	sources := []Source{
		{Path: filepath.Join(dir, "Gone.csv"), Class: "Gone"},
		{Path: good, Class: "Good"},
	}
	r := &Reader{IDColumn: "id", Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}
	snap := r.Read(sources)

	if snap.Has("Gone") {
		t.Error("unreadable source should be skipped")
	}
	if got := snap.IDs("Good"); !reflect.DeepEqual(got, []string{"x"}) {
		t.Error("readable source should still be read")
	}
}

func TestReaderDelimiter(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "Action.tsv", "name\tid\nRun\tact_run\n")

	r := &Reader{IDColumn: "id", Delimiter: '\t'}
	snap := r.Read([]Source{{Path: path, Class: "Action"}})

	if got := snap.IDs("Action"); !reflect.DeepEqual(got, []string{"act_run"}) {
		t.Errorf("IDs(Action) = %q", got)
	}
}

func TestSnapshot(t *testing.T) {
	s := NewSnapshot()
	if !s.Empty() {
		t.Error("new snapshot should be empty")
	}

	s.Add("B", "b1")
	s.Add("A")
	s.Add("B", "b2")

	if s.Empty() {
		t.Error("snapshot with classes should not be empty")
	}
	if got := s.Classes(); !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Errorf("Classes = %v, want insertion order [B A]", got)
	}
	if got := s.IDs("B"); !reflect.DeepEqual(got, []string{"b1", "b2"}) {
		t.Errorf("IDs(B) = %v", got)
	}
	if s.Has("C") || !s.Has("A") {
		t.Error("Has should report only added classes")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}
