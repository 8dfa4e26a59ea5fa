package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hargabyte/stableid/internal/config"
	"github.com/hargabyte/stableid/internal/lookup"
	"github.com/hargabyte/stableid/internal/output"
	"github.com/hargabyte/stableid/internal/registry"
	"github.com/hargabyte/stableid/internal/report"
)

// setupWorkspace writes files into a temp dir, changes into it and resets
// all command flags. Output is JSON so tests can decode it.
func setupWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	t.Chdir(dir)
	t.Setenv("GITHUB_OUTPUT", "")
	resetFlags()
	logger = newLogger(io.Discard, false)
	return dir
}

func resetFlags() {
	verbose, configPath, forAgents = false, "", false
	outputFormat, registryBackend = "json", ""

	reconcileCSVPattern, reconcileRegistryPath, reconcileIDColumn = "", "", ""
	reconcileReportPath, reconcileGitHubOutput, reconcileMetricsFile = "", "", ""

	propagateCSVDir, propagateCSVPattern, propagateRegistryPath = "", "", ""
	propagateIDColumn, propagateMode, propagateMetricsFile = "", "", ""
	propagateDryRun = false

	lookupRegistryPath = ""
	lookupReverse, lookupAll, lookupClasses, lookupBare = false, false, false, false

	callList, callPipe, callRegistryPath = false, false, ""

	registryPath, registryMigrateTo, registryMigrateDst = "", "", ""
	registryForce = false
}

func readRegistry(t *testing.T, path string) map[string]map[string]string {
	t.Helper()
	m, err := registry.NewFileBackend(path).Load(t.Context())
	if err != nil {
		t.Fatalf("load registry %s: %v", path, err)
	}
	return m
}

func TestReconcileCommand(t *testing.T) {
	dir := setupWorkspace(t, map[string]string{
		"out/PropertyValue.csv": "id,label\nebv_genetic_diversity,Genetic diversity\nebv_species_traits,Species traits\n",
		"out/Action.csv":        "id\nrun\n",
	})
	ghOutput := filepath.Join(dir, "gh_output")
	reconcileGitHubOutput = ghOutput

	var buf bytes.Buffer
	reconcileCmd.SetOut(&buf)
	if err := runReconcile(reconcileCmd, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}

	var out struct {
		NewCount     int    `json:"new_count"`
		MissingCount int    `json:"missing_count"`
		ReportPath   string `json:"report_path"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if out.NewCount != 3 || out.MissingCount != 0 || out.ReportPath != "id_sync_report.json" {
		t.Errorf("output = %+v", out)
	}

	m := readRegistry(t, "config/uuid_mapping.json")
	if len(m["PropertyValue"]) != 2 || len(m["Action"]) != 1 {
		t.Errorf("registry = %v", m)
	}
	for stable := range m["Action"] {
		if !strings.HasPrefix(stable, "mbo_") {
			t.Errorf("stable id %q lacks prefix", stable)
		}
	}

	gh, err := os.ReadFile(ghOutput)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(gh), "new_count=3\n") || !strings.Contains(string(gh), "has_missing=false\n") {
		t.Errorf("github output = %q", gh)
	}

	// Rename an identifier: the old one is reported missing with a suggestion
	if err := os.WriteFile("out/PropertyValue.csv", []byte("id\nebv_genetic_diversity\nebv_species_trait\n"), 0644); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	err = runReconcile(reconcileCmd, nil)
	if !errors.Is(err, errDriftDetected) {
		t.Fatalf("second run error = %v, want errDriftDetected", err)
	}

	rep, err := report.ReadJSON("id_sync_report.json")
	if err != nil {
		t.Fatal(err)
	}
	if rep.NewCount() != 1 || rep.MissingCount() != 1 {
		t.Fatalf("report = %+v", rep)
	}
	missing := rep.MissingIDs[0]
	if missing.SemanticID != "ebv_species_traits" || len(missing.Similar) == 0 || missing.Similar[0].Candidate != "ebv_species_trait" {
		t.Errorf("missing = %+v", missing)
	}

	// Existing bindings are untouched and nothing was deleted
	after := readRegistry(t, "config/uuid_mapping.json")
	for stable, semantic := range m["PropertyValue"] {
		if after["PropertyValue"][stable] != semantic {
			t.Errorf("binding %s changed: %q -> %q", stable, semantic, after["PropertyValue"][stable])
		}
	}
	if len(after["PropertyValue"]) != 3 {
		t.Errorf("PropertyValue has %d entries, want 3", len(after["PropertyValue"]))
	}
}

func TestReconcileNoSources(t *testing.T) {
	setupWorkspace(t, nil)

	var buf bytes.Buffer
	reconcileCmd.SetOut(&buf)
	if err := runReconcile(reconcileCmd, nil); err != nil {
		t.Fatalf("runReconcile: %v", err)
	}
	if !strings.Contains(buf.String(), `"skipped": true`) {
		t.Errorf("output = %s", buf.String())
	}
	if _, err := os.Stat("config/uuid_mapping.json"); !os.IsNotExist(err) {
		t.Error("registry written without sources")
	}
}

func TestPropagateCommand(t *testing.T) {
	setupWorkspace(t, map[string]string{
		"config/uuid_mapping.json": `{"Action": {"mbo_r": "run"}, "Person": {"mbo_p": "ada"}}`,
		"data/Action.csv":          "id,agent\nrun,ada\nwalk,ada\n",
	})

	var buf bytes.Buffer
	propagateCmd.SetOut(&buf)

	// Primary mode: "walk" has no binding
	err := runPropagate(propagateCmd, nil)
	if !errors.Is(err, errPropagationErrors) {
		t.Fatalf("primary run error = %v, want errPropagationErrors", err)
	}
	data, _ := os.ReadFile("data/Action.csv")
	if string(data) != "id,agent\nmbo_r,ada\nwalk,ada\n" {
		t.Errorf("primary rewrite = %q", data)
	}

	// All mode resolves the agent references; unmatched cells are not errors
	resetFlags()
	propagateMode = "all"
	buf.Reset()
	if err := runPropagate(propagateCmd, nil); err != nil {
		t.Fatalf("all run: %v", err)
	}
	data, _ = os.ReadFile("data/Action.csv")
	if string(data) != "id,agent\nmbo_r,mbo_p\nwalk,mbo_p\n" {
		t.Errorf("all rewrite = %q", data)
	}

	var out struct {
		Mode     string         `json:"mode"`
		Replaced int            `json:"replaced"`
		Columns  map[string]int `json:"columns"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if out.Mode != "all" || out.Replaced != 2 || out.Columns["agent"] != 2 {
		t.Errorf("output = %+v", out)
	}
}

func TestPropagateFileErrorExitStatus(t *testing.T) {
	setupWorkspace(t, map[string]string{
		"config/uuid_mapping.json": `{"Action": {"mbo_r": "run"}, "Person": {"mbo_p": "ada"}}`,
		"data/Action.csv":          "id,agent\nrun,ada\n",
	})
	// A directory matching the pattern cannot be read as a table
	if err := os.Mkdir(filepath.Join("data", "Person.csv"), 0755); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	propagateCmd.SetOut(&buf)
	if err := runPropagate(propagateCmd, nil); !errors.Is(err, errPropagationErrors) {
		t.Fatalf("primary run error = %v, want errPropagationErrors", err)
	}

	resetFlags()
	propagateMode = "all"
	buf.Reset()
	if err := runPropagate(propagateCmd, nil); err != nil {
		t.Fatalf("all run error = %v, want nil", err)
	}
	data, _ := os.ReadFile("data/Action.csv")
	if string(data) != "id,agent\nmbo_r,mbo_p\n" {
		t.Errorf("all rewrite = %q", data)
	}

	var out struct {
		Errors int `json:"errors"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if out.Errors != 1 {
		t.Errorf("errors = %d, want 1", out.Errors)
	}
}

func TestPropagateRequiresRegistry(t *testing.T) {
	setupWorkspace(t, map[string]string{"data/Action.csv": "id\nrun\n"})

	err := runPropagate(propagateCmd, nil)
	if !errors.Is(err, lookup.ErrRegistryMissing) {
		t.Fatalf("error = %v, want ErrRegistryMissing", err)
	}
	data, _ := os.ReadFile("data/Action.csv")
	if string(data) != "id\nrun\n" {
		t.Errorf("file changed without registry: %q", data)
	}
}

func TestPropagateInvalidMode(t *testing.T) {
	setupWorkspace(t, nil)
	propagateMode = "some"

	if err := runPropagate(propagateCmd, nil); err == nil || !strings.Contains(err.Error(), "invalid mode") {
		t.Errorf("error = %v, want invalid mode", err)
	}
}

func TestLookupCommand(t *testing.T) {
	setupWorkspace(t, map[string]string{
		"config/uuid_mapping.json": `{"Action": {"mbo_r": "run", "mbo_w": "walk"}, "Person": {}}`,
	})

	tests := []struct {
		name    string
		setup   func()
		args    []string
		want    string
		wantErr error
	}{
		{"forward", nil, []string{"Action", "run"}, `"uuid": "mbo_r"`, nil},
		{"bare", func() { lookupBare = true }, []string{"Action", "walk"}, "mbo_w\n", nil},
		{"reverse", func() { lookupReverse = true }, []string{"Action", "mbo_w"}, `"semantic_id": "walk"`, nil},
		{"all", func() { lookupAll = true }, []string{"Action"}, `"count": 2`, nil},
		{"classes", func() { lookupClasses = true }, nil, `"Person"`, nil},
		{"not found", nil, []string{"Action", "swim"}, "", lookup.ErrNotFound},
		{"reverse not found", func() { lookupReverse = true }, []string{"Action", "mbo_x"}, "", lookup.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			if tt.setup != nil {
				tt.setup()
			}
			var buf bytes.Buffer
			lookupCmd.SetOut(&buf)

			err := runLookup(lookupCmd, tt.args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("runLookup: %v", err)
			}
			if tt.name == "bare" {
				if buf.String() != tt.want {
					t.Errorf("output = %q, want %q", buf.String(), tt.want)
				}
				return
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %s, want containing %s", buf.String(), tt.want)
			}
		})
	}
}

func TestLookupArgs(t *testing.T) {
	setupWorkspace(t, nil)

	if err := runLookup(lookupCmd, []string{"Action"}); err == nil {
		t.Error("single argument without --all should fail")
	}
	lookupClasses = true
	if err := runLookup(lookupCmd, []string{"Action"}); err == nil {
		t.Error("--classes with arguments should fail")
	}
}

func TestLookupMissingRegistry(t *testing.T) {
	setupWorkspace(t, nil)

	err := runLookup(lookupCmd, []string{"Action", "run"})
	if !errors.Is(err, lookup.ErrRegistryMissing) {
		t.Fatalf("error = %v, want ErrRegistryMissing", err)
	}
}

func TestRegistryShowAndMigrate(t *testing.T) {
	doc := `{"Action": {"mbo_r": "run"}, "Person": {"mbo_a": "ada", "mbo_b": "bob"}}`
	setupWorkspace(t, map[string]string{"config/uuid_mapping.json": doc})

	var buf bytes.Buffer
	registryShowCmd.SetOut(&buf)
	if err := runRegistryShow(registryShowCmd, nil); err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(buf.String(), `"total": 3`) {
		t.Errorf("show output = %s", buf.String())
	}

	registryMigrateTo = "sqlite"
	registryMigrateDst = "ids.db"
	registryMigrateCmd.SetOut(&buf)
	if err := runRegistryMigrate(registryMigrateCmd, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// A second migration into the same database needs --force
	if err := runRegistryMigrate(registryMigrateCmd, nil); err == nil {
		t.Error("migrating over an existing registry should fail without --force")
	}
	registryForce = true
	if err := runRegistryMigrate(registryMigrateCmd, nil); err != nil {
		t.Fatalf("forced migrate: %v", err)
	}

	// Read back through the sqlite backend
	resetFlags()
	registryBackend = "sqlite"
	lookupRegistryPath = "ids.db"
	lookupBare = true
	buf.Reset()
	lookupCmd.SetOut(&buf)
	if err := runLookup(lookupCmd, []string{"Person", "bob"}); err != nil {
		t.Fatalf("lookup after migrate: %v", err)
	}
	if buf.String() != "mbo_b\n" {
		t.Errorf("lookup = %q, want mbo_b", buf.String())
	}
}

func TestRegistryShowCountsDuplicateBindings(t *testing.T) {
	doc := `{"X": {"mbo_a": "dup", "mbo_z": "dup"}}`
	setupWorkspace(t, map[string]string{"config/uuid_mapping.json": doc})

	var buf bytes.Buffer
	registryShowCmd.SetOut(&buf)
	if err := runRegistryShow(registryShowCmd, nil); err != nil {
		t.Fatalf("show: %v", err)
	}

	var out output.RegistryOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("show output is not JSON: %v\n%s", err, buf.String())
	}
	if len(out.Classes) != 1 || out.Classes[0].Count != 2 {
		t.Errorf("Classes = %+v, want X with 2 bindings", out.Classes)
	}
	if out.Total != 2 {
		t.Errorf("Total = %d, want 2", out.Total)
	}
}

func TestRegistryMigrateSameTarget(t *testing.T) {
	setupWorkspace(t, map[string]string{"config/uuid_mapping.json": `{}`})
	registryMigrateTo = "file"

	if err := runRegistryMigrate(registryMigrateCmd, nil); err == nil {
		t.Error("migrating a registry onto itself should fail")
	}
}

func TestInitCommand(t *testing.T) {
	setupWorkspace(t, nil)

	var buf bytes.Buffer
	initCmd.SetOut(&buf)
	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(buf.String(), filepath.Join(".stableid", "config.yaml")) {
		t.Errorf("output = %q", buf.String())
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig after init: %v", err)
	}
	if cfg.Registry.Path != "config/uuid_mapping.json" {
		t.Errorf("registry path = %q", cfg.Registry.Path)
	}

	if err := runInit(initCmd, nil); err == nil {
		t.Error("second init should fail")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setupWorkspace(t, nil)

	registryBackend = "mongo"
	if _, err := loadConfig(); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}

	registryBackend = "sqlite"
	outputFormat = "yaml"
	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Registry.Backend != "sqlite" || cfg.Output.Format != "yaml" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestApplyRegistryPath(t *testing.T) {
	tests := []struct {
		backend string
		check   func(config.RegistryConfig) string
		wantErr bool
	}{
		{"file", func(c config.RegistryConfig) string { return c.Path }, false},
		{"sqlite", func(c config.RegistryConfig) string { return c.SQLitePath }, false},
		{"s3", func(c config.RegistryConfig) string { return c.S3.Key }, false},
		{"postgres", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			rc := config.RegistryConfig{Backend: tt.backend}
			err := applyRegistryPath(&rc, "x/ids")
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyRegistryPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && tt.check(rc) != "x/ids" {
				t.Errorf("path not applied: %+v", rc)
			}
		})
	}
}

func TestAgentHelp(t *testing.T) {
	var buf bytes.Buffer
	outputAgentHelp(&buf, rootCmd)

	var doc struct {
		Version  string        `json:"version"`
		Commands []CommandInfo `json:"commands"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("agent help is not JSON: %v", err)
	}

	names := make(map[string]bool)
	for _, c := range doc.Commands {
		names[c.Name] = true
	}
	for _, want := range []string{"reconcile", "propagate", "lookup", "serve", "call", "registry", "init"} {
		if !names[want] {
			t.Errorf("agent help missing command %s", want)
		}
	}
}
