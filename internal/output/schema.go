package output

// LookupOutput is the result of a single forward or reverse resolution.
type LookupOutput struct {
	Class      string `yaml:"class" json:"class"`
	SemanticID string `yaml:"semantic_id" json:"semantic_id"`
	UUID       string `yaml:"uuid,omitempty" json:"uuid,omitempty"`
	Found      bool   `yaml:"found" json:"found"`
}

// ClassOutput lists every binding of one class, keyed by semantic id.
type ClassOutput struct {
	Class  string            `yaml:"class" json:"class"`
	Exists bool              `yaml:"exists" json:"exists"`
	Count  int               `yaml:"count" json:"count"`
	IDs    map[string]string `yaml:"ids" json:"ids"`
}

// ClassListOutput lists the classes in a registry.
type ClassListOutput struct {
	Classes []string `yaml:"classes" json:"classes"`
	Count   int      `yaml:"count" json:"count"`
}

// RegistryOutput summarizes a loaded registry.
type RegistryOutput struct {
	// Source names the backend the registry was loaded from
	Source string `yaml:"source" json:"source"`

	Classes []ClassSummary `yaml:"classes" json:"classes"`
	Total   int            `yaml:"total" json:"total"`
}

// ClassSummary is the binding count of one class.
type ClassSummary struct {
	Name  string `yaml:"name" json:"name"`
	Count int    `yaml:"count" json:"count"`
}

// MigrateOutput reports a registry copy between backends.
type MigrateOutput struct {
	From    string `yaml:"from" json:"from"`
	To      string `yaml:"to" json:"to"`
	Entries int    `yaml:"entries" json:"entries"`
}

// ReconcileOutput summarizes a reconciliation run.
type ReconcileOutput struct {
	Registry string `yaml:"registry" json:"registry"`

	// Skipped is set when no identifiers were found and nothing was written
	Skipped bool `yaml:"skipped,omitempty" json:"skipped,omitempty"`

	NewCount     int              `yaml:"new_count" json:"new_count"`
	MissingCount int              `yaml:"missing_count" json:"missing_count"`
	Missing      []MissingSummary `yaml:"missing,omitempty" json:"missing,omitempty"`
	ReportPath   string           `yaml:"report_path,omitempty" json:"report_path,omitempty"`
}

// MissingSummary lists one missing identifier with its rename candidates.
type MissingSummary struct {
	Class      string   `yaml:"class" json:"class"`
	SemanticID string   `yaml:"semantic_id" json:"semantic_id"`
	UUID       string   `yaml:"uuid" json:"uuid"`
	Similar    []string `yaml:"similar,omitempty" json:"similar,omitempty"`
}

// PropagateOutput summarizes a propagation run.
type PropagateOutput struct {
	Mode     string         `yaml:"mode" json:"mode"`
	DryRun   bool           `yaml:"dry_run" json:"dry_run"`
	Replaced int            `yaml:"replaced" json:"replaced"`
	Skipped  int            `yaml:"skipped" json:"skipped"`
	Errors   int            `yaml:"errors" json:"errors"`
	Columns  map[string]int `yaml:"columns,omitempty" json:"columns,omitempty"`
	Files    []FileSummary  `yaml:"files" json:"files"`
}

// FileSummary is the propagation outcome of one file.
type FileSummary struct {
	Path       string   `yaml:"path" json:"path"`
	Replaced   int      `yaml:"replaced" json:"replaced"`
	Written    bool     `yaml:"written" json:"written"`
	SkipReason string   `yaml:"skip_reason,omitempty" json:"skip_reason,omitempty"`
	Error      string   `yaml:"error,omitempty" json:"error,omitempty"`
	Unresolved []string `yaml:"unresolved,omitempty" json:"unresolved,omitempty"`
}
