package config

// DefaultConfig returns configuration with sensible defaults.
// These defaults are used when no config file exists or when
// config file is missing specific fields.
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			Backend:    "file",
			Path:       "config/uuid_mapping.json",
			SQLitePath: "config/uuid_mapping.db",
			S3: S3Config{
				Key:    "config/uuid_mapping.json",
				Region: "us-east-1",
			},
		},
		Sources: SourcesConfig{
			Pattern:   "out/*.csv",
			IDColumn:  "id",
			Delimiter: ",",
		},
		Reconcile: ReconcileConfig{
			IDPrefix:            "mbo_",
			SimilarityThreshold: floatPtr(0.75),
			MaxSuggestions:      3,
			ReportPath:          "id_sync_report.json",
		},
		Propagate: PropagateConfig{
			Mode:    "primary",
			Dir:     "data",
			Pattern: "*.csv",
		},
		Output: OutputConfig{
			Format: "yaml",
		},
	}
}

// Merge merges loaded config with defaults.
// Values from loaded config take precedence over defaults.
// Returns a new Config with merged values.
func Merge(loaded, defaults *Config) *Config {
	result := &Config{}

	result.Registry = mergeRegistryConfig(loaded.Registry, defaults.Registry)
	result.Sources = mergeSourcesConfig(loaded.Sources, defaults.Sources)
	result.Reconcile = mergeReconcileConfig(loaded.Reconcile, defaults.Reconcile)
	result.Propagate = mergePropagateConfig(loaded.Propagate, defaults.Propagate)

	// Metrics has no defaults; an empty textfile disables export
	result.Metrics = loaded.Metrics

	result.Output = mergeOutputConfig(loaded.Output, defaults.Output)

	return result
}

func mergeRegistryConfig(loaded, defaults RegistryConfig) RegistryConfig {
	result := RegistryConfig{
		Backend:     orDefault(loaded.Backend, defaults.Backend),
		Path:        orDefault(loaded.Path, defaults.Path),
		SQLitePath:  orDefault(loaded.SQLitePath, defaults.SQLitePath),
		PostgresDSN: orDefault(loaded.PostgresDSN, defaults.PostgresDSN),
	}

	result.S3 = S3Config{
		Bucket:   orDefault(loaded.S3.Bucket, defaults.S3.Bucket),
		Key:      orDefault(loaded.S3.Key, defaults.S3.Key),
		Region:   orDefault(loaded.S3.Region, defaults.S3.Region),
		Endpoint: orDefault(loaded.S3.Endpoint, defaults.S3.Endpoint),
		// bool can't distinguish unset from false; false is the default
		PathStyle: loaded.S3.PathStyle,
	}

	return result
}

func mergeSourcesConfig(loaded, defaults SourcesConfig) SourcesConfig {
	return SourcesConfig{
		Pattern:   orDefault(loaded.Pattern, defaults.Pattern),
		IDColumn:  orDefault(loaded.IDColumn, defaults.IDColumn),
		Delimiter: orDefault(loaded.Delimiter, defaults.Delimiter),
	}
}

func mergeReconcileConfig(loaded, defaults ReconcileConfig) ReconcileConfig {
	result := ReconcileConfig{
		IDPrefix:   orDefault(loaded.IDPrefix, defaults.IDPrefix),
		ReportPath: orDefault(loaded.ReportPath, defaults.ReportPath),
	}

	// SimilarityThreshold: use loaded if set, zero included
	if loaded.SimilarityThreshold != nil {
		result.SimilarityThreshold = floatPtr(*loaded.SimilarityThreshold)
	} else if defaults.SimilarityThreshold != nil {
		result.SimilarityThreshold = floatPtr(*defaults.SimilarityThreshold)
	}

	// MaxSuggestions: use loaded if non-zero
	if loaded.MaxSuggestions != 0 {
		result.MaxSuggestions = loaded.MaxSuggestions
	} else {
		result.MaxSuggestions = defaults.MaxSuggestions
	}

	return result
}

func mergePropagateConfig(loaded, defaults PropagateConfig) PropagateConfig {
	return PropagateConfig{
		Mode:    orDefault(loaded.Mode, defaults.Mode),
		Dir:     orDefault(loaded.Dir, defaults.Dir),
		Pattern: orDefault(loaded.Pattern, defaults.Pattern),
	}
}

func mergeOutputConfig(loaded, defaults OutputConfig) OutputConfig {
	return OutputConfig{
		Format: orDefault(loaded.Format, defaults.Format),
	}
}

func orDefault(loaded, def string) string {
	if loaded != "" {
		return loaded
	}
	return def
}

// ValidBackends lists the valid values for registry.backend
var ValidBackends = []string{"file", "sqlite", "postgres", "s3"}

// ValidModes lists the valid values for propagate.mode
var ValidModes = []string{"primary", "all"}

// ValidFormats lists the valid values for output.format
var ValidFormats = []string{"yaml", "json"}

func floatPtr(v float64) *float64 {
	return &v
}
