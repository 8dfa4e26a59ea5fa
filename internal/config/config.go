// Package config loads stableid configuration from .stableid/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the stableid configuration file
const ConfigFileName = "config.yaml"

// ConfigDirName is the name of the stableid configuration directory
const ConfigDirName = ".stableid"

// Config holds all stableid configuration
type Config struct {
	Registry  RegistryConfig  `yaml:"registry"`
	Sources   SourcesConfig   `yaml:"sources"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Propagate PropagateConfig `yaml:"propagate"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Output    OutputConfig    `yaml:"output"`
}

// RegistryConfig selects and locates the registry backend
type RegistryConfig struct {
	Backend     string   `yaml:"backend"`
	Path        string   `yaml:"path"`
	SQLitePath  string   `yaml:"sqlite_path"`
	PostgresDSN string   `yaml:"postgres_dsn"`
	S3          S3Config `yaml:"s3"`
}

// S3Config locates a registry document stored in S3
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Key       string `yaml:"key"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// SourcesConfig describes the tabular sources read during reconciliation
type SourcesConfig struct {
	Pattern   string `yaml:"pattern"`
	IDColumn  string `yaml:"id_column"`
	Delimiter string `yaml:"delimiter"`
}

// ReconcileConfig holds reconciliation tuning
type ReconcileConfig struct {
	IDPrefix string `yaml:"id_prefix"`
	// SimilarityThreshold is a pointer so an explicit 0 (suggest every
	// candidate) survives merging with the defaults.
	SimilarityThreshold *float64 `yaml:"similarity_threshold"`
	MaxSuggestions      int      `yaml:"max_suggestions"`
	ReportPath          string   `yaml:"report_path"`
}

// PropagateConfig holds propagation defaults
type PropagateConfig struct {
	Mode    string `yaml:"mode"`
	Dir     string `yaml:"dir"`
	Pattern string `yaml:"pattern"`
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// OutputConfig holds configuration for output formatting
type OutputConfig struct {
	Format string `yaml:"format"`
}

// ErrConfigNotFound is returned when no config file can be found
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from .stableid/config.yaml, falling back to defaults.
// It searches for the config directory starting from workDir and walking up
// the directory tree. If no config is found, returns defaults.
func Load(workDir string) (*Config, error) {
	configDir, err := FindConfigDir(workDir)
	if err != nil {
		// No config dir found, return defaults
		return DefaultConfig(), nil
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	return LoadFromPath(configPath)
}

// LoadFromPath reads config from a specific path.
// Merges loaded config with defaults and validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())

	if err := Validate(merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// FindConfigDir locates the .stableid directory by walking up from startDir.
// Returns the path to the .stableid directory if found.
func FindConfigDir(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	currentDir := absDir
	for {
		configDir := filepath.Join(currentDir, ConfigDirName)
		info, err := os.Stat(configDir)
		if err == nil && info.IsDir() {
			return configDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// EnsureConfigDir creates the .stableid directory if it doesn't exist.
// Returns the path to the .stableid directory.
func EnsureConfigDir(workDir string) (string, error) {
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDirName)

	info, err := os.Stat(configDir)
	if err == nil {
		if info.IsDir() {
			return configDir, nil
		}
		return "", fmt.Errorf("%s exists but is not a directory", configDir)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	return configDir, nil
}

// Validate checks that config values are valid.
// Returns an error if validation fails.
func Validate(cfg *Config) error {
	if !contains(ValidBackends, cfg.Registry.Backend) {
		return fmt.Errorf("%w: registry.backend must be one of %v, got %q",
			ErrInvalidConfig, ValidBackends, cfg.Registry.Backend)
	}

	switch cfg.Registry.Backend {
	case "s3":
		if cfg.Registry.S3.Bucket == "" {
			return fmt.Errorf("%w: registry.s3.bucket is required for the s3 backend", ErrInvalidConfig)
		}
	case "postgres":
		if cfg.Registry.PostgresDSN == "" {
			return fmt.Errorf("%w: registry.postgres_dsn is required for the postgres backend", ErrInvalidConfig)
		}
	}

	if cfg.Sources.IDColumn == "" {
		return fmt.Errorf("%w: sources.id_column must not be empty", ErrInvalidConfig)
	}

	if utf8.RuneCountInString(cfg.Sources.Delimiter) != 1 {
		return fmt.Errorf("%w: sources.delimiter must be a single character, got %q",
			ErrInvalidConfig, cfg.Sources.Delimiter)
	}

	// Similarity is a ratio
	if t := cfg.Reconcile.SimilarityThreshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("%w: similarity_threshold must be between 0 and 1, got %f",
			ErrInvalidConfig, *t)
	}

	if cfg.Reconcile.MaxSuggestions <= 0 {
		return fmt.Errorf("%w: max_suggestions must be positive, got %d",
			ErrInvalidConfig, cfg.Reconcile.MaxSuggestions)
	}

	if !contains(ValidModes, cfg.Propagate.Mode) {
		return fmt.Errorf("%w: propagate.mode must be one of %v, got %q",
			ErrInvalidConfig, ValidModes, cfg.Propagate.Mode)
	}

	if !contains(ValidFormats, cfg.Output.Format) {
		return fmt.Errorf("%w: output.format must be one of %v, got %q",
			ErrInvalidConfig, ValidFormats, cfg.Output.Format)
	}

	return nil
}

// SaveDefault writes the default configuration to .stableid/config.yaml in workDir.
// Creates the .stableid directory if it doesn't exist.
func SaveDefault(workDir string) (string, error) {
	configDir, err := EnsureConfigDir(workDir)
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(configDir, ConfigFileName)

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	header := "# stableid configuration\n# Flags passed on the command line override these values.\n\n"
	data = append([]byte(header), data...)

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	return configPath, nil
}

func contains(values []string, v string) bool {
	for _, valid := range values {
		if v == valid {
			return true
		}
	}
	return false
}
