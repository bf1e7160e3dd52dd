package spar

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Config represents the .spar.yaml configuration file.
type Config struct {
	// Engine is the default engine name. Empty means detect per unit.
	Engine string `yaml:"engine,omitempty"`

	// Engines maps doublestar patterns to engine names, overriding Engine
	// for matching unit identifiers.
	Engines map[string]string `yaml:"engines,omitempty"`

	// Units lists doublestar globs, relative to the config file, whose
	// matches are registered as units when no paths are given.
	Units []string `yaml:"units,omitempty"`

	// Concurrency caps how many units run at once during a run-all.
	// Zero means unlimited.
	Concurrency int `yaml:"concurrency,omitempty"`

	Log     LogConfig     `yaml:"log,omitempty"`
	GoTest  GoTestConfig  `yaml:"gotest,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`

	// Dir is the directory the config was loaded from.
	Dir string `yaml:"-"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // console or json

	// File receives logs instead of stderr. The TUI discards logs when it
	// is empty.
	File string `yaml:"file,omitempty"`
}

// GoTestConfig configures the gotest engine.
type GoTestConfig struct {
	Go      string        `yaml:"go,omitempty"`
	Flags   []string      `yaml:"flags,omitempty"`
	Tags    []string      `yaml:"tags,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// HistoryConfig holds run history store settings.
// Only one backend should be set.
type HistoryConfig struct {
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
	Neo4j  *Neo4jConfig  `yaml:"neo4j,omitempty"`
}

// SQLiteConfig holds SQLite history settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Neo4jConfig holds Neo4j connection settings.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// StoreName returns the configured history backend, or empty if none.
func (h HistoryConfig) StoreName() string {
	switch {
	case h.SQLite != nil:
		return HistorySQLite
	case h.Neo4j != nil:
		return HistoryNeo4j
	default:
		return ""
	}
}

// StoreConfig returns the settings of the configured history backend.
func (h HistoryConfig) StoreConfig() any {
	switch {
	case h.SQLite != nil:
		return h.SQLite
	case h.Neo4j != nil:
		return h.Neo4j
	default:
		return nil
	}
}

// DefaultConfigNames are the filenames we search for.
var DefaultConfigNames = []string{ConfigFile, ".spar.yml", "spar.yaml", "spar.yml"}

// LoadConfig finds and loads the nearest .spar.yaml walking up from dir.
func LoadConfig(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(path)
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)

			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}

		dir = parent
	}
}

// LoadConfigFile loads a config from a specific path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.Dir = filepath.Dir(path)

	return &cfg, nil
}

// EngineFor returns the engine name for a unit identifier.
// Pattern overrides are checked first, then the default engine.
// An empty result means the engine should be detected.
func (c *Config) EngineFor(identifier string) string {
	patterns := make([]string, 0, len(c.Engines))
	for pattern := range c.Engines {
		patterns = append(patterns, pattern)
	}

	sort.Strings(patterns)

	for _, pattern := range patterns {
		if matched, _ := doublestar.PathMatch(pattern, identifier); matched {
			return c.Engines[pattern]
		}
	}

	return c.Engine
}

// ResolveUnits expands the Units globs relative to Dir.
// Matches are returned sorted and without duplicates.
func (c *Config) ResolveUnits() ([]string, error) {
	seen := make(map[string]bool)

	var units []string

	for _, pattern := range c.Units {
		if !filepath.IsAbs(pattern) && c.Dir != "" {
			pattern = filepath.Join(c.Dir, pattern)
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}

		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				units = append(units, m)
			}
		}
	}

	sort.Strings(units)

	return units, nil
}
