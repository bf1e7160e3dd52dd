package spar

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// EngineFactory creates an Engine from configuration.
type EngineFactory func(cfg EngineConfig) (Engine, error)

// EngineConfig holds the settings handed to an engine factory.
type EngineConfig struct {
	// GoTest configures the gotest engine.
	GoTest GoTestConfig

	// Logger is used by engines that log; nil means no logging.
	Logger *zap.Logger
}

type engineEntry struct {
	factory EngineFactory
	claims  func(identifier string) bool
}

var engines = make(map[string]engineEntry)

// RegisterEngine registers an engine factory by name. claims reports whether
// the engine recognizes a unit identifier and may be nil.
func RegisterEngine(name string, factory EngineFactory, claims func(identifier string) bool) {
	engines[name] = engineEntry{factory: factory, claims: claims}
}

// NewEngine creates an engine instance by name.
func NewEngine(name string, cfg EngineConfig) (Engine, error) {
	entry, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, name)
	}

	return entry.factory(cfg)
}

// DetectEngine returns the name of the first registered engine, in name
// order, that claims the identifier.
func DetectEngine(identifier string) (string, error) {
	for _, name := range RegisteredEngines() {
		entry := engines[name]
		if entry.claims != nil && entry.claims(identifier) {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoEngine, identifier)
}

// RegisteredEngines returns the names of all registered engines, sorted.
func RegisteredEngines() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
