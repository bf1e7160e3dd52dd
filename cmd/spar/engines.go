package main

import (
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/rlch/spar"
)

// engineResolver picks an engine per unit: the --engine flag, then config
// patterns and default, then detection. Engines are created once per name.
type engineResolver struct {
	override string
	cfg      *spar.Config
	log      *zap.Logger

	mu      sync.Mutex
	engines map[string]spar.Engine
}

func newEngineResolver(override string, cfg *spar.Config, log *zap.Logger) *engineResolver {
	return &engineResolver{
		override: override,
		cfg:      cfg,
		log:      log,
		engines:  make(map[string]spar.Engine),
	}
}

// relative returns identifier relative to the config directory, slash
// separated, for matching config patterns.
func (r *engineResolver) relative(identifier string) string {
	abs, err := filepath.Abs(identifier)
	if err != nil || r.cfg.Dir == "" {
		return filepath.ToSlash(identifier)
	}

	rel, err := filepath.Rel(r.cfg.Dir, abs)
	if err != nil {
		return filepath.ToSlash(identifier)
	}

	return filepath.ToSlash(rel)
}

func (r *engineResolver) nameFor(identifier string) (string, error) {
	if r.override != "" {
		return r.override, nil
	}

	if name := r.cfg.EngineFor(r.relative(identifier)); name != "" {
		return name, nil
	}

	return spar.DetectEngine(identifier)
}

// Resolve implements model.EngineResolver.
func (r *engineResolver) Resolve(identifier string) (spar.Engine, error) {
	name, err := r.nameFor(identifier)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if engine, ok := r.engines[name]; ok {
		return engine, nil
	}

	engine, err := spar.NewEngine(name, spar.EngineConfig{
		GoTest: r.cfg.GoTest,
		Logger: r.log.With(zap.String("engine", name)),
	})
	if err != nil {
		return nil, err
	}

	r.engines[name] = engine

	return engine, nil
}
