package yamlsuite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"go.uber.org/zap"

	"github.com/rlch/spar"
)

func init() {
	spar.RegisterEngine(spar.EngineYAMLSuite, func(cfg spar.EngineConfig) (spar.Engine, error) {
		return New(WithLogger(cfg.Logger)), nil
	}, Claims)
}

// Claims reports whether identifier names a suite file.
func Claims(identifier string) bool {
	return strings.HasSuffix(identifier, ".suite.yaml") || strings.HasSuffix(identifier, ".suite.yml")
}

// Engine runs suite files.
type Engine struct {
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Name returns the engine name.
func (e *Engine) Name() string { return spar.EngineYAMLSuite }

// FindTests emits every test of the suite file in declaration order.
func (e *Engine) FindTests(ctx context.Context, unit string, emit spar.Sink) error {
	f, err := ParseFile(unit)
	if err != nil {
		return err
	}

	for _, c := range f.Cases() {
		if err := ctx.Err(); err != nil {
			return err
		}

		emit(spar.FoundEvent(c.Name))
	}

	return nil
}

// RunTests evaluates every test of the suite file in declaration order.
// The file is re-read, so edits since discovery are picked up.
func (e *Engine) RunTests(ctx context.Context, unit string, emit spar.Sink) error {
	f, err := ParseFile(unit)
	if err != nil {
		return err
	}

	log := e.logger.With(zap.String("unit", unit))

	for _, c := range f.Cases() {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()

		emit(spar.RunningEvent(c.Name))

		outcome := Evaluate(c)

		log.Debug("test finished",
			zap.String("test", c.Name),
			zap.String("outcome", string(outcome.Kind())),
			zap.Duration("elapsed", time.Since(start)))

		emit(spar.FinishedEvent(c.Name, outcome))
	}

	return nil
}

// Evaluate computes the outcome of a single case.
func Evaluate(c Case) spar.Outcome {
	t := c.Test

	switch {
	case t.Ignore != "":
		return spar.Ignored{Message: t.Ignore}
	case t.Panic != "":
		return spar.ExceptionFailure{Description: t.Panic}
	case t.Fail != "":
		return spar.GeneralFailure{Message: t.Fail}
	}

	if t.Expect != "" {
		ok, err := check(t.Expect, c.Vars)
		if err != nil {
			return spar.ExceptionFailure{Description: err.Error()}
		}

		if !ok {
			return spar.ExpectationFailure{Message: "expected " + t.Expect}
		}
	}

	if t.Standard != "" {
		ok, err := check(t.Standard, c.Vars)
		if err != nil {
			return spar.ExceptionFailure{Description: err.Error()}
		}

		if !ok {
			return spar.StandardNotMet{}
		}
	}

	return spar.Success{}
}

// check compiles src as a boolean expression over env and runs it.
func check(src string, env map[string]any) (bool, error) {
	program, err := expr.Compile(src, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compiling %q: %w", src, err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", src, err)
	}

	ok, _ := out.(bool)

	return ok, nil
}
