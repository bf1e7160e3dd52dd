// Package gotest implements an engine whose units are Go packages, driven
// through go test -list and go test -json.
package gotest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/rlch/spar"
)

func init() {
	spar.RegisterEngine(spar.EngineGoTest, func(cfg spar.EngineConfig) (spar.Engine, error) {
		return New(
			WithGo(cfg.GoTest.Go),
			WithFlags(cfg.GoTest.Flags...),
			WithTags(cfg.GoTest.Tags...),
			WithTimeout(cfg.GoTest.Timeout),
			WithLogger(cfg.Logger),
		), nil
	}, Claims)
}

// Claims reports whether identifier is a directory holding Go test files.
func Claims(identifier string) bool {
	info, err := os.Stat(identifier)
	if err != nil || !info.IsDir() {
		return false
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(identifier, "*_test.go"))

	return err == nil && len(matches) > 0
}

// Engine runs the tests of one Go package per unit.
type Engine struct {
	goBin   string
	flags   []string
	tags    []string
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithGo sets the go binary. Empty keeps the default "go".
func WithGo(bin string) Option {
	return func(e *Engine) {
		if bin != "" {
			e.goBin = bin
		}
	}
}

// WithFlags appends extra go test flags.
func WithFlags(flags ...string) Option {
	return func(e *Engine) {
		e.flags = append(e.flags, flags...)
	}
}

// WithTags sets build tags.
func WithTags(tags ...string) Option {
	return func(e *Engine) {
		e.tags = append(e.tags, tags...)
	}
}

// WithTimeout bounds each go test invocation. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

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
	e := &Engine{goBin: "go", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Name returns the engine name.
func (e *Engine) Name() string { return spar.EngineGoTest }

// FindTests lists the top-level tests of the package.
func (e *Engine) FindTests(ctx context.Context, unit string, emit spar.Sink) error {
	names, err := e.list(ctx, unit)
	if err != nil {
		return err
	}

	for _, name := range names {
		emit(spar.FoundEvent(name))
	}

	return nil
}

// RunTests runs the listed tests once, streaming their events.
func (e *Engine) RunTests(ctx context.Context, unit string, emit spar.Sink) error {
	names, err := e.list(ctx, unit)
	if err != nil {
		return err
	}

	if len(names) == 0 {
		return nil
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	args := e.args("-json", "-count=1", "-run", runPattern(names))
	cmd := e.command(ctx, unit, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	log := e.logger.With(zap.String("unit", unit))
	log.Debug("running tests", zap.String("command", cmd.String()))

	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("starting go test: %w", err)
	}

	tr := newTranslator(emit)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		ev, perr := ParseTestEvent(line)
		if perr != nil {
			log.Debug("skipping non-json line", zap.ByteString("line", line), zap.Error(perr))

			continue
		}

		tr.handle(ev)
	}

	scanErr := scanner.Err()
	waitErr := cmd.Wait()

	tr.finish()

	if !tr.sawTest {
		if waitErr == nil && scanErr == nil {
			return nil
		}

		return fmt.Errorf("%w: %s%s", ErrBuildFailed, tr.pkgOutput.String(), stderr.String())
	}

	if scanErr != nil {
		return fmt.Errorf("reading go test output: %w", scanErr)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return fmt.Errorf("waiting for go test: %w", waitErr)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	return nil
}

func (e *Engine) list(ctx context.Context, unit string) ([]string, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	cmd := e.command(ctx, unit, e.args("-list", "^Test")...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("listing tests", zap.String("unit", unit), zap.String("command", cmd.String()))

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrListFailed, ctx.Err())
		}

		return nil, fmt.Errorf("%w: %w\nstderr: %s", ErrListFailed, err, strings.TrimSpace(stderr.String()))
	}

	return ParseTestList(stdout.Bytes()), nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	// Leave go test room to report its own timeout first.
	return context.WithTimeout(ctx, e.timeout+5*time.Second)
}

func (e *Engine) args(extra ...string) []string {
	args := []string{"test"}

	if len(e.tags) > 0 {
		args = append(args, "-tags", strings.Join(e.tags, ","))
	}

	if e.timeout > 0 {
		args = append(args, "-timeout", e.timeout.String())
	}

	args = append(args, e.flags...)

	return append(args, extra...)
}

// command runs go in the unit directory when the unit is a directory, and
// passes it as a package pattern otherwise.
func (e *Engine) command(ctx context.Context, unit string, args ...string) *exec.Cmd {
	info, err := os.Stat(unit)
	if err == nil && info.IsDir() {
		cmd := exec.CommandContext(ctx, e.goBin, append(args, ".")...)
		cmd.Dir = unit

		return cmd
	}

	return exec.CommandContext(ctx, e.goBin, append(args, unit)...)
}
