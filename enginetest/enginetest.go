// Package enginetest provides a scripted engine for exercising the model
// without a real test framework.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rlch/spar"
)

// Name is the engine name reported by Engine.
const Name = "enginetest"

// Engine is a scripted spar.Engine. The zero value discovers nothing.
//
// By default RunTests emits a running and a finished event for every test,
// in discovery order, with a Success outcome unless one was set with
// WithOutcome.
type Engine struct {
	mu        sync.Mutex
	tests     []string
	outcomes  map[string]spar.Outcome
	script    []spar.Event
	scripted  bool
	findErr   error
	runErr    error
	runPanic  any
	blocked   bool
	gate      chan struct{}
	started   chan struct{}
	finds     atomic.Int32
	runs      atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

// New returns an engine that discovers tests in order. Duplicate names are
// emitted as given.
func New(tests ...string) *Engine {
	return &Engine{
		tests:    tests,
		outcomes: make(map[string]spar.Outcome),
		started:  make(chan struct{}, 16),
	}
}

// WithOutcome sets the outcome reported for name.
func (e *Engine) WithOutcome(name string, o spar.Outcome) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.outcomes[name] = o

	return e
}

// Script replaces the events emitted by RunTests.
func (e *Engine) Script(events ...spar.Event) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.script = events
	e.scripted = true

	return e
}

// FailDiscovery makes FindTests return err after emitting its tests.
func (e *Engine) FailDiscovery(err error) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.findErr = err

	return e
}

// FailRun makes RunTests return err after emitting its events.
func (e *Engine) FailRun(err error) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.runErr = err

	return e
}

// PanicRun makes RunTests panic with v after emitting its events.
func (e *Engine) PanicRun(v any) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.runPanic = v

	return e
}

// Block makes subsequent runs wait, before emitting anything, until
// Release is called or the run context is done.
func (e *Engine) Block() *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.blocked = true
	e.gate = make(chan struct{})

	return e
}

// Release unblocks waiting runs and stops blocking later ones.
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.blocked {
		e.blocked = false
		close(e.gate)
	}
}

// Started receives once per RunTests call, before it emits anything.
func (e *Engine) Started() <-chan struct{} { return e.started }

// Finds returns how many times FindTests was called.
func (e *Engine) Finds() int { return int(e.finds.Load()) }

// Runs returns how many times RunTests was called.
func (e *Engine) Runs() int { return int(e.runs.Load()) }

// MaxConcurrent returns the largest number of overlapping RunTests calls
// observed.
func (e *Engine) MaxConcurrent() int { return int(e.maxFlight.Load()) }

func (e *Engine) Name() string { return Name }

func (e *Engine) FindTests(ctx context.Context, _ string, emit spar.Sink) error {
	e.finds.Add(1)

	e.mu.Lock()
	tests := append([]string(nil), e.tests...)
	err := e.findErr
	e.mu.Unlock()

	for _, name := range tests {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		emit(spar.FoundEvent(name))
	}

	return err
}

func (e *Engine) RunTests(ctx context.Context, _ string, emit spar.Sink) error {
	e.runs.Add(1)

	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)

	for {
		m := e.maxFlight.Load()
		if n <= m || e.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}

	select {
	case e.started <- struct{}{}:
	default:
	}

	e.mu.Lock()
	blocked, gate := e.blocked, e.gate
	events := e.events()
	runErr, runPanic := e.runErr, e.runPanic
	e.mu.Unlock()

	if blocked {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, ev := range events {
		emit(ev)
	}

	if runPanic != nil {
		panic(runPanic)
	}

	return runErr
}

// events must be called with mu held.
func (e *Engine) events() []spar.Event {
	if e.scripted {
		return append([]spar.Event(nil), e.script...)
	}

	events := make([]spar.Event, 0, 2*len(e.tests))
	seen := make(map[string]bool)

	for _, name := range e.tests {
		if seen[name] {
			continue
		}

		seen[name] = true

		o, ok := e.outcomes[name]
		if !ok {
			o = spar.Success{}
		}

		events = append(events, spar.RunningEvent(name), spar.FinishedEvent(name, o))
	}

	return events
}

// ErrNoEngine is returned by Engines.Resolve for unknown identifiers.
var ErrNoEngine = fmt.Errorf("enginetest: %w", spar.ErrNoEngine)

// Engines maps unit identifiers to scripted engines.
type Engines map[string]*Engine

// Resolve returns the engine registered for identifier.
func (e Engines) Resolve(identifier string) (spar.Engine, error) {
	engine, ok := e[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEngine, identifier)
	}

	return engine, nil
}
