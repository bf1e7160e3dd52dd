package model

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rlch/spar"
)

// EngineResolver creates the engine for a unit identifier.
type EngineResolver func(identifier string) (spar.Engine, error)

// Suite aggregates units into one view: flattened tests and results, a
// single run-all gate and the current selection.
//
// Suite listeners see Tests and Results whenever any unit raises them, plus
// Units, Running, Selected and Description for suite-level changes. Signals
// from different units are delivered one at a time. Listeners may call back
// into the suite; signals raised meanwhile are delivered after the listener
// returns. Listeners must not call Close.
type Suite struct {
	notifier

	resolve EngineResolver
	opts    options
	log     *zap.Logger

	mu       sync.RWMutex
	units    []*Unit
	unsubs   map[*Unit]func()
	selected *Record

	running  atomic.Bool
	signals  signalQueue
	wg       sync.WaitGroup
}

// NewSuite creates an empty suite. Units added later receive the logger
// and handlers given here.
func NewSuite(resolve EngineResolver, opts ...Option) *Suite {
	o := newOptions(opts)

	return &Suite{
		resolve: resolve,
		opts:    o,
		log:     o.logger,
		unsubs:  make(map[*Unit]func()),
	}
}

func (s *Suite) raise(sig Signal) {
	s.signals.raise(sig, s.notifier.raise)
}

// relay forwards unit signals that change suite projections.
func (s *Suite) relay(sig Signal) {
	switch sig {
	case SignalTests:
		s.raise(SignalTests)

		if s.Selected() != nil {
			s.raise(SignalDescription)
		}
	case SignalResults:
		s.raise(SignalResults)
	case SignalRunning, SignalVisible:
		s.raise(SignalUnits)
	}
}

// AddUnit registers identifier, creates its engine and starts discovery.
// Adding an identifier that is already registered returns the existing
// unit. If the engine cannot be created nothing is added.
func (s *Suite) AddUnit(identifier string) (*Unit, error) {
	if u, ok := s.Unit(identifier); ok {
		return u, nil
	}

	engine, err := s.resolve(identifier)
	if err != nil {
		return nil, fmt.Errorf("adding unit %s: %w", identifier, err)
	}

	s.mu.Lock()

	// Another caller may have added it while the engine was resolved.
	if u := s.lookup(identifier); u != nil {
		s.mu.Unlock()

		return u, nil
	}

	u := newUnit(identifier, engine, s.opts)
	s.unsubs[u] = u.Subscribe(s.relay)
	s.units = append(s.units, u)
	s.mu.Unlock()

	u.start()

	s.log.Info("unit added", zap.String("unit", identifier), zap.String("engine", engine.Name()))

	s.raise(SignalUnits)
	s.raise(SignalTests)

	return u, nil
}

// RemoveUnit unsubscribes and closes the unit with identifier.
// It reports false if no such unit exists.
func (s *Suite) RemoveUnit(identifier string) bool {
	s.mu.Lock()

	u := s.lookup(identifier)
	if u == nil {
		s.mu.Unlock()

		return false
	}

	s.unsubs[u]()
	delete(s.unsubs, u)
	s.units = slices.DeleteFunc(s.units, func(x *Unit) bool { return x == u })

	deselected := s.selected != nil && s.selected.Unit() == u
	if deselected {
		s.selected = nil
	}
	s.mu.Unlock()

	u.Close()

	s.log.Info("unit removed", zap.String("unit", identifier))

	s.raise(SignalUnits)
	s.raise(SignalTests)
	s.raise(SignalResults)

	if deselected {
		s.raise(SignalSelected)
		s.raise(SignalDescription)
	}

	return true
}

func (s *Suite) lookup(identifier string) *Unit {
	for _, u := range s.units {
		if u.identifier == identifier {
			return u
		}
	}

	return nil
}

// Unit returns the unit with identifier.
func (s *Suite) Unit(identifier string) (*Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := s.lookup(identifier)

	return u, u != nil
}

// Units returns the units in insertion order.
func (s *Suite) Units() []*Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.units)
}

// Tests returns every unit's records concatenated in unit insertion order.
func (s *Suite) Tests() []*Record {
	var out []*Record
	for _, u := range s.Units() {
		out = append(out, u.Records()...)
	}

	return out
}

// Results returns every unit's raw results concatenated in unit insertion
// order.
func (s *Suite) Results() []Result {
	var out []Result
	for _, u := range s.Units() {
		out = append(out, u.Results()...)
	}

	return out
}

// Counts tallies all records by status.
func (s *Suite) Counts() Counts {
	return CountRecords(s.Tests())
}

// Running reports whether a run-all is in flight.
func (s *Suite) Running() bool { return s.running.Load() }

// CanRun reports whether RunAll would currently be accepted.
func (s *Suite) CanRun() bool { return !s.running.Load() }

// RunAll runs every unit and returns immediately.
//
// It returns false if a run-all is already in flight. Units that are
// already running are skipped and reported as rejected. The returned
// channel receives one report once every unit has finished.
func (s *Suite) RunAll(ctx context.Context) (<-chan RunReport, bool) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, false
	}

	units := s.Units()
	out := make(chan RunReport, 1)

	s.log.Info("run all started", zap.Int("units", len(units)))
	s.raise(SignalRunning)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		report := RunReport{Started: time.Now(), Units: make([]UnitReport, len(units))}

		var g errgroup.Group
		if s.opts.concurrency > 0 {
			g.SetLimit(s.opts.concurrency)
		}

		for i, u := range units {
			g.Go(func() error {
				done, ok := u.Run(ctx)
				if !ok {
					report.Units[i] = UnitReport{Unit: u.identifier, Rejected: true}

					return nil
				}

				report.Units[i] = <-done

				return nil
			})
		}

		_ = g.Wait()

		report.Finished = time.Now()

		s.running.Store(false)
		s.raise(SignalRunning)

		err := report.Err()
		if err != nil {
			s.log.Warn("run all finished with errors", zap.Error(err))
		} else {
			s.log.Info("run all finished", zap.Duration("elapsed", report.Finished.Sub(report.Started)))
		}

		out <- report
		close(out)
	}()

	return out, true
}

// Select makes r the selected record. A nil r clears the selection.
func (s *Suite) Select(r *Record) {
	s.mu.Lock()
	if s.selected == r {
		s.mu.Unlock()

		return
	}

	s.selected = r
	s.mu.Unlock()

	s.raise(SignalSelected)
	s.raise(SignalDescription)
}

// SelectByName selects the named test of a unit. An empty unit clears the
// selection.
func (s *Suite) SelectByName(unit, name string) error {
	if unit == "" {
		s.Select(nil)

		return nil
	}

	u, ok := s.Unit(unit)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnitNotFound, unit)
	}

	r, ok := u.Record(name)
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrUnknownTest, name, unit)
	}

	s.Select(r)

	return nil
}

// Selected returns the selected record, or nil.
func (s *Suite) Selected() *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.selected
}

// Description returns the fail detail of the selected record, or "" when
// nothing is selected.
func (s *Suite) Description() string {
	r := s.Selected()
	if r == nil {
		return ""
	}

	return r.FailDetail()
}

// Close closes every unit and waits for an in-flight run-all to deliver
// its report.
func (s *Suite) Close() {
	s.mu.Lock()
	units := s.units
	s.units = nil

	for u, unsub := range s.unsubs {
		unsub()
		delete(s.unsubs, u)
	}

	s.selected = nil
	s.mu.Unlock()

	for _, u := range units {
		u.Close()
	}

	s.wg.Wait()
}
