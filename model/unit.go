package model

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rlch/spar"
)

// Unit is one independently discovered and run collection of tests, backed
// by one engine instance.
//
// All record mutations happen on a single event goroutine owned by the
// unit, in the order the engine emitted them. Accessors are safe for
// concurrent use and never block on a run.
type Unit struct {
	notifier

	identifier  string
	displayName string
	adapter     adapter
	handler     Handler
	log         *zap.Logger

	mu      sync.RWMutex
	records []*Record
	index   map[string]*Record
	results []Result
	visible bool
	closing bool

	running atomic.Bool

	discovered     chan struct{}
	discoveredOnce sync.Once
	discoveryErr   error

	box       *mailbox
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// activeRun is owned by the event goroutine once started.
type activeRun struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	stop     func() bool
	started  time.Time
	finished bool
	err      error
	done     chan UnitReport

	// reported holds the tests that already finished in this run.
	reported map[string]bool
}

// NewUnit creates a unit for identifier and starts discovering its tests.
// Discovery runs in the background; use Discovered or WaitDiscovered to
// observe its completion.
func NewUnit(identifier string, engine spar.Engine, opts ...Option) *Unit {
	u := newUnit(identifier, engine, newOptions(opts))
	u.start()

	return u
}

func newUnit(identifier string, engine spar.Engine, o options) *Unit {
	ctx, cancel := context.WithCancel(context.Background())

	u := &Unit{
		identifier:  identifier,
		displayName: displayName(identifier),
		handler:     o.handler(),
		log:         o.logger.With(zap.String("unit", identifier)),
		index:       make(map[string]*Record),
		visible:     true,
		discovered:  make(chan struct{}),
		box:         newMailbox(),
		ctx:         ctx,
		cancel:      cancel,
	}
	u.adapter = adapter{engine: engine, unit: u}

	return u
}

// displayName derives a short name from a path or package pattern.
func displayName(identifier string) string {
	trimmed := strings.TrimSuffix(filepath.ToSlash(identifier), "/...")
	if trimmed == "" || trimmed == "." || trimmed == "..." {
		return identifier
	}

	return filepath.Base(trimmed)
}

func (u *Unit) start() {
	u.wg.Add(1)

	go func() {
		defer u.wg.Done()

		u.log.Debug("discovering tests")

		err := u.adapter.discover(u.ctx)
		u.do(func() { u.finishDiscovery(err) })
	}()
}

// do runs fn on the event goroutine, or directly once that goroutine has
// exited.
func (u *Unit) do(fn func()) {
	if !u.box.post(fn) {
		<-u.box.done
		fn()
	}
}

func (u *Unit) finishDiscovery(err error) {
	if err != nil {
		u.recordDiscoveryViolation(fmt.Errorf("%w: %w", ErrDiscovery, err))
	}

	u.discoveredOnce.Do(func() { close(u.discovered) })

	u.mu.RLock()
	n := len(u.records)
	u.mu.RUnlock()

	u.log.Debug("discovery finished", zap.Int("tests", n), zap.Error(err))
}

func (u *Unit) recordDiscoveryViolation(err error) {
	u.log.Error("discovery failed", zap.Error(err))

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.discoveryErr == nil {
		u.discoveryErr = err
	}
}

func (u *Unit) dispatchEvent(ctx context.Context, ev spar.Event) {
	if u.handler == nil {
		return
	}

	err := u.handler.Event(ctx, u, ev)
	if err != nil {
		u.log.Warn("handler failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

// Identifier returns the path or handle passed to the engine.
func (u *Unit) Identifier() string { return u.identifier }

// DisplayName returns the short name shown to users.
func (u *Unit) DisplayName() string { return u.displayName }

// Engine returns the engine name backing this unit.
func (u *Unit) Engine() string { return u.adapter.engine.Name() }

// Discovered is closed once discovery has finished, successfully or not.
func (u *Unit) Discovered() <-chan struct{} { return u.discovered }

// WaitDiscovered blocks until discovery finishes or ctx is done and
// returns the discovery fault, if any.
func (u *Unit) WaitDiscovered(ctx context.Context) error {
	select {
	case <-u.discovered:
		return u.DiscoveryErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DiscoveryErr returns the fault recorded during discovery.
func (u *Unit) DiscoveryErr() error {
	u.mu.RLock()
	defer u.mu.RUnlock()

	return u.discoveryErr
}

// Records returns the records in discovery order.
func (u *Unit) Records() []*Record {
	u.mu.RLock()
	defer u.mu.RUnlock()

	return slices.Clone(u.records)
}

// Record looks up a record by test name.
func (u *Unit) Record(name string) (*Record, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	r, ok := u.index[name]

	return r, ok
}

// Results returns the raw outcomes reported during the current or last run.
func (u *Unit) Results() []Result {
	u.mu.RLock()
	defer u.mu.RUnlock()

	return slices.Clone(u.results)
}

// Counts tallies the records of this unit by status.
func (u *Unit) Counts() Counts {
	return CountRecords(u.Records())
}

// Running reports whether a run is in flight.
func (u *Unit) Running() bool { return u.running.Load() }

// CanRun reports whether Run would currently be accepted.
func (u *Unit) CanRun() bool { return !u.running.Load() }

// Visible reports the presentation visibility hint.
func (u *Unit) Visible() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()

	return u.visible
}

// SetVisible sets the visibility hint.
func (u *Unit) SetVisible(v bool) {
	u.mu.Lock()
	if u.visible == v {
		u.mu.Unlock()

		return
	}

	u.visible = v
	u.mu.Unlock()

	u.raise(SignalVisible)
}

// ToggleVisible flips the visibility hint and returns the new value.
func (u *Unit) ToggleVisible() bool {
	u.mu.Lock()
	u.visible = !u.visible
	v := u.visible
	u.mu.Unlock()

	u.raise(SignalVisible)

	return v
}

// Run starts a run of every test in the unit and returns immediately.
//
// It returns false, and starts nothing, if a run is already in flight.
// Otherwise the returned channel receives exactly one report when the run
// gate reopens. Cancelling ctx does not stop the run; closing the unit
// does.
func (u *Unit) Run(ctx context.Context) (<-chan UnitReport, bool) {
	if !u.running.CompareAndSwap(false, true) {
		return nil, false
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &activeRun{
		id:      uuid.NewString(),
		ctx:     runCtx,
		cancel:  cancel,
		stop:    context.AfterFunc(u.ctx, cancel),
		started: time.Now(),
		done:    make(chan UnitReport, 1),
	}

	u.mu.Lock()
	closing := u.closing
	if !closing {
		u.wg.Add(1)
	}
	u.mu.Unlock()

	if closing || !u.box.post(func() { u.startRun(run) }) {
		if !closing {
			u.wg.Done()
		}

		<-u.box.done
		u.finishRun(run, ErrClosed)

		return run.done, true
	}

	go u.execute(run)

	return run.done, true
}

func (u *Unit) startRun(run *activeRun) {
	u.mu.Lock()
	u.results = nil
	records := slices.Clone(u.records)
	u.mu.Unlock()

	for _, r := range records {
		r.setStatus(StatusNone)
	}

	u.log.Info("run started", zap.String("run", run.id))

	u.raise(SignalRunning)
	u.raise(SignalResults)
	u.raise(SignalTests)

	if u.handler != nil {
		err := u.handler.Start(run.ctx, u, run.id)
		if err != nil {
			u.log.Warn("handler failed", zap.String("run", run.id), zap.Error(err))
		}
	}
}

func (u *Unit) execute(run *activeRun) {
	defer u.wg.Done()

	var err error

	select {
	case <-u.discovered:
		err = u.DiscoveryErr()
		if err == nil {
			err = u.adapter.execute(run.ctx, run)
		}
	case <-run.ctx.Done():
	}

	if u.ctx.Err() != nil {
		err = ErrClosed
	}

	u.do(func() { u.finishRun(run, err) })
}

// finishRun reopens the gate and delivers the report. A protocol violation
// recorded during the run takes precedence over the engine's return value.
func (u *Unit) finishRun(run *activeRun, err error) {
	if run.finished {
		return
	}

	run.finished = true

	if run.err == nil {
		run.err = err
	}

	u.mu.RLock()
	n := len(u.results)
	u.mu.RUnlock()

	report := UnitReport{
		RunID:    run.id,
		Unit:     u.identifier,
		Started:  run.started,
		Finished: time.Now(),
		Results:  n,
		Err:      run.err,
	}

	u.running.Store(false)
	u.raise(SignalRunning)

	fields := []zap.Field{
		zap.String("run", run.id),
		zap.Int("results", n),
		zap.Duration("elapsed", report.Elapsed()),
	}

	switch {
	case run.err == nil:
		u.log.Info("run finished", fields...)
	case errors.Is(run.err, ErrClosed):
		u.log.Debug("run abandoned", fields...)
	default:
		u.log.Warn("run failed", append(fields, zap.Error(run.err))...)
	}

	if u.handler != nil {
		herr := u.handler.Done(run.ctx, u, report)
		if herr != nil {
			u.log.Warn("handler failed", zap.String("run", run.id), zap.Error(herr))
		}
	}

	run.stop()
	run.cancel()

	run.done <- report
	close(run.done)
}

// Close cancels discovery and any in-flight run, then waits for the unit's
// goroutines to exit. A pending run report is delivered with ErrClosed.
// Close must not be called from a listener or handler of this unit.
func (u *Unit) Close() {
	u.closeOnce.Do(func() {
		u.mu.Lock()
		u.closing = true
		u.mu.Unlock()

		u.cancel()
		u.box.close()
		u.wg.Wait()
		u.discoveredOnce.Do(func() { close(u.discovered) })
	})
}
