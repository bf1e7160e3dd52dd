package model

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rlch/spar"
)

const (
	generalFailurePrefix = "General Failure\n"
	ignoredPrefix        = "Ignored:\n"
	standardNotMetDetail = "Standard not met, check the comparison"
)

// Classify maps an engine outcome to the record status and fail detail it
// produces. Ignored is reported as a failure by engines but is kept apart
// from real failures here.
func Classify(o spar.Outcome) (TestStatus, string) {
	switch o := o.(type) {
	case spar.Success:
		return StatusSuccess, ""
	case spar.ExceptionFailure:
		return StatusFailure, o.Description
	case spar.ExpectationFailure:
		return StatusFailure, o.Message
	case spar.GeneralFailure:
		return StatusFailure, generalFailurePrefix + o.Message
	case spar.Ignored:
		return StatusIgnored, ignoredPrefix + o.Message
	case spar.StandardNotMet:
		return StatusFailure, standardNotMetDetail
	default:
		panic(fmt.Sprintf("model: unhandled outcome %T", o))
	}
}

// adapter binds one unit to one engine instance. Engine calls happen on
// worker goroutines; every event they emit is posted to the unit mailbox so
// record mutations are applied one at a time and in emission order.
type adapter struct {
	engine spar.Engine
	unit   *Unit
}

func (a *adapter) discover(ctx context.Context) error {
	return guard(func() error {
		return a.engine.FindTests(ctx, a.unit.identifier, func(ev spar.Event) {
			a.unit.box.post(func() { a.unit.applyDiscoveryEvent(ev) })
		})
	})
}

func (a *adapter) execute(ctx context.Context, run *activeRun) error {
	return guard(func() error {
		return a.engine.RunTests(ctx, a.unit.identifier, func(ev spar.Event) {
			a.unit.box.post(func() { a.unit.applyRunEvent(run, ev) })
		})
	})
}

// guard runs fn and converts a returned error or a panic into an engine
// fault.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrEngineFault, r)
		}
	}()

	err = fn()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEngineFault, err)
	}

	return nil
}

// applyDiscoveryEvent runs on the mailbox goroutine.
func (u *Unit) applyDiscoveryEvent(ev spar.Event) {
	if ev.Kind != spar.EventFound {
		u.recordDiscoveryViolation(fmt.Errorf("%w: %s %q during discovery", ErrUnexpectedEvent, ev.Kind, ev.Name))

		return
	}

	if u.registerFromDiscovery(ev.Name) {
		u.dispatchEvent(u.ctx, ev)
	}
}

// applyRunEvent runs on the mailbox goroutine. Events after the run has
// finished or faulted are dropped.
func (u *Unit) applyRunEvent(run *activeRun, ev spar.Event) {
	if run.finished || run.err != nil {
		u.log.Debug("dropping event",
			zap.String("run", run.id),
			zap.String("kind", string(ev.Kind)),
			zap.String("test", ev.Name))

		return
	}

	var err error

	switch ev.Kind {
	case spar.EventRunning:
		err = u.applyRunningTransition(ev.Name)
	case spar.EventFinished:
		if run.reported[ev.Name] {
			err = fmt.Errorf("%w: %q finished twice", ErrUnexpectedEvent, ev.Name)

			break
		}

		err = u.applyResult(ev.Name, ev.Outcome, ev.Time)
		if err == nil {
			if run.reported == nil {
				run.reported = make(map[string]bool)
			}

			run.reported[ev.Name] = true
		}
	case spar.EventFound:
		// Discovery is idempotent, so a late found event is tolerated.
		if u.registerFromDiscovery(ev.Name) {
			u.dispatchEvent(run.ctx, ev)
		}

		return
	default:
		err = fmt.Errorf("%w: kind %q", ErrUnexpectedEvent, ev.Kind)
	}

	if err != nil {
		u.log.Error("engine protocol violation", zap.String("run", run.id), zap.Error(err))

		run.err = err
		run.cancel()

		return
	}

	u.dispatchEvent(run.ctx, ev)
}

// registerFromDiscovery creates a record for name unless one exists.
func (u *Unit) registerFromDiscovery(name string) bool {
	u.mu.Lock()
	if _, ok := u.index[name]; ok {
		u.mu.Unlock()

		return false
	}

	r := newRecord(name, u)
	u.records = append(u.records, r)
	u.index[name] = r
	u.mu.Unlock()

	u.raise(SignalTests)

	return true
}

// applyRunningTransition marks a known test as running.
func (u *Unit) applyRunningTransition(name string) error {
	r, ok := u.Record(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTest, name)
	}

	r.setStatus(StatusRunning)
	u.raise(SignalTests)

	return nil
}

// applyResult appends the outcome to the raw results and applies the
// classified status and detail to the record.
func (u *Unit) applyResult(name string, outcome spar.Outcome, at time.Time) error {
	if outcome == nil {
		return fmt.Errorf("%w: finished %q without outcome", ErrUnexpectedEvent, name)
	}

	r, ok := u.Record(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTest, name)
	}

	u.mu.Lock()
	u.results = append(u.results, Result{Test: name, Outcome: outcome, Time: at})
	u.mu.Unlock()

	u.raise(SignalResults)

	status, detail := Classify(outcome)
	r.setStatus(status)
	r.setFailDetail(detail)

	u.raise(SignalTests)

	return nil
}
