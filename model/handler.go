package model

import (
	"context"

	"go.uber.org/multierr"

	"github.com/rlch/spar"
)

// Handler observes unit runs. Calls are made from the unit's event
// goroutine, in the order the model applies them, after the corresponding
// record mutation is visible. Errors are logged and never fail a run.
type Handler interface {
	// Start is called once a run has reset the unit.
	Start(ctx context.Context, unit *Unit, runID string) error

	// Event is called for each engine event the unit applied.
	Event(ctx context.Context, unit *Unit, event spar.Event) error

	// Done is called when the run gate reopens.
	Done(ctx context.Context, unit *Unit, report UnitReport) error
}

// MultiHandler fans out to multiple handlers.
type MultiHandler struct {
	handlers []Handler
}

// NewMultiHandler creates a handler that dispatches to multiple handlers.
// Nil handlers are skipped.
func NewMultiHandler(handlers ...Handler) *MultiHandler {
	m := &MultiHandler{}

	for _, h := range handlers {
		if h != nil {
			m.handlers = append(m.handlers, h)
		}
	}

	return m
}

// Start dispatches to all handlers and combines their errors.
func (m *MultiHandler) Start(ctx context.Context, unit *Unit, runID string) error {
	var err error
	for _, h := range m.handlers {
		err = multierr.Append(err, h.Start(ctx, unit, runID))
	}

	return err
}

// Event dispatches to all handlers and combines their errors.
func (m *MultiHandler) Event(ctx context.Context, unit *Unit, event spar.Event) error {
	var err error
	for _, h := range m.handlers {
		err = multierr.Append(err, h.Event(ctx, unit, event))
	}

	return err
}

// Done dispatches to all handlers and combines their errors.
func (m *MultiHandler) Done(ctx context.Context, unit *Unit, report UnitReport) error {
	var err error
	for _, h := range m.handlers {
		err = multierr.Append(err, h.Done(ctx, unit, report))
	}

	return err
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are no-ops.
type HandlerFuncs struct {
	OnStart func(ctx context.Context, unit *Unit, runID string) error
	OnEvent func(ctx context.Context, unit *Unit, event spar.Event) error
	OnDone  func(ctx context.Context, unit *Unit, report UnitReport) error
}

// Start calls OnStart.
func (h HandlerFuncs) Start(ctx context.Context, unit *Unit, runID string) error {
	if h.OnStart == nil {
		return nil
	}

	return h.OnStart(ctx, unit, runID)
}

// Event calls OnEvent.
func (h HandlerFuncs) Event(ctx context.Context, unit *Unit, event spar.Event) error {
	if h.OnEvent == nil {
		return nil
	}

	return h.OnEvent(ctx, unit, event)
}

// Done calls OnDone.
func (h HandlerFuncs) Done(ctx context.Context, unit *Unit, report UnitReport) error {
	if h.OnDone == nil {
		return nil
	}

	return h.OnDone(ctx, unit, report)
}
