package model

import "errors"

// Sentinel errors for the model package.
var (
	// ErrUnknownTest is returned when the engine reports a running or
	// finished test that discovery never produced.
	ErrUnknownTest = errors.New("model: event for undiscovered test")

	// ErrUnexpectedEvent is returned when the engine emits an event kind
	// the current phase does not accept.
	ErrUnexpectedEvent = errors.New("model: unexpected engine event")

	// ErrEngineFault wraps failures returned or raised by an engine.
	ErrEngineFault = errors.New("model: engine fault")

	// ErrDiscovery wraps engine faults raised while discovering tests.
	ErrDiscovery = errors.New("model: discovery failed")

	// ErrClosed is returned for runs on a unit that has been closed.
	ErrClosed = errors.New("model: unit closed")

	// ErrUnitNotFound is returned when no unit has the given identifier.
	ErrUnitNotFound = errors.New("model: unit not found")

	// ErrInvalidStatus is returned when parsing an unknown status name.
	ErrInvalidStatus = errors.New("model: invalid test status")
)
