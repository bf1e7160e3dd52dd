package spar

import "errors"

// Sentinel errors.
var (
	// ErrConfigNotFound is returned when no .spar.yaml is found.
	ErrConfigNotFound = errors.New("spar: no .spar.yaml found")

	// ErrUnknownEngine is returned when an unknown engine is requested.
	ErrUnknownEngine = errors.New("spar: unknown engine")

	// ErrNoEngine is returned when no registered engine claims a unit.
	ErrNoEngine = errors.New("spar: no engine claims unit")

	// ErrUnknownOutcome is returned when decoding an unknown outcome kind.
	ErrUnknownOutcome = errors.New("spar: unknown outcome kind")
)
