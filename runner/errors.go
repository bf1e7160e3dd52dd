package runner

import "errors"

// Sentinel errors for the runner package.
var (
	// ErrUnknownFormat is returned for an unrecognised formatter name.
	ErrUnknownFormat = errors.New("runner: unknown format")

	// ErrRunRejected is returned when a run is already in flight.
	ErrRunRejected = errors.New("runner: run already in progress")
)
