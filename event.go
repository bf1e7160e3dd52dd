// Package spar coordinates independently discovered test suites and keeps a
// change-notifying view of their state.
//
// The root package holds the contracts shared by every other package: the
// Engine interface and its typed event stream, the Outcome sum type, the
// engine registry and the .spar.yaml configuration.
package spar

import (
	"context"
	"time"
)

// EventKind identifies an engine notification.
type EventKind string

// Engine notification kinds.
const (
	EventFound    EventKind = "found"
	EventRunning  EventKind = "running"
	EventFinished EventKind = "finished"
)

// Event is a single notification emitted by an Engine.
type Event struct {
	Kind    EventKind
	Name    string    // Test name, unique within a unit
	Outcome Outcome   // Set for EventFinished only
	Time    time.Time // When the engine observed it
}

// FoundEvent reports a discovered test.
func FoundEvent(name string) Event {
	return Event{Kind: EventFound, Name: name, Time: time.Now()}
}

// RunningEvent reports that a test started executing.
func RunningEvent(name string) Event {
	return Event{Kind: EventRunning, Name: name, Time: time.Now()}
}

// FinishedEvent reports the outcome of a test.
func FinishedEvent(name string, outcome Outcome) Event {
	return Event{Kind: EventFinished, Name: name, Outcome: outcome, Time: time.Now()}
}

// Sink receives engine events. Engines call it synchronously and never after
// the FindTests or RunTests call that received it has returned.
type Sink func(Event)

// Engine discovers and executes the tests of a unit.
type Engine interface {
	// Name returns the engine identifier (e.g., "yamlsuite", "gotest").
	Name() string

	// FindTests emits one EventFound per test in the unit.
	FindTests(ctx context.Context, unit string, emit Sink) error

	// RunTests emits, for each discovered test, one EventRunning followed
	// later by one EventFinished.
	RunTests(ctx context.Context, unit string, emit Sink) error
}
