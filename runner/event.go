// Package runner presents suite runs: line formatters for plain terminals and
// CI, and an interactive terminal UI.
package runner

import (
	"time"

	"github.com/rlch/spar"
	"github.com/rlch/spar/model"
)

// Action represents the type of presentation event.
type Action string

// Action constants for presentation events.
const (
	ActionRun   Action = "run"
	ActionPass  Action = "passed"
	ActionFail  Action = "failed"
	ActionSkip  Action = "skipped"
	ActionError Action = "error" // unit fault, Test is empty
)

// IsTerminal returns true if this action ends a test.
func (a Action) IsTerminal() bool {
	return a == ActionPass || a == ActionFail || a == ActionSkip || a == ActionError
}

// Event is a single line of run progress.
type Event struct {
	Time    time.Time
	Action  Action
	Unit    string        // Unit display name
	Test    string        // Empty for unit faults
	Elapsed time.Duration // Set for terminal test events
	Detail  string        // Failure or skip detail, or the fault
}

// Path returns "unit/test", or the unit alone for unit events.
func (e Event) Path() string {
	if e.Test == "" {
		return e.Unit
	}

	return e.Unit + "/" + e.Test
}

// actionOf maps an engine event to an action. Found events have none.
func actionOf(ev spar.Event) (Action, string, bool) {
	switch ev.Kind {
	case spar.EventRunning:
		return ActionRun, "", true
	case spar.EventFinished:
		if ev.Outcome == nil {
			return "", "", false
		}

		status, detail := model.Classify(ev.Outcome)

		switch status {
		case model.StatusSuccess:
			return ActionPass, "", true
		case model.StatusIgnored:
			return ActionSkip, detail, true
		default:
			return ActionFail, detail, true
		}
	default:
		return "", "", false
	}
}
