package gotest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rlch/spar"
)

// test2json actions.
const (
	ActionStart  = "start"
	ActionRun    = "run"
	ActionPause  = "pause"
	ActionCont   = "cont"
	ActionPass   = "pass"
	ActionFail   = "fail"
	ActionSkip   = "skip"
	ActionOutput = "output"
	ActionBench  = "bench"
)

// TestEvent is a single line of go test -json output.
type TestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test,omitempty"`
	Output  string    `json:"Output,omitempty"`
	Elapsed float64   `json:"Elapsed,omitempty"`
}

// ParseTestEvent decodes one line of go test -json output.
func ParseTestEvent(line []byte) (TestEvent, error) {
	var ev TestEvent

	err := json.Unmarshal(line, &ev)

	return ev, err
}

// topLevel returns the top-level test of a possibly nested test name.
func topLevel(name string) string {
	top, _, _ := strings.Cut(name, "/")

	return top
}

// translator folds test2json events into engine events. Subtests do not
// produce engine events; their output is attributed to the parent.
type translator struct {
	emit spar.Sink

	output    map[string]*strings.Builder
	open      map[string]bool
	order     []string
	pkgOutput strings.Builder
	sawTest   bool
	pkgFailed bool
}

func newTranslator(emit spar.Sink) *translator {
	return &translator{
		emit:   emit,
		output: make(map[string]*strings.Builder),
		open:   make(map[string]bool),
	}
}

func (t *translator) handle(ev TestEvent) {
	if ev.Test == "" {
		switch ev.Action {
		case ActionOutput:
			t.pkgOutput.WriteString(ev.Output)
		case ActionFail:
			t.pkgFailed = true
		}

		return
	}

	name := topLevel(ev.Test)
	nested := name != ev.Test

	switch ev.Action {
	case ActionRun:
		if nested {
			return
		}

		t.sawTest = true
		t.open[name] = true
		t.order = append(t.order, name)
		t.output[name] = &strings.Builder{}
		t.emit(spar.Event{Kind: spar.EventRunning, Name: name, Time: ev.Time})
	case ActionOutput:
		if b, ok := t.output[name]; ok {
			b.WriteString(ev.Output)
		}
	case ActionPass, ActionFail, ActionSkip:
		if nested || !t.open[name] {
			return
		}

		delete(t.open, name)
		t.emit(spar.Event{Kind: spar.EventFinished, Name: name, Outcome: t.outcome(name, ev.Action), Time: ev.Time})
	}
}

func (t *translator) outcome(name, action string) spar.Outcome {
	var out string
	if b, ok := t.output[name]; ok {
		out = b.String()
	}

	switch action {
	case ActionPass:
		return spar.Success{}
	case ActionSkip:
		return spar.Ignored{Message: out}
	default:
		return spar.GeneralFailure{Message: out}
	}
}

// finish reports tests that started but never finished, which happens when
// the test binary crashes.
func (t *translator) finish() {
	for _, name := range t.order {
		if !t.open[name] {
			continue
		}

		delete(t.open, name)

		msg := t.output[name].String() + t.pkgOutput.String()
		t.emit(spar.FinishedEvent(name, spar.GeneralFailure{Message: msg + "test binary exited before the test finished\n"}))
	}
}
