package runner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rlch/spar/model"
)

func failingSummary() *Summary {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	return &Summary{
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
		Counts:   model.Counts{Total: 3, Success: 1, Failure: 1, Ignored: 1},
		Failed: []TestSummary{
			{Unit: "core", Test: "TestParse", Status: model.StatusFailure, Detail: "General Failure\nboom"},
		},
		Skipped: []TestSummary{
			{Unit: "core", Test: "TestSlow", Status: model.StatusIgnored, Detail: "Ignored:\nlater"},
		},
	}
}

func TestDotsFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	f := NewDotsFormatter(&buf)

	_ = f.Format(Event{Action: ActionRun})

	if buf.Len() != 0 {
		t.Error("Non-terminal should produce no output")
	}

	_ = f.Format(Event{Action: ActionPass})
	_ = f.Format(Event{Action: ActionFail})
	_ = f.Format(Event{Action: ActionSkip})
	_ = f.Format(Event{Action: ActionError})

	if got := buf.String(); got != ".FSE" {
		t.Errorf("got %q, want %q", got, ".FSE")
	}
}

func TestDotsFormatter_Wraps(t *testing.T) {
	var buf bytes.Buffer

	f := NewDotsFormatter(&buf)

	for range lineWidth + 1 {
		_ = f.Format(Event{Action: ActionPass})
	}

	want := strings.Repeat(".", lineWidth) + "\n."
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDotsFormatter_Summary(t *testing.T) {
	var buf bytes.Buffer

	f := NewDotsFormatter(&buf)

	s := failingSummary()
	s.Faults = []Fault{{Unit: "cli", Err: errors.New("exploded")}}

	_ = f.Summary(s)

	got := buf.String()

	for _, want := range []string{
		"FAIL core/TestParse\n",
		"  General Failure\n  boom\n",
		"ERROR cli: exploded\n",
		"FAIL 3 tests, 1 passed, 1 failed, 1 skipped in 1.5s\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestVerboseFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	f := NewVerboseFormatter(&buf)

	_ = f.Format(Event{Action: ActionRun, Unit: "core", Test: "TestParse"})

	if got, want := buf.String(), "=== RUN   core/TestParse\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buf.Reset()

	_ = f.Format(Event{Action: ActionPass, Unit: "core", Test: "TestParse", Elapsed: 10 * time.Millisecond})

	if got, want := buf.String(), "--- PASS: core/TestParse (10ms)\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buf.Reset()

	_ = f.Format(Event{Action: ActionFail, Unit: "core", Test: "TestParse", Detail: "General Failure\nboom\n"})

	if got, want := buf.String(), "--- FAIL: core/TestParse (0s)\n    General Failure\n    boom\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buf.Reset()

	_ = f.Format(Event{Action: ActionError, Unit: "cli", Detail: "exploded"})

	if got, want := buf.String(), "--- ERROR: cli\n    exploded\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestVerboseFormatter_Summary(t *testing.T) {
	var buf bytes.Buffer

	f := NewVerboseFormatter(&buf)

	_ = f.Summary(failingSummary())

	got := buf.String()

	if !strings.Contains(got, "FAIL\n") {
		t.Errorf("missing status in:\n%s", got)
	}

	if !strings.Contains(got, "3 total, 1 passed, 1 failed, 1 skipped, 0 errors") {
		t.Errorf("missing counts in:\n%s", got)
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer

	f := NewJSONFormatter(&buf)

	_ = f.Format(Event{
		Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Action:  ActionSkip,
		Unit:    "core",
		Test:    "TestSlow",
		Elapsed: 250 * time.Millisecond,
		Detail:  "Ignored:\nlater",
	})
	_ = f.Summary(failingSummary())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}

	var ev jsonEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatal(err)
	}

	if ev.Action != "skipped" || ev.Unit != "core" || ev.Test != "TestSlow" {
		t.Errorf("unexpected event: %+v", ev)
	}

	if ev.Elapsed != 0.25 {
		t.Errorf("elapsed = %v, want 0.25", ev.Elapsed)
	}

	if ev.Time != "2026-01-02T03:04:05Z" {
		t.Errorf("time = %q", ev.Time)
	}

	var sum jsonSummary
	if err := json.Unmarshal([]byte(lines[1]), &sum); err != nil {
		t.Fatal(err)
	}

	want := jsonSummary{Action: "summary", Total: 3, Passed: 1, Failed: 1, Skipped: 1, Elapsed: 1.5}
	if sum != want {
		t.Errorf("got %+v, want %+v", sum, want)
	}
}

func TestNewFormatter(t *testing.T) {
	var buf bytes.Buffer

	for name, want := range map[string]Formatter{
		"":        &DotsFormatter{},
		"dots":    &DotsFormatter{},
		"verbose": &VerboseFormatter{},
		"json":    &JSONFormatter{},
	} {
		f, err := NewFormatter(name, &buf)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}

		if got, want := typeName(f), typeName(want); got != want {
			t.Errorf("%q: got %s, want %s", name, got, want)
		}
	}

	_, err := NewFormatter("tap", &buf)
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("got %v, want ErrUnknownFormat", err)
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
