package runner

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rlch/spar"
	"github.com/rlch/spar/model"
)

// FormatHandler is a model.Handler that delegates to a Formatter.
// Units run concurrently, so calls into the formatter are serialized.
type FormatHandler struct {
	formatter Formatter
	stderr    io.Writer

	mu      sync.Mutex
	started map[testKey]time.Time
}

type testKey struct {
	unit *model.Unit
	test string
}

var _ model.Handler = (*FormatHandler)(nil)

// NewFormatHandler creates a handler that formats events.
func NewFormatHandler(f Formatter, stderr io.Writer) *FormatHandler {
	return &FormatHandler{
		formatter: f,
		stderr:    stderr,
		started:   make(map[testKey]time.Time),
	}
}

// Start is a no-op; progress starts with the first running test.
func (h *FormatHandler) Start(context.Context, *model.Unit, string) error {
	return nil
}

// Event formats the event.
func (h *FormatHandler) Event(_ context.Context, unit *model.Unit, ev spar.Event) error {
	action, detail, ok := actionOf(ev)
	if !ok {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := testKey{unit: unit, test: ev.Name}
	out := Event{
		Time:   ev.Time,
		Action: action,
		Unit:   unit.DisplayName(),
		Test:   ev.Name,
		Detail: detail,
	}

	if action == ActionRun {
		h.started[key] = ev.Time
	} else if at, ok := h.started[key]; ok {
		out.Elapsed = ev.Time.Sub(at)
		delete(h.started, key)
	}

	return h.formatter.Format(out)
}

// Done reports a unit fault as an error event.
func (h *FormatHandler) Done(_ context.Context, unit *model.Unit, report model.UnitReport) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key := range h.started {
		if key.unit == unit {
			delete(h.started, key)
		}
	}

	if report.Err == nil {
		return nil
	}

	return h.formatter.Format(Event{
		Time:   report.Finished,
		Action: ActionError,
		Unit:   unit.DisplayName(),
		Detail: report.Err.Error(),
	})
}

// Err writes to stderr.
func (h *FormatHandler) Err(text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.stderr.Write([]byte(text + "\n"))

	return err
}

// Summary renders the final summary.
func (h *FormatHandler) Summary(s *Summary) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.formatter.Summary(s)
}
