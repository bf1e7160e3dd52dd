package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Formatter renders run progress and the final summary.
type Formatter interface {
	Format(event Event) error
	Summary(summary *Summary) error
}

// Formatter names accepted by NewFormatter.
const (
	FormatDots    = "dots"
	FormatVerbose = "verbose"
	FormatJSON    = "json"
)

// NewFormatter creates a formatter by name. Empty means dots.
func NewFormatter(name string, w io.Writer) (Formatter, error) {
	switch name {
	case "", FormatDots:
		return NewDotsFormatter(w), nil
	case FormatVerbose:
		return NewVerboseFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// indent prefixes every line of text.
func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}

	return strings.Join(lines, "\n") + "\n"
}

// -----------------------------------------------------------------------------
// Dots Formatter
// -----------------------------------------------------------------------------

// DotsFormatter is a minimal formatter that prints dots for progress.
type DotsFormatter struct {
	w     io.Writer
	count int
}

// NewDotsFormatter creates a dots formatter.
func NewDotsFormatter(w io.Writer) *DotsFormatter {
	return &DotsFormatter{w: w}
}

const lineWidth = 80

// Format prints a single character per terminal event.
func (d *DotsFormatter) Format(event Event) error {
	var char string

	switch event.Action {
	case ActionPass:
		char = "."
	case ActionFail:
		char = "F"
	case ActionSkip:
		char = "S"
	case ActionError:
		char = "E"
	case ActionRun:
		return nil
	}

	_, err := fmt.Fprint(d.w, char)
	d.count++

	if d.count%lineWidth == 0 {
		_, _ = fmt.Fprintln(d.w)
	}

	return err
}

// Summary prints failures, faults and the totals line.
func (d *DotsFormatter) Summary(s *Summary) error {
	if d.count > 0 && d.count%lineWidth != 0 {
		_, _ = fmt.Fprintln(d.w)
	}

	_, _ = fmt.Fprintln(d.w)

	for _, ts := range s.Failed {
		_, _ = fmt.Fprintf(d.w, "FAIL %s\n", ts.Path())

		if ts.Detail != "" {
			_, _ = fmt.Fprint(d.w, indent(ts.Detail, "  "))
		}

		_, _ = fmt.Fprintln(d.w)
	}

	for _, f := range s.Faults {
		_, _ = fmt.Fprintf(d.w, "ERROR %s: %v\n\n", f.Unit, f.Err)
	}

	status := "PASS"
	if !s.Ok() {
		status = "FAIL"
	}

	_, err := fmt.Fprintf(d.w, "%s %d tests, %d passed, %d failed, %d skipped in %s\n",
		status,
		s.Counts.Total,
		s.Counts.Success,
		s.Counts.Failure,
		s.Counts.Ignored,
		s.Elapsed().Round(time.Millisecond),
	)

	return err
}

// -----------------------------------------------------------------------------
// Verbose Formatter
// -----------------------------------------------------------------------------

// VerboseFormatter prints full test paths and failure detail.
type VerboseFormatter struct {
	w io.Writer
}

// NewVerboseFormatter creates a verbose formatter.
func NewVerboseFormatter(w io.Writer) *VerboseFormatter {
	return &VerboseFormatter{w: w}
}

// Format prints each event as it occurs.
func (v *VerboseFormatter) Format(event Event) error {
	var err error

	switch event.Action {
	case ActionRun:
		_, err = fmt.Fprintf(v.w, "=== RUN   %s\n", event.Path())
	case ActionPass:
		_, err = fmt.Fprintf(v.w, "--- PASS: %s (%s)\n", event.Path(), event.Elapsed)
	case ActionFail:
		_, err = fmt.Fprintf(v.w, "--- FAIL: %s (%s)\n", event.Path(), event.Elapsed)
	case ActionSkip:
		_, err = fmt.Fprintf(v.w, "--- SKIP: %s (%s)\n", event.Path(), event.Elapsed)
	case ActionError:
		_, err = fmt.Fprintf(v.w, "--- ERROR: %s\n", event.Path())
	}

	if err != nil || event.Detail == "" {
		return err
	}

	_, err = fmt.Fprint(v.w, indent(event.Detail, "    "))

	return err
}

// Summary prints the final results.
func (v *VerboseFormatter) Summary(s *Summary) error {
	_, _ = fmt.Fprintln(v.w)

	status := "PASS"
	if !s.Ok() {
		status = "FAIL"
	}

	_, _ = fmt.Fprintf(v.w, "%s\n", status)
	_, _ = fmt.Fprintf(v.w, "  %d total, %d passed, %d failed, %d skipped, %d errors\n",
		s.Counts.Total,
		s.Counts.Success,
		s.Counts.Failure,
		s.Counts.Ignored,
		len(s.Faults),
	)
	_, err := fmt.Fprintf(v.w, "  elapsed: %s\n", s.Elapsed().Round(time.Millisecond))

	return err
}

// -----------------------------------------------------------------------------
// JSON Formatter
// -----------------------------------------------------------------------------

// JSONFormatter outputs newline-delimited JSON events.
type JSONFormatter struct {
	enc *json.Encoder
}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{enc: json.NewEncoder(w)}
}

type jsonEvent struct {
	Time    string  `json:"time"`
	Action  string  `json:"action"`
	Unit    string  `json:"unit"`
	Test    string  `json:"test,omitempty"`
	Elapsed float64 `json:"elapsed,omitempty"`
	Detail  string  `json:"detail,omitempty"`
}

// Format outputs a JSON event.
func (j *JSONFormatter) Format(event Event) error {
	je := jsonEvent{
		Time:   event.Time.Format(time.RFC3339Nano),
		Action: string(event.Action),
		Unit:   event.Unit,
		Test:   event.Test,
		Detail: event.Detail,
	}

	if event.Action.IsTerminal() {
		je.Elapsed = event.Elapsed.Seconds()
	}

	return j.enc.Encode(je)
}

type jsonSummary struct {
	Action  string  `json:"action"`
	Total   int     `json:"total"`
	Passed  int     `json:"passed"`
	Failed  int     `json:"failed"`
	Skipped int     `json:"skipped"`
	Errors  int     `json:"errors"`
	Elapsed float64 `json:"elapsed"`
	Ok      bool    `json:"ok"`
}

// Summary outputs the final JSON summary.
func (j *JSONFormatter) Summary(s *Summary) error {
	return j.enc.Encode(jsonSummary{
		Action:  "summary",
		Total:   s.Counts.Total,
		Passed:  s.Counts.Success,
		Failed:  s.Counts.Failure,
		Skipped: s.Counts.Ignored,
		Errors:  len(s.Faults),
		Elapsed: s.Elapsed().Seconds(),
		Ok:      s.Ok(),
	})
}
