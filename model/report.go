package model

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/rlch/spar"
)

// Result is one raw outcome reported during the current run of a unit.
type Result struct {
	Test    string
	Outcome spar.Outcome
	Time    time.Time
}

// UnitReport describes one finished run of a unit.
type UnitReport struct {
	RunID    string
	Unit     string
	Started  time.Time
	Finished time.Time
	Results  int

	// Rejected is set when a run-all found the unit already running.
	Rejected bool

	// Err is an engine fault, protocol violation or discovery fault.
	Err error
}

// Elapsed returns the run duration.
func (r UnitReport) Elapsed() time.Duration {
	if r.Started.IsZero() || r.Finished.IsZero() {
		return 0
	}

	return r.Finished.Sub(r.Started)
}

// RunReport describes one run-all.
type RunReport struct {
	Started  time.Time
	Finished time.Time
	Units    []UnitReport
}

// Err combines the errors of every unit, prefixed by unit identifier.
func (r RunReport) Err() error {
	var err error

	for _, u := range r.Units {
		if u.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", u.Unit, u.Err))
		}
	}

	return err
}

// Ok reports whether no unit failed to run.
// Test failures are not run errors.
func (r RunReport) Ok() bool {
	return r.Err() == nil
}

// Counts tallies records by status.
type Counts struct {
	Total   int `json:"total"`
	None    int `json:"none"`
	Running int `json:"running"`
	Success int `json:"success"`
	Failure int `json:"failure"`
	Ignored int `json:"ignored"`
}

// Add counts one record with status s.
func (c *Counts) Add(s TestStatus) {
	c.Total++

	switch s {
	case StatusNone:
		c.None++
	case StatusRunning:
		c.Running++
	case StatusSuccess:
		c.Success++
	case StatusFailure:
		c.Failure++
	case StatusIgnored:
		c.Ignored++
	}
}

// CountRecords tallies records by their current status.
func CountRecords(records []*Record) Counts {
	var c Counts
	for _, r := range records {
		c.Add(r.Status())
	}

	return c
}
