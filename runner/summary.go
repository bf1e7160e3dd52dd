package runner

import (
	"time"

	"github.com/rlch/spar/model"
)

// Summary is the end-of-run view of a suite, built from its flattened tests.
type Summary struct {
	Started  time.Time
	Finished time.Time

	Counts model.Counts

	// Failed and Skipped keep record order.
	Failed  []TestSummary
	Skipped []TestSummary

	// Faults are units whose run did not complete normally.
	Faults []Fault
}

// TestSummary is one record worth reporting.
type TestSummary struct {
	Unit   string
	Test   string
	Status model.TestStatus
	Detail string
}

// Path returns "unit/test".
func (t TestSummary) Path() string {
	return t.Unit + "/" + t.Test
}

// Fault is a unit-level run error.
type Fault struct {
	Unit string
	Err  error
}

// NewSummary tallies records and collects the faults of report.
func NewSummary(records []*model.Record, report model.RunReport) *Summary {
	s := &Summary{
		Started:  report.Started,
		Finished: report.Finished,
	}

	for _, r := range records {
		snap := r.Snapshot()
		s.Counts.Add(snap.Status)

		ts := TestSummary{Unit: snap.Unit, Test: snap.Name, Status: snap.Status, Detail: snap.FailDetail}

		switch snap.Status {
		case model.StatusFailure:
			s.Failed = append(s.Failed, ts)
		case model.StatusIgnored:
			s.Skipped = append(s.Skipped, ts)
		case model.StatusNone, model.StatusRunning, model.StatusSuccess:
		}
	}

	for _, u := range report.Units {
		if u.Err != nil {
			s.Faults = append(s.Faults, Fault{Unit: u.Unit, Err: u.Err})
		}
	}

	return s
}

// Ok reports whether nothing failed and every unit ran cleanly.
func (s *Summary) Ok() bool {
	return s.Counts.Failure == 0 && len(s.Faults) == 0
}

// Elapsed returns the run duration.
func (s *Summary) Elapsed() time.Duration {
	if s.Started.IsZero() || s.Finished.IsZero() {
		return 0
	}

	return s.Finished.Sub(s.Started)
}
