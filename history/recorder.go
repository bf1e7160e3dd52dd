package history

import (
	"context"

	"github.com/rlch/spar"
	"github.com/rlch/spar/model"
)

// Recorder is a model.Handler that saves every finished unit run.
type Recorder struct {
	store Store
}

var _ model.Handler = (*Recorder)(nil)

// NewRecorder creates a handler that saves runs to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Start is a no-op.
func (r *Recorder) Start(context.Context, *model.Unit, string) error { return nil }

// Event is a no-op.
func (r *Recorder) Event(context.Context, *model.Unit, spar.Event) error { return nil }

// Done saves the run with the final state of every record.
func (r *Recorder) Done(ctx context.Context, unit *model.Unit, report model.UnitReport) error {
	if report.Rejected {
		return nil
	}

	return r.store.Save(ctx, NewRun(unit, report))
}

// NewRun builds a Run from a unit's current records and a report.
func NewRun(unit *model.Unit, report model.UnitReport) Run {
	run := Run{
		ID:       report.RunID,
		Unit:     unit.Identifier(),
		Engine:   unit.Engine(),
		Started:  report.Started,
		Finished: report.Finished,
	}

	if report.Err != nil {
		run.Err = report.Err.Error()
	}

	for _, rec := range unit.Records() {
		snap := rec.Snapshot()
		run.Tests = append(run.Tests, TestOutcome{
			Name:   snap.Name,
			Status: snap.Status,
			Detail: snap.FailDetail,
		})
	}

	return run
}
