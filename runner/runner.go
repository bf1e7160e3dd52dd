package runner

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rlch/spar/filter"
	"github.com/rlch/spar/model"
)

// Runner drives a suite for non-interactive use.
type Runner struct {
	suite *model.Suite
	where *filter.Filter
	log   *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithFilter restricts the tests reported by Tests and Run.
// Every unit still runs in full.
func WithFilter(f *filter.Filter) Option {
	return func(r *Runner) {
		r.where = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a Runner over suite.
func New(suite *model.Suite, opts ...Option) *Runner {
	r := &Runner{suite: suite, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Discover waits for every unit to finish discovery and returns their
// combined discovery faults.
func (r *Runner) Discover(ctx context.Context) error {
	var errs error

	for _, u := range r.suite.Units() {
		err := u.WaitDiscovered(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", u.Identifier(), err))
		}
	}

	return errs
}

// Tests returns the suite's tests that pass the filter.
func (r *Runner) Tests() []*model.Record {
	return r.where.Apply(r.suite.Tests())
}

// Run runs every unit and waits for the run to finish.
//
// Discovery faults are not returned here; they surface as unit faults in the
// report. The error is non-nil only if the run could not start or ctx ended
// first.
func (r *Runner) Run(ctx context.Context) (*Summary, model.RunReport, error) {
	err := r.Discover(ctx)
	if ctx.Err() != nil {
		return nil, model.RunReport{}, ctx.Err()
	}

	if err != nil {
		r.log.Debug("discovery faults", zap.Error(err))
	}

	done, ok := r.suite.RunAll(ctx)
	if !ok {
		return nil, model.RunReport{}, ErrRunRejected
	}

	select {
	case report := <-done:
		summary := NewSummary(r.Tests(), report)

		r.log.Info("run finished",
			zap.Int("tests", summary.Counts.Total),
			zap.Int("failed", summary.Counts.Failure),
			zap.Int("faults", len(summary.Faults)),
			zap.Duration("elapsed", summary.Elapsed()),
		)

		return summary, report, nil
	case <-ctx.Done():
		return nil, model.RunReport{}, ctx.Err()
	}
}
