package runner_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/spar"
	"github.com/rlch/spar/enginetest"
	"github.com/rlch/spar/filter"
	"github.com/rlch/spar/model"
	"github.com/rlch/spar/runner"
)

const waitFor = 5 * time.Second

var errBoom = errors.New("boom")

func coreEngine() *enginetest.Engine {
	return enginetest.New("a", "b", "c").
		WithOutcome("b", spar.GeneralFailure{Message: "boom"}).
		WithOutcome("c", spar.Ignored{Message: "later"})
}

func newSuite(t *testing.T, engines enginetest.Engines, h model.Handler) *model.Suite {
	t.Helper()

	var opts []model.Option
	if h != nil {
		opts = append(opts, model.WithHandler(h))
	}

	s := model.NewSuite(engines.Resolve, opts...)
	t.Cleanup(s.Close)

	for id := range engines {
		_, err := s.AddUnit(id)
		require.NoError(t, err)
	}

	return s
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	t.Cleanup(cancel)

	return ctx
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	var out, stderr bytes.Buffer

	h := runner.NewFormatHandler(runner.NewVerboseFormatter(&out), &stderr)
	s := newSuite(t, enginetest.Engines{"core": coreEngine()}, h)

	summary, report, err := runner.New(s).Run(testContext(t))
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, model.Counts{Total: 3, Success: 1, Failure: 1, Ignored: 1}, summary.Counts)
	assert.False(t, summary.Ok())
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "core/b", summary.Failed[0].Path())
	assert.Equal(t, "General Failure\nboom", summary.Failed[0].Detail)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "c", summary.Skipped[0].Test)
	assert.Empty(t, summary.Faults)

	require.NoError(t, h.Summary(summary))

	got := out.String()
	assert.Contains(t, got, "=== RUN   core/a\n")
	assert.Contains(t, got, "--- PASS: core/a (")
	assert.Contains(t, got, "--- FAIL: core/b (")
	assert.Contains(t, got, "    General Failure\n    boom\n")
	assert.Contains(t, got, "--- SKIP: core/c (")
	assert.Contains(t, got, "3 total, 1 passed, 1 failed, 1 skipped, 0 errors")
}

func TestRunner_Fault(t *testing.T) {
	t.Parallel()

	var out, stderr bytes.Buffer

	h := runner.NewFormatHandler(runner.NewDotsFormatter(&out), &stderr)
	s := newSuite(t, enginetest.Engines{"core": enginetest.New("a").FailRun(errBoom)}, h)

	summary, report, err := runner.New(s).Run(testContext(t))
	require.NoError(t, err)
	require.ErrorIs(t, report.Err(), errBoom)

	assert.False(t, summary.Ok())
	require.Len(t, summary.Faults, 1)
	assert.Equal(t, "core", summary.Faults[0].Unit)
	assert.ErrorIs(t, summary.Faults[0].Err, model.ErrEngineFault)

	require.NoError(t, h.Summary(summary))
	assert.Contains(t, out.String(), ".E\n")
	assert.Contains(t, out.String(), "ERROR core: ")
}

func TestRunner_Filter(t *testing.T) {
	t.Parallel()

	s := newSuite(t, enginetest.Engines{"core": coreEngine()}, nil)
	r := runner.New(s, runner.WithFilter(filter.MustParse("status:failure")))

	summary, _, err := r.Run(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Counts.Total)
	assert.Equal(t, 1, summary.Counts.Failure)

	tests := r.Tests()
	require.Len(t, tests, 1)
	assert.Equal(t, "b", tests[0].Name())
}

func TestRunner_Discover(t *testing.T) {
	t.Parallel()

	s := newSuite(t, enginetest.Engines{
		"core": enginetest.New("a"),
		"cli":  enginetest.New("x").FailDiscovery(errBoom),
	}, nil)

	err := runner.New(s).Discover(testContext(t))
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "cli: ")
	assert.Len(t, s.Tests(), 2)
}

func TestRunner_Rejected(t *testing.T) {
	t.Parallel()

	engine := enginetest.New("a").Block()
	s := newSuite(t, enginetest.Engines{"core": engine}, nil)

	ctx := testContext(t)

	done, ok := s.RunAll(ctx)
	require.True(t, ok)

	_, _, err := runner.New(s).Run(ctx)
	require.ErrorIs(t, err, runner.ErrRunRejected)

	engine.Release()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("run never finished")
	}
}

func TestFormatHandler_Err(t *testing.T) {
	t.Parallel()

	var out, stderr bytes.Buffer

	h := runner.NewFormatHandler(runner.NewDotsFormatter(&out), &stderr)
	require.NoError(t, h.Err("no engine for ./docs"))

	assert.Equal(t, "no engine for ./docs\n", stderr.String())
	assert.Empty(t, out.String())
}
