package model_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/spar"
	"github.com/rlch/spar/enginetest"
	"github.com/rlch/spar/model"
)

var errNoEngine = errors.New("no engine for unit")

// engines resolves identifiers to prepared fakes.
type engines map[string]*enginetest.Engine

func (e engines) resolve(identifier string) (spar.Engine, error) {
	engine, ok := e[identifier]
	if !ok {
		return nil, errNoEngine
	}

	return engine, nil
}

func newSuite(t *testing.T, e engines, ids []string, opts ...model.Option) *model.Suite {
	t.Helper()

	s := model.NewSuite(e.resolve, opts...)
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	for _, id := range ids {
		u, err := s.AddUnit(id)
		require.NoError(t, err)

		_ = u.WaitDiscovered(ctx)
	}

	return s
}

func runAll(t *testing.T, s *model.Suite) model.RunReport {
	t.Helper()

	done, ok := s.RunAll(context.Background())
	require.True(t, ok, "run all rejected")

	select {
	case r := <-done:
		return r
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for run all")

		return model.RunReport{}
	}
}

type signalLog struct {
	mu      sync.Mutex
	signals []model.Signal
}

func (l *signalLog) listen(s model.Signal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.signals = append(l.signals, s)
}

func (l *signalLog) count(s model.Signal) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, x := range l.signals {
		if x == s {
			n++
		}
	}

	return n
}

func TestSuite_AddUnit(t *testing.T) {
	t.Parallel()

	e := engines{
		"math.suite.yaml":   enginetest.New("adds", "subtracts"),
		"string.suite.yaml": enginetest.New("concat"),
	}
	s := newSuite(t, e, []string{"math.suite.yaml", "string.suite.yaml"})

	assert.Equal(t, []string{"adds", "subtracts", "concat"}, names(s.Tests()))

	again, err := s.AddUnit("math.suite.yaml")
	require.NoError(t, err)

	first, ok := s.Unit("math.suite.yaml")
	require.True(t, ok)
	assert.Same(t, first, again)
	assert.Len(t, s.Units(), 2)
	assert.Equal(t, 1, e["math.suite.yaml"].Finds(), "duplicate add does not rediscover")

	_, err = s.AddUnit("missing.suite.yaml")
	require.ErrorIs(t, err, errNoEngine)
	assert.Len(t, s.Units(), 2)
}

func TestSuite_RunAll(t *testing.T) {
	t.Parallel()

	e := engines{
		"a": enginetest.New("a1", "a2").WithOutcome("a2", spar.StandardNotMet{}),
		"b": enginetest.New("b1"),
	}
	s := newSuite(t, e, []string{"a", "b"})

	var log signalLog
	s.Subscribe(log.listen)

	report := runAll(t, s)

	require.True(t, report.Ok())
	require.Len(t, report.Units, 2)
	assert.Equal(t, "a", report.Units[0].Unit)
	assert.Equal(t, "b", report.Units[1].Unit)
	assert.Len(t, s.Results(), 3)
	assert.Equal(t, model.Counts{Total: 3, Success: 2, Failure: 1}, s.Counts())
	assert.False(t, s.Running())
	assert.True(t, s.CanRun())

	for _, u := range s.Units() {
		assert.True(t, u.CanRun())
	}

	assert.Equal(t, 2, log.count(model.SignalRunning))
	assert.Positive(t, log.count(model.SignalTests))
	assert.Positive(t, log.count(model.SignalResults))
}

func TestSuite_RunAllRejectedWhileRunning(t *testing.T) {
	t.Parallel()

	engine := enginetest.New("slow").Block()
	s := newSuite(t, engines{"slow": engine}, []string{"slow"})

	done, ok := s.RunAll(context.Background())
	require.True(t, ok)

	<-engine.Started()

	_, ok = s.RunAll(context.Background())
	assert.False(t, ok)
	assert.False(t, s.CanRun())

	engine.Release()

	report := <-done
	assert.True(t, report.Ok())
}

func TestSuite_RunAllSkipsRunningUnit(t *testing.T) {
	t.Parallel()

	slow := enginetest.New("slow").Block()
	fast := enginetest.New("fast")
	s := newSuite(t, engines{"slow": slow, "fast": fast}, []string{"slow", "fast"})

	u, _ := s.Unit("slow")
	unitDone, ok := u.Run(context.Background())
	require.True(t, ok)

	<-slow.Started()

	report := runAll(t, s)
	require.Len(t, report.Units, 2)
	assert.True(t, report.Units[0].Rejected)
	assert.False(t, report.Units[1].Rejected)
	assert.True(t, report.Ok())
	assert.Equal(t, 1, slow.Runs())

	slow.Release()
	awaitReport(t, unitDone)
}

func TestSuite_RunAllContainsFaults(t *testing.T) {
	t.Parallel()

	errCrash := errors.New("crashed")
	e := engines{
		"bad":  enginetest.New("x").FailRun(errCrash),
		"good": enginetest.New("y"),
	}
	s := newSuite(t, e, []string{"bad", "good"})

	report := runAll(t, s)

	assert.False(t, report.Ok())
	require.ErrorIs(t, report.Err(), errCrash)
	assert.Contains(t, report.Err().Error(), "bad:")
	assert.NoError(t, report.Units[1].Err)

	y, _ := s.Units()[1].Record("y")
	assert.Equal(t, model.StatusSuccess, y.Status())

	// Both gates reopen, so the suite can run again.
	report = runAll(t, s)
	assert.ErrorIs(t, report.Err(), errCrash)
}

func TestSuite_RunAllConcurrencyLimit(t *testing.T) {
	t.Parallel()

	shared := enginetest.New("t")
	s := newSuite(t, engines{"a": shared, "b": shared, "c": shared}, []string{"a", "b", "c"}, model.WithConcurrency(1))

	report := runAll(t, s)
	require.True(t, report.Ok())
	assert.Equal(t, 3, shared.Runs())
	assert.Equal(t, 1, shared.MaxConcurrent())
}

func TestSuite_Selection(t *testing.T) {
	t.Parallel()

	e := engines{
		"a": enginetest.New("ok", "broken").WithOutcome("broken", spar.ExceptionFailure{Description: "index out of range"}),
	}
	s := newSuite(t, e, []string{"a"})

	var log signalLog
	s.Subscribe(log.listen)

	assert.Nil(t, s.Selected())
	assert.Empty(t, s.Description())

	require.NoError(t, s.SelectByName("a", "broken"))
	assert.Equal(t, "broken", s.Selected().Name())
	assert.Empty(t, s.Description())
	assert.Equal(t, 1, log.count(model.SignalSelected))

	runAll(t, s)
	assert.Equal(t, "index out of range", s.Description())
	assert.Positive(t, log.count(model.SignalDescription))

	assert.ErrorIs(t, s.SelectByName("nope", "broken"), model.ErrUnitNotFound)
	assert.ErrorIs(t, s.SelectByName("a", "nope"), model.ErrUnknownTest)

	require.NoError(t, s.SelectByName("", ""))
	assert.Nil(t, s.Selected())
	assert.Empty(t, s.Description())
}

func TestSuite_RemoveUnit(t *testing.T) {
	t.Parallel()

	e := engines{
		"a": enginetest.New("a1"),
		"b": enginetest.New("b1"),
	}
	s := newSuite(t, e, []string{"a", "b"})

	require.NoError(t, s.SelectByName("a", "a1"))

	var log signalLog
	s.Subscribe(log.listen)

	assert.True(t, s.RemoveUnit("a"))
	assert.False(t, s.RemoveUnit("a"))

	assert.Equal(t, []string{"b1"}, names(s.Tests()))
	assert.Nil(t, s.Selected(), "selection in a removed unit is cleared")
	assert.Equal(t, 1, log.count(model.SignalUnits))
	assert.Equal(t, 1, log.count(model.SignalSelected))

	_, ok := s.Unit("a")
	assert.False(t, ok)

	report := runAll(t, s)
	require.Len(t, report.Units, 1)
	assert.Equal(t, "b", report.Units[0].Unit)
}

func TestSuite_ListenerMaySelect(t *testing.T) {
	t.Parallel()

	e := engines{
		"a": enginetest.New("ok", "bad").WithOutcome("bad", spar.GeneralFailure{Message: "boom"}),
	}
	s := newSuite(t, e, []string{"a"})

	// Focus the first failure as soon as it appears.
	s.Subscribe(func(sig model.Signal) {
		if sig != model.SignalTests || s.Selected() != nil {
			return
		}

		for _, r := range s.Tests() {
			if r.Status() == model.StatusFailure {
				s.Select(r)

				return
			}
		}
	})

	report := runAll(t, s)
	require.True(t, report.Ok())

	require.NotNil(t, s.Selected())
	assert.Equal(t, "bad", s.Selected().Name())
	assert.Equal(t, "General Failure\nboom", s.Description())
	assert.False(t, s.Running())

	u, ok := s.Unit("a")
	require.True(t, ok)
	assert.True(t, u.CanRun())

	runAll(t, s)
}

func TestSuite_AddUnitDoesNotBlockReaders(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})

	s := model.NewSuite(func(string) (spar.Engine, error) {
		close(entered)
		<-release

		return enginetest.New("a1"), nil
	})
	t.Cleanup(s.Close)

	added := make(chan error, 1)

	go func() {
		_, err := s.AddUnit("a")
		added <- err
	}()

	<-entered

	read := make(chan []*model.Unit, 1)

	go func() { read <- s.Units() }()

	select {
	case units := <-read:
		assert.Empty(t, units)
	case <-time.After(waitFor):
		t.Error("Units blocked while an engine was resolved")
	}

	close(release)
	require.NoError(t, <-added)
	assert.Len(t, s.Units(), 1)
}
