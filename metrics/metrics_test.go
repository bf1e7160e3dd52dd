package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/spar"
	"github.com/rlch/spar/enginetest"
	"github.com/rlch/spar/model"
)

func runOnce(t *testing.T, u *model.Unit) {
	t.Helper()

	done, ok := u.Run(context.Background())
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg)

	engine := enginetest.New("a", "b", "c").
		WithOutcome("b", spar.ExpectationFailure{Message: "x"}).
		WithOutcome("c", spar.Ignored{Message: "later"})

	u := model.NewUnit("math.suite.yaml", engine, model.WithHandler(c))
	t.Cleanup(u.Close)

	runOnce(t, u)
	runOnce(t, u)

	assert.InDelta(t, 2, testutil.ToFloat64(c.testsFinished.WithLabelValues("math.suite.yaml", "success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.testsFinished.WithLabelValues("math.suite.yaml", "expectation")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.testsFinished.WithLabelValues("math.suite.yaml", "ignored")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.unitRuns.WithLabelValues("math.suite.yaml", ResultOK)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(c.unitsRunning), 0)

	assert.Equal(t, 1, testutil.CollectAndCount(c.runDuration))
}

func TestCollector_FaultAndRejected(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg)

	u := model.NewUnit("bad", enginetest.New("a").FailRun(errors.New("boom")), model.WithHandler(c))
	t.Cleanup(u.Close)

	runOnce(t, u)

	assert.InDelta(t, 1, testutil.ToFloat64(c.unitRuns.WithLabelValues("bad", ResultError)), 0)

	require.NoError(t, c.Done(context.Background(), u, model.UnitReport{Rejected: true}))
	assert.InDelta(t, 1, testutil.ToFloat64(c.unitRuns.WithLabelValues("bad", ResultError)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(c.unitsRunning), 0)
}

func TestServe(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg)
	c.unitsRunning.Set(3)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)

	go func() { errc <- serve(ctx, ln, reg) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "spar_units_running 3"), string(body))

	cancel()
	assert.NoError(t, <-errc)
}
