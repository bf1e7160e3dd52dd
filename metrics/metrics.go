// Package metrics exports unit activity as prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rlch/spar"
	"github.com/rlch/spar/model"
)

// Namespace prefixes every metric name.
const Namespace = "spar"

// Run results used as the result label of spar_unit_runs_total.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector is a model.Handler that records unit runs.
type Collector struct {
	testsFinished *prometheus.CounterVec
	unitRuns      *prometheus.CounterVec
	unitsRunning  prometheus.Gauge
	runDuration   *prometheus.HistogramVec
}

var _ model.Handler = (*Collector)(nil)

// New creates a Collector registered with reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		testsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tests_finished_total",
			Help:      "Count of finished tests by outcome kind",
		}, []string{"unit", "kind"}),
		unitRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "unit_runs_total",
			Help:      "Count of finished unit runs",
		}, []string{"unit", "result"}),
		unitsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "units_running",
			Help:      "Number of units with a run in flight",
		}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "unit_run_duration_seconds",
			Help:      "Duration of unit runs",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"unit"}),
	}
}

// Start counts the unit as running.
func (c *Collector) Start(_ context.Context, _ *model.Unit, _ string) error {
	c.unitsRunning.Inc()

	return nil
}

// Event counts finished tests.
func (c *Collector) Event(_ context.Context, unit *model.Unit, ev spar.Event) error {
	if ev.Kind == spar.EventFinished && ev.Outcome != nil {
		c.testsFinished.WithLabelValues(unit.DisplayName(), string(ev.Outcome.Kind())).Inc()
	}

	return nil
}

// Done records the run result and duration.
func (c *Collector) Done(_ context.Context, unit *model.Unit, report model.UnitReport) error {
	if report.Rejected {
		return nil
	}

	c.unitsRunning.Dec()

	result := ResultOK
	if report.Err != nil {
		result = ResultError
	}

	c.unitRuns.WithLabelValues(unit.DisplayName(), result).Inc()
	c.runDuration.WithLabelValues(unit.DisplayName()).Observe(report.Elapsed().Seconds())

	return nil
}

// Serve exposes gatherer on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	return serve(ctx, ln, gatherer)
}

func serve(ctx context.Context, ln net.Listener, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)

	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		<-errc

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	}
}
