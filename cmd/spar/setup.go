package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rlch/spar"
	"github.com/rlch/spar/filter"
	"github.com/rlch/spar/history"
	"github.com/rlch/spar/metrics"
	"github.com/rlch/spar/model"
)

// env holds what every command needs: config, logger and the optional
// history store and metrics endpoint.
type env struct {
	cmd *cli.Command
	cfg *spar.Config
	log *zap.Logger

	store   history.Store
	metrics *metrics.Collector

	stopMetrics context.CancelFunc
	background  errgroup.Group
}

// newEnv loads config and builds the logger. terminalTaken reports that
// the TUI owns the terminal.
func newEnv(cmd *cli.Command, terminalTaken bool) (*env, error) {
	cfg, err := loadConfigWithDir(cmd, ".")
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cmd, cfg.Log, terminalTaken)
	if err != nil {
		return nil, err
	}

	log.Debug("config loaded", zap.String("dir", cfg.Dir))

	return &env{cmd: cmd, cfg: cfg, log: log, stopMetrics: func() {}}, nil
}

// openHistory opens the configured history store, if any.
func (e *env) openHistory() error {
	name := e.cfg.History.StoreName()
	if name == "" {
		return nil
	}

	store, err := history.Open(name, e.cfg.History.StoreConfig())
	if err != nil {
		return fmt.Errorf("opening %s history: %w", name, err)
	}

	e.store = store

	return nil
}

// serveMetrics starts the prometheus endpoint when one is configured. It
// stops on Close.
func (e *env) serveMetrics(ctx context.Context) {
	addr := e.cfg.Metrics.Listen
	if addr == "" {
		return
	}

	reg := prometheus.NewRegistry()
	e.metrics = metrics.New(reg)

	ctx, e.stopMetrics = context.WithCancel(ctx)

	e.background.Go(func() error {
		e.log.Info("serving metrics", zap.String("addr", addr))

		return metrics.Serve(ctx, addr, reg)
	})
}

// handlers returns the observers every suite gets.
func (e *env) handlers() []model.Option {
	var opts []model.Option

	if e.store != nil {
		opts = append(opts, model.WithHandler(history.NewRecorder(e.store)))
	}

	if e.metrics != nil {
		opts = append(opts, model.WithHandler(e.metrics))
	}

	return opts
}

// newSuite creates a suite resolving engines from flags and config.
func (e *env) newSuite(opts ...model.Option) *model.Suite {
	resolver := newEngineResolver(e.cmd.String("engine"), e.cfg, e.log)

	opts = append([]model.Option{model.WithLogger(e.log)}, opts...)
	opts = append(opts, e.handlers()...)

	return model.NewSuite(resolver.Resolve, opts...)
}

// Close stops background work and releases the store.
func (e *env) Close() error {
	e.stopMetrics()

	err := e.background.Wait()
	if err != nil {
		e.log.Warn("metrics endpoint failed", zap.Error(err))
	}

	if e.store != nil {
		err = multierr.Append(err, e.store.Close())
	}

	_ = e.log.Sync()

	return err
}

// addUnits registers units with suite, writing failures to stderr. It
// returns the number of units that could not be added.
func addUnits(suite *model.Suite, units []string, stderr io.Writer) int {
	failed := 0

	for _, id := range units {
		if _, err := suite.AddUnit(id); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", id, err)

			failed++
		}
	}

	return failed
}

// parseWhere parses the --where flag.
func parseWhere(cmd *cli.Command) (*filter.Filter, error) {
	f, err := filter.Parse(cmd.String("where"))
	if err != nil {
		return nil, fmt.Errorf("--where: %w", err)
	}

	return f, nil
}

func whereFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "where",
		Aliases: []string{"w"},
		Usage:   `only report tests matching a filter, e.g. "status:failure unit:core"`,
	}
}
