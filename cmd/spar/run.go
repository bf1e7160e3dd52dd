package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/rlch/spar/filter"
	"github.com/rlch/spar/model"
	"github.com/rlch/spar/runner"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run test units",
		ArgsUsage: "[files or directories...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "output events as JSON lines",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "verbose output",
			},
			whereFlag(),
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"j"},
				Usage:   "units to run at once, 0 for no limit (overrides config)",
				Sources: cli.EnvVars("SPAR_CONCURRENCY"),
			},
		},
		Action: runTests,
	}
}

// outputFormat picks the formatter for non-interactive output. An empty
// name means the TUI.
func outputFormat(cmd *cli.Command, tty bool) string {
	switch {
	case cmd.Bool("json"):
		return runner.FormatJSON
	case cmd.Bool("verbose"):
		return runner.FormatVerbose
	case tty:
		return ""
	default:
		return runner.FormatDots
	}
}

func runTests(ctx context.Context, cmd *cli.Command) (err error) {
	format := outputFormat(cmd, isatty.IsTerminal(os.Stdout.Fd()))

	e, err := newEnv(cmd, format == "")
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := e.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	where, err := parseWhere(cmd)
	if err != nil {
		return err
	}

	units, err := collectUnits(cmd.Args().Slice(), e.cfg)
	if err != nil {
		return err
	}

	if err := e.openHistory(); err != nil {
		return err
	}

	e.serveMetrics(ctx)

	concurrency := e.cfg.Concurrency
	if cmd.IsSet("concurrency") {
		concurrency = int(cmd.Int("concurrency"))
	}

	opts := []model.Option{model.WithConcurrency(concurrency)}

	var handler *runner.FormatHandler

	if format != "" {
		formatter, err := runner.NewFormatter(format, os.Stdout)
		if err != nil {
			return err
		}

		handler = runner.NewFormatHandler(formatter, os.Stderr)
		opts = append(opts, model.WithHandler(handler))
	}

	suite := e.newSuite(opts...)
	defer suite.Close()

	rejected := addUnits(suite, units, os.Stderr)
	if rejected == len(units) {
		return errNoUnits
	}

	var summary *runner.Summary

	if handler == nil {
		summary, err = runTUI(ctx, e, suite, where)
	} else {
		summary, err = runPlain(ctx, e, suite, where, handler)
	}

	if err != nil {
		return err
	}

	if summary == nil {
		return nil
	}

	if !summary.Ok() || rejected > 0 {
		return cli.Exit("", 1)
	}

	return nil
}

func runPlain(
	ctx context.Context,
	e *env,
	suite *model.Suite,
	where *filter.Filter,
	handler *runner.FormatHandler,
) (*runner.Summary, error) {
	r := runner.New(suite, runner.WithFilter(where), runner.WithLogger(e.log))

	summary, _, err := r.Run(ctx)
	if err != nil {
		return nil, err
	}

	if err := handler.Summary(summary); err != nil {
		return nil, err
	}

	return summary, nil
}

// runTUI shows the TUI, running every unit on start. The summary is nil if
// the user quit before a run finished.
func runTUI(ctx context.Context, e *env, suite *model.Suite, where *filter.Filter) (*runner.Summary, error) {
	tui := runner.NewTUI(suite, runner.WithAutoRun(), runner.WithTUILogger(e.log))

	report, err := tui.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}

	fmt.Println(tui.FinalView())

	if report == nil {
		return nil, nil
	}

	return runner.NewSummary(where.Apply(suite.Tests()), *report), nil
}
