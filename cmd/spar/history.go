package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"github.com/rlch/spar/history"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show stored runs, newest first",
		ArgsUsage: "[unit]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   20,
				Usage:   "runs to show, 0 for all",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "output runs as JSON",
			},
		},
		Action: showHistory,
	}
}

func showHistory(ctx context.Context, cmd *cli.Command) (err error) {
	e, err := newEnv(cmd, false)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := e.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if e.cfg.History.StoreName() == "" {
		return errNoHistory
	}

	if err := e.openHistory(); err != nil {
		return err
	}

	runs, err := e.store.List(ctx, cmd.Args().First(), int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("no runs recorded")

		return nil
	}

	fmt.Println(historyTable(runs))

	return nil
}

func historyTable(runs []history.Run) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "UNIT", "ENGINE", "TESTS", "PASSED", "FAILED", "IGNORED", "ELAPSED", "ERROR")

	for _, r := range runs {
		c := r.Counts()

		t.Row(
			r.Started.Local().Format("2006-01-02 15:04:05"),
			r.Unit,
			r.Engine,
			strconv.Itoa(c.Total),
			strconv.Itoa(c.Success),
			strconv.Itoa(c.Failure),
			strconv.Itoa(c.Ignored),
			r.Elapsed().Round(time.Millisecond).String(),
			r.Err,
		)
	}

	return t.String()
}
