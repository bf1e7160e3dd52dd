package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "Discover tests without running them",
		ArgsUsage: "[files or directories...]",
		Flags:     []cli.Flag{whereFlag()},
		Action:    listTests,
	}
}

// listTests prints one "unit<TAB>test" line per discovered test.
func listTests(ctx context.Context, cmd *cli.Command) (err error) {
	e, err := newEnv(cmd, false)
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

	suite := e.newSuite()
	defer suite.Close()

	rejected := addUnits(suite, units, os.Stderr)

	faults := 0

	for _, u := range suite.Units() {
		err := u.WaitDiscovered(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", u.Identifier(), err)

			faults++
		}
	}

	for _, r := range where.Apply(suite.Tests()) {
		fmt.Printf("%s\t%s\n", r.Unit().Identifier(), r.Name())
	}

	if faults > 0 || rejected > 0 {
		return cli.Exit("", 1)
	}

	return nil
}
