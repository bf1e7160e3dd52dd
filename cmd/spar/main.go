// Command spar discovers and runs test suites from several test frameworks
// side by side.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	// Register engines and history stores via init().
	_ "github.com/rlch/spar/engines/gotest"
	_ "github.com/rlch/spar/engines/yamlsuite"
	_ "github.com/rlch/spar/history/neo4j"
	_ "github.com/rlch/spar/history/sqlite"
)

func main() {
	app := &cli.Command{
		Name:  "spar",
		Usage: "Discover and run tests across frameworks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to .spar.yaml (default: search upwards from the working directory)",
				Sources: cli.EnvVars("SPAR_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error (overrides config)",
				Sources: cli.EnvVars("SPAR_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "console or json (overrides config)",
				Sources: cli.EnvVars("SPAR_LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "engine",
				Aliases: []string{"e"},
				Usage:   "engine for every unit (overrides config and detection)",
				Sources: cli.EnvVars("SPAR_ENGINE"),
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			listCommand(),
			serveCommand(),
			historyCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := app.Run(ctx, os.Args)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
