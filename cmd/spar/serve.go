package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rlch/spar/rpc"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "Serve the suite over JSON-RPC on stdio",
		ArgsUsage: "[files or directories...]",
		Action:    serveRPC,
	}
}

// serveRPC registers the given units, if any, and serves until stdin
// closes. Stdout carries the protocol, so logs go to stderr or the log
// file.
func serveRPC(ctx context.Context, cmd *cli.Command) (err error) {
	e, err := newEnv(cmd, false)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := e.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	units, err := collectUnits(cmd.Args().Slice(), e.cfg)
	if err != nil && !errors.Is(err, errNoUnits) {
		return err
	}

	if err := e.openHistory(); err != nil {
		return err
	}

	e.serveMetrics(ctx)

	suite := e.newSuite()
	defer suite.Close()

	addUnits(suite, units, os.Stderr)

	e.log.Info("serving json-rpc on stdio", zap.Int("units", len(suite.Units())))

	return rpc.NewServer(suite, rpc.WithLogger(e.log)).Serve(ctx, &readWriteCloser{os.Stdin, os.Stdout})
}

// readWriteCloser joins stdin and stdout into one stream.
type readWriteCloser struct {
	io.Reader
	io.Writer
}

func (rwc *readWriteCloser) Close() error {
	if c, ok := rwc.Writer.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
