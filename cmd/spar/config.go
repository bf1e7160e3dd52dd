package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rlch/spar"
)

// loadConfigWithDir loads the config named by --config, or the nearest
// .spar.yaml walking up from startDir. Without one, defaults are returned
// rooted at startDir.
func loadConfigWithDir(cmd *cli.Command, startDir string) (*spar.Config, error) {
	if path := cmd.String("config"); path != "" {
		return spar.LoadConfigFile(path)
	}

	cfg, err := spar.LoadConfig(startDir)
	if errors.Is(err, spar.ErrConfigNotFound) {
		dir, absErr := filepath.Abs(startDir)
		if absErr != nil {
			return nil, absErr
		}

		return &spar.Config{Dir: dir}, nil
	}

	return cfg, err
}

// newLogger builds the process logger. Flags override config. When the
// terminal is taken by the TUI and no log file is configured, logs are
// discarded.
func newLogger(cmd *cli.Command, cfg spar.LogConfig, terminalTaken bool) (*zap.Logger, error) {
	if terminalTaken && cfg.File == "" {
		return zap.NewNop(), nil
	}

	format := firstNonEmpty(cmd.String("log-format"), cfg.Format, "console")
	levelName := firstNonEmpty(cmd.String("log-level"), cfg.Level, "warn")

	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var config zap.Config

	switch format {
	case "json":
		config = zap.NewProductionConfig()
	case "console":
		config = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownLogFormat, format)
	}

	config.OutputPaths = []string{firstNonEmpty(cfg.File, "stderr")}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(level)

	return config.Build()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
