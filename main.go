// Command anomalyfilter runs a streaming anomaly detection pipeline described
// in a YAML or JSON file.
//
// Usage:
//
//	anomalyfilter [pipeline-file]
//	anomalyfilter version
//	anomalyfilter service install|uninstall|start|stop|restart|status|run [pipeline-file]
//
// Process settings come from the environment or a .env file in the working
// directory: PIPELINE_CONFIG, DEV_MODE, LOG_LEVEL, LOG_FILE, MAX_FRAMES,
// SHUTDOWN_TIMEOUT, INFERENCE_TIMEOUT and RESULTS_DB.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"anomalyfilter/core"
	"anomalyfilter/logging"

	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Println("anomalyfilter", core.GetVersionInfo())
			return core.ExitCodeSuccess
		case "service":
			return serviceCommand(args[1:])
		}
	}

	cfg, err := loadProcessConfig(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeForError(err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeForError(err)
	}

	return newApp(cfg, logger, os.Stdout).Execute(context.Background(), true)
}

// loadProcessConfig reads .env, the environment and an optional pipeline
// path argument, which takes precedence over PIPELINE_CONFIG.
func loadProcessConfig(args []string) (*core.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to read .env: %v\n", err)
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		return nil, err
	}
	if len(args) > 0 && args[0] != "" {
		cfg.PipelinePath = args[0]
	}
	return cfg, nil
}

func newLogger(cfg *core.Config) (*logging.Logger, error) {
	level := logging.ParseLogLevelString(cfg.LogLevel, logging.DefaultLevel(cfg.DevMode))
	logger, err := logging.NewLogger(logging.Config{
		DevMode:  cfg.DevMode,
		Level:    level,
		FilePath: cfg.LogFile,
	})
	if err != nil {
		return nil, core.ErrLogSetup(cfg.LogFile, err)
	}
	return logger, nil
}
