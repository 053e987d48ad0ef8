package main

import (
	"context"
	"errors"
	"io"
	"time"

	"anomalyfilter/core"
	"anomalyfilter/inference"
	"anomalyfilter/logging"
	"anomalyfilter/metrics"
	"anomalyfilter/pipeline"
	"anomalyfilter/shutdown"
	"anomalyfilter/store"

	"go.uber.org/zap"
)

// app runs one pipeline from description to summary.
type app struct {
	cfg    *core.Config
	logger *logging.Logger
	out    io.Writer
}

func newApp(cfg *core.Config, logger *logging.Logger, out io.Writer) *app {
	return &app{cfg: cfg, logger: logger, out: out}
}

// Execute builds and drives the pipeline until it ends, parent is cancelled
// or, when handleSignals is set, SIGINT/SIGTERM arrives. It returns the
// process exit code. The logger is synced before returning.
func (a *app) Execute(parent context.Context, handleSignals bool) int {
	logger := a.logger.Zap()
	manager := shutdown.NewManager(logger,
		shutdown.WithParent(parent),
		shutdown.WithTimeout(a.cfg.ShutdownTimeout),
	)
	manager.Register("logger", shutdown.PriorityLogger, shutdown.SyncFunc(a.logger))
	if handleSignals {
		manager.Start()
	}

	code := a.runPipeline(manager)

	if err := manager.Shutdown(); err != nil && code == core.ExitCodeSuccess {
		code = core.ExitCodeError
	}
	if sigCode := manager.ExitCode(); sigCode != core.ExitCodeSuccess {
		code = sigCode
	}
	return code
}

func (a *app) runPipeline(manager *shutdown.Manager) int {
	logger := a.logger.Zap()
	ctx := manager.Context()

	description, err := pipeline.LoadConfig(a.cfg.PipelinePath)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidConfig) {
			err = core.ErrPipelineInvalid(a.cfg.PipelinePath, err)
		} else {
			err = core.ErrPipelineMissing(a.cfg.PipelinePath, err)
		}
		logger.Error("Failed to load pipeline description", zap.Error(err))
		return core.ExitCodeForError(err)
	}
	if description.EnableDebugLogging {
		a.logger.SetLevel(logging.DebugLevel)
	}

	runID := store.NewRunID()
	stats := metrics.NewCollector(time.Now())
	logger.Info("Starting pipeline",
		zap.String("pipeline", a.cfg.PipelinePath),
		zap.String("run_id", runID),
		zap.Int("entries", len(description.Pipeline)),
		zap.Uint64("max_frames", a.cfg.MaxFrames),
		zap.String("version", core.Version),
	)

	root, err := pipeline.Build(ctx, description, pipeline.Env{
		Logger:       logger,
		Stats:        stats,
		Engine:       inference.NewRegistry(inference.WithTimeout(a.cfg.InferenceTimeout)),
		RunID:        runID,
		PipelinePath: a.cfg.PipelinePath,
		ResultsDB:    a.cfg.ResultsDB,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidConfig) {
			err = core.ErrPipelineInvalid(a.cfg.PipelinePath, err)
		}
		logger.Error("Failed to build pipeline", zap.Error(err))
		return core.ExitCodeForError(err)
	}

	manager.Register("pipeline", shutdown.PriorityPipeline, shutdown.CloseFunc(logger, "pipeline", closer{root}))
	manager.Register("summary", shutdown.PriorityMetrics, shutdown.Func(func() {
		metrics.PrintSummary(a.out, stats.Snapshot())
	}))

	var summary pipeline.RunSummary
	err = manager.Track("run", func(ctx context.Context) error {
		summary = pipeline.Run(ctx, root, pipeline.RunOptions{
			MaxFrames: a.cfg.MaxFrames,
			Logger:    logger,
			Stats:     stats,
		})
		return nil
	})
	if err != nil {
		logger.Warn("Pipeline not run", zap.Error(err))
		return core.ExitCodeSuccess
	}

	logger.Info("Pipeline finished",
		zap.String("run_id", runID),
		zap.Uint64("frames", summary.Frames),
		zap.String("reason", string(summary.Reason)),
		zap.Duration("duration", summary.Duration),
	)
	return core.ExitCodeSuccess
}

// closer adapts a pipeline root to io.Closer.
type closer struct {
	root pipeline.Node
}

func (c closer) Close() error {
	return pipeline.Close(c.root)
}
