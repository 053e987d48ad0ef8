package pipeline

import (
	"context"
	"fmt"

	"anomalyfilter/inference"
	"anomalyfilter/metrics"

	"go.uber.org/zap"
)

// Env carries the collaborators shared by every node of a pipeline.
type Env struct {
	// Logger is named per node. Defaults to a no-op logger.
	Logger *zap.Logger

	// Stats receives step counters. May be nil.
	Stats *metrics.Collector

	// Engine loads detection models. Defaults to inference.NewRegistry().
	Engine inference.Engine

	// RunID identifies this execution in report sinks.
	RunID string

	// PipelinePath is recorded alongside each run.
	PipelinePath string

	// ResultsDB is used by report sinks that name no database.
	ResultsDB string
}

// Build assembles the nodes described by cfg in list order and returns the
// root. Source entries replace the current root; every other entry wraps
// it. Entries with no kind are logged and skipped.
//
// On error every node built so far is closed.
func Build(ctx context.Context, cfg *Config, env Env) (Node, error) {
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	if env.Engine == nil {
		env.Engine = inference.NewRegistry()
	}
	logger := env.Logger.Named("pipeline")

	var root Node = nullNode{}
	for i, entry := range cfg.Pipeline {
		kind, err := entry.Kind()
		if err != nil {
			Close(root)
			return nil, fmt.Errorf("pipeline entry %d: %w", i, err)
		}
		if kind == "" {
			logger.Warn("Pipeline entry has no node kind, ignoring", zap.Int("index", i))
			continue
		}

		next, err := buildNode(ctx, root, entry, env)
		if err != nil {
			Close(root)
			return nil, fmt.Errorf("pipeline entry %d (%s): %w", i, kind, err)
		}

		if isSource(entry) {
			if _, empty := root.(nullNode); !empty {
				logger.Warn("Source replaces the nodes before it", zap.Int("index", i), zap.String("kind", kind))
				Close(root)
			}
		}
		root = next
		logger.Debug("Added node", zap.Int("index", i), zap.String("kind", kind))
	}

	if _, empty := root.(nullNode); empty {
		logger.Warn("Pipeline has no source; it will end immediately")
	}
	return root, nil
}

func isSource(entry NodeConfig) bool {
	return entry.DirectorySource != nil || entry.StreamSource != nil
}

func buildNode(ctx context.Context, root Node, entry NodeConfig, env Env) (Node, error) {
	logger, stats := env.Logger, env.Stats

	switch {
	case entry.DirectorySource != nil:
		return NewDirectorySource(*entry.DirectorySource, logger, stats)
	case entry.StreamSource != nil:
		return NewStreamSource(ctx, *entry.StreamSource, logger, stats), nil
	case entry.TileFilter != nil:
		return NewTileFilter(root, *entry.TileFilter, logger, stats)
	case entry.NormalizeFilter != nil:
		return NewNormalizeFilter(root, *entry.NormalizeFilter, logger)
	case entry.DetectionFilter != nil:
		return NewDetectionFilter(ctx, root, *entry.DetectionFilter, env.Engine, logger, stats)
	case entry.FrameBuilder != nil:
		return NewFrameBuilder(root, logger, stats), nil
	case entry.DirectorySink != nil:
		return NewDirectorySink(root, *entry.DirectorySink, logger, stats)
	case entry.StreamSink != nil:
		return NewStreamSink(root, *entry.StreamSink, logger, stats)
	case entry.ReportSink != nil:
		cfg := *entry.ReportSink
		if cfg.Database == "" {
			cfg.Database = env.ResultsDB
		}
		return NewReportSink(ctx, root, cfg, env.RunID, env.PipelinePath, logger, stats)
	}
	return nil, fmt.Errorf("%w: unsupported node kind", ErrInvalidConfig)
}
