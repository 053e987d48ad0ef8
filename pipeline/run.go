package pipeline

import (
	"context"
	"time"

	"anomalyfilter/metrics"

	"go.uber.org/zap"
)

// StopReason says why Run returned.
type StopReason string

const (
	StopEndOfStream StopReason = "end_of_stream"
	StopCancelled   StopReason = "cancelled"
	StopMaxFrames   StopReason = "max_frames"
)

// RunOptions configures Run.
type RunOptions struct {
	// MaxFrames stops the run after this many frames; zero means no limit.
	MaxFrames uint64

	Logger *zap.Logger
	Stats  *metrics.Collector
}

// RunSummary describes a finished run.
type RunSummary struct {
	Frames   uint64
	Duration time.Duration
	Reason   StopReason
}

// Run steps root until it reports end-of-stream, ctx is done or MaxFrames
// frames were produced. Cancellation is only observed between steps.
func Run(ctx context.Context, root Node, opts RunOptions) RunSummary {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()
	summary := RunSummary{Reason: StopEndOfStream}

	for {
		if ctx.Err() != nil {
			summary.Reason = StopCancelled
			logger.Info("Run cancelled", zap.Uint64("frames", summary.Frames))
			break
		}
		if opts.MaxFrames > 0 && summary.Frames >= opts.MaxFrames {
			summary.Reason = StopMaxFrames
			logger.Info("Reached frame limit", zap.Uint64("max_frames", opts.MaxFrames))
			break
		}

		frame := root.Step()
		opts.Stats.RecordStep()
		if frame.EndOfStream() {
			logger.Info("Reached end of stream", zap.Uint64("frames", summary.Frames))
			break
		}
		summary.Frames++
	}

	summary.Duration = time.Since(start)
	return summary
}
