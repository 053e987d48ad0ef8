package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"anomalyfilter/imaging"
	"anomalyfilter/metrics"
	"anomalyfilter/store"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// ReportSink records a summary of every frame passing through it in the
// results database: max and mean score plus a blake2b digest of the pixels.
// Writes are asynchronous and never hold up the pipeline.
type ReportSink struct {
	child  Node
	store  *store.Store
	runID  string
	frames int64
	logger *zap.Logger
	stats  *metrics.Collector
}

// NewReportSink opens (and migrates) the database at cfg.Database and
// registers the run.
func NewReportSink(ctx context.Context, child Node, cfg ReportSinkConfig, runID, pipelinePath string, logger *zap.Logger, stats *metrics.Collector) (*ReportSink, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: report sink needs a run id", ErrInvalidConfig)
	}
	logger = logger.Named("report_sink")

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Repository().BeginRun(ctx, store.Run{ID: runID, Pipeline: pipelinePath, StartedAt: time.Now()}); err != nil {
		st.Close()
		return nil, err
	}

	logger.Info("Recording detections", zap.String("database", st.Path()), zap.String("run_id", runID))
	return &ReportSink{child: child, store: st, runID: runID, logger: logger, stats: stats}, nil
}

// Step passes the next frame through after queueing its summary.
func (s *ReportSink) Step() Frame {
	frame := s.child.Step()
	if frame.EndOfStream() {
		return frame
	}

	rec := summarize(frame.Image)
	rec.RunID = s.runID
	rec.FrameID = frame.ID
	rec.CreatedAt = time.Now()

	if !s.store.Writer().Write(rec) {
		s.logger.Warn("Detection write queue full, dropping record", zap.Uint32("frame_id", frame.ID))
		s.stats.RecordDrop(metrics.DropStoreError)
	}
	s.frames++

	return frame
}

// summarize computes the score statistics and digest of an anomaly map.
func summarize(img *imaging.PixelBuffer) store.DetectionRecord {
	rec := store.DetectionRecord{}
	if img == nil {
		sum := blake2b.Sum256(nil)
		rec.Digest = hex.EncodeToString(sum[:])
		return rec
	}

	rec.Width, rec.Height = img.Width, img.Height

	var total uint64
	for _, v := range img.Pix {
		total += uint64(v)
		if v > rec.MaxScore {
			rec.MaxScore = v
		}
	}
	if len(img.Pix) > 0 {
		rec.MeanScore = float64(total) / float64(len(img.Pix))
	}

	sum := blake2b.Sum256(img.Pix)
	rec.Digest = hex.EncodeToString(sum[:])
	return rec
}

// Close finishes the run, drains pending writes and closes the child chain.
func (s *ReportSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.FinishRun(ctx, s.runID, s.frames); err != nil {
		s.logger.Warn("Failed to finish run", zap.String("run_id", s.runID), zap.Error(err))
	}
	err := s.store.Close()
	if cerr := closeChild(s.child); err == nil {
		err = cerr
	}
	return err
}
