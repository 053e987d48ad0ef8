package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"anomalyfilter/imaging"
	"anomalyfilter/inference"
	"anomalyfilter/logging"
	"anomalyfilter/metrics"

	"go.uber.org/zap"
)

// modelState is the lifecycle of the lazily loaded model.
type modelState int

const (
	modelUnloaded modelState = iota
	modelLoaded
	modelFailed
)

// DetectionFilter scores each frame pulled from its child against a
// reconstruction model.
//
// The model is asked to reconstruct the infill region of the input. The
// squared residual between prediction and measurement, scaled by 1/255, is
// emitted as an anomaly map positioned at the infill region of the parent
// frame. Large values mark pixels the model could not explain.
type DetectionFilter struct {
	ctx    context.Context
	child  Node
	config DetectionFilterConfig
	engine inference.Engine
	logger *zap.Logger
	stats  *metrics.Collector

	state modelState
	model inference.Model
}

// NewDetectionFilter validates cfg and wraps child. The model is not loaded
// until the first frame arrives. Model loading and inference are bound to
// ctx.
func NewDetectionFilter(ctx context.Context, child Node, cfg DetectionFilterConfig, engine inference.Engine, logger *zap.Logger, stats *metrics.Collector) (*DetectionFilter, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: model path is empty", ErrInvalidConfig)
	}
	if cfg.InfillWidth == 0 {
		return nil, fmt.Errorf("%w: infill width cannot be zero", ErrInvalidConfig)
	}
	if cfg.InfillHeight == 0 {
		return nil, fmt.Errorf("%w: infill height cannot be zero", ErrInvalidConfig)
	}
	if engine == nil {
		return nil, fmt.Errorf("%w: no inference engine", ErrInvalidConfig)
	}

	logger = logger.Named("detection_filter")
	logger.Info("Infill configured",
		zap.Uint32("infill_x", cfg.InfillX),
		zap.Uint32("infill_y", cfg.InfillY),
		zap.Uint32("infill_width", cfg.InfillWidth),
		zap.Uint32("infill_height", cfg.InfillHeight),
		logging.ModelField(cfg.Model),
	)

	return &DetectionFilter{
		ctx:    ctx,
		child:  child,
		config: cfg,
		engine: engine,
		logger: logger,
		stats:  stats,
	}, nil
}

func (f *DetectionFilter) infill() inference.Rect {
	return inference.Rect{
		X:      f.config.InfillX,
		Y:      f.config.InfillY,
		Width:  f.config.InfillWidth,
		Height: f.config.InfillHeight,
	}
}

// Step scores the next frame. Any per-frame failure is logged and reported
// as end-of-stream.
func (f *DetectionFilter) Step() Frame {
	input := f.child.Step()
	if input.EndOfStream() {
		return EndOfStream()
	}

	if !f.ensureModel() {
		f.stats.RecordDrop(metrics.DropModelUnavailable)
		return EndOfStream()
	}

	return f.process(input)
}

// ensureModel loads the model on first use. A failed load is sticky.
func (f *DetectionFilter) ensureModel() bool {
	switch f.state {
	case modelLoaded:
		return true
	case modelFailed:
		return false
	}

	model, err := f.engine.Load(f.ctx, inference.ModelSpec{ID: f.config.Model, Infill: f.infill()})
	if err != nil {
		f.logger.Error("Failed to load model", logging.ModelField(f.config.Model), zap.Error(err))
		f.state = modelFailed
		return false
	}

	f.logger.Info("Loaded model", logging.ModelField(f.config.Model))
	f.model = model
	f.state = modelLoaded
	return true
}

func (f *DetectionFilter) process(input Frame) Frame {
	img := input.Image
	var width, height uint32
	if img != nil {
		width, height = img.Width, img.Height
	}
	maxX := uint64(f.config.InfillX) + uint64(f.config.InfillWidth)
	maxY := uint64(f.config.InfillY) + uint64(f.config.InfillHeight)

	if img.Empty() || maxX > uint64(width) || maxY > uint64(height) {
		f.logger.Error("Image is not large enough for infill",
			zap.Uint64("need_width", maxX),
			zap.Uint64("need_height", maxY),
			zap.Uint32("got_width", width),
			zap.Uint32("got_height", height),
			zap.Uint32("frame_id", input.ID),
		)
		f.stats.RecordDrop(metrics.DropInfillOutOfBounds)
		return EndOfStream()
	}

	tensor := inference.Tensor{
		Shape: []int{imaging.Channels, int(img.Height), int(img.Width)},
		Data:  imaging.ToPlanarTensor(img),
	}

	output, err := f.model.Infer(f.ctx, tensor)
	if err != nil {
		f.logger.Error("Forward pass failed", zap.Uint32("frame_id", input.ID), zap.Error(err))
		f.stats.RecordDrop(metrics.DropInferenceError)
		return EndOfStream()
	}

	if !f.checkOutputShape(output) {
		f.stats.RecordDrop(metrics.DropShapeMismatch)
		return EndOfStream()
	}

	f.logger.Debug("Completed forward pass", zap.Uint32("frame_id", input.ID))

	anomaly := f.residualMap(img, output.Data)

	return Frame{
		Image:  anomaly,
		Offset: input.Offset.Add(Point{X: f.config.InfillX, Y: f.config.InfillY}),
		Size:   input.Size,
		ID:     input.ID,
	}
}

// checkOutputShape verifies the prediction is [infill_height, infill_width, 3].
func (f *DetectionFilter) checkOutputShape(output inference.Tensor) bool {
	shape := output.Shape
	w, h := int(f.config.InfillWidth), int(f.config.InfillHeight)

	if len(shape) != 3 || shape[0] != h || shape[1] != w || shape[2] != imaging.Channels || len(output.Data) != w*h*imaging.Channels {
		f.logger.Error("Unexpected model output size",
			zap.String("expected", fmt.Sprintf("%dx%d", w, h)),
			zap.Ints("got_shape", shape),
			zap.Int("got_values", len(output.Data)),
		)
		return false
	}
	return true
}

// residualMap computes clamp((predicted*255 - measured)^2 / 255) per channel.
// Rows are split across workers; all workers finish before it returns.
func (f *DetectionFilter) residualMap(img *imaging.PixelBuffer, predicted []float32) *imaging.PixelBuffer {
	w, h := f.config.InfillWidth, f.config.InfillHeight
	out := imaging.NewPixelBuffer(w, h)

	workers := min(runtime.GOMAXPROCS(0), int(h))
	rowsPerWorker := (int(h) + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < int(h); start += rowsPerWorker {
		end := min(start+rowsPerWorker, int(h))
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				measured := img.Pix[img.Offset(f.config.InfillX, f.config.InfillY+uint32(y)):]
				dst := out.Row(uint32(y))
				src := predicted[y*int(w)*imaging.Channels:]
				for i := 0; i < int(w)*imaging.Channels; i++ {
					dst[i] = squaredResidual(src[i]*255.0, float32(measured[i]))
				}
			}
		}(start, end)
	}
	wg.Wait()

	return out
}

// squaredResidual returns (p - m)^2 / 255 truncated and clamped to a byte.
func squaredResidual(predicted, measured float32) uint8 {
	const scale = 1.0 / 255.0
	d := predicted - measured
	v := int(d * d * scale)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Close releases the model and closes the child chain.
func (f *DetectionFilter) Close() error {
	if f.model != nil {
		if err := f.model.Close(); err != nil {
			f.logger.Warn("Failed to close model", zap.Error(err))
		}
		f.model = nil
	}
	return closeChild(f.child)
}
