package pipeline

import (
	"fmt"
	"math"

	"anomalyfilter/imaging"

	"go.uber.org/zap"
)

// NormalizeFilter rescales pixel intensities of every frame pulled from its
// child. It keeps no state between steps.
type NormalizeFilter struct {
	child  Node
	kind   Normalization
	logger *zap.Logger
}

// NewNormalizeFilter wraps child.
func NewNormalizeFilter(child Node, cfg NormalizeFilterConfig, logger *zap.Logger) (*NormalizeFilter, error) {
	switch cfg.Kind {
	case NormalizeStandard, NormalizeMinMax:
	default:
		return nil, fmt.Errorf("%w: unknown normalization kind %d", ErrInvalidConfig, cfg.Kind)
	}
	return &NormalizeFilter{child: child, kind: cfg.Kind, logger: logger.Named("normalize_filter")}, nil
}

// Step normalizes the next frame. Placement and ID are unchanged.
func (f *NormalizeFilter) Step() Frame {
	input := f.child.Step()
	if input.EndOfStream() {
		return input
	}
	if input.Image.Empty() {
		return Derive(&imaging.PixelBuffer{}, input)
	}

	out := imaging.NewPixelBuffer(input.Image.Width, input.Image.Height)
	switch f.kind {
	case NormalizeStandard:
		normalizeStandard(input.Image.Pix, out.Pix)
	case NormalizeMinMax:
		normalizeMinMax(input.Image.Pix, out.Pix)
	}

	return Derive(out, input)
}

// normalizeStandard maps each byte to ((b-mean)/stddev + 1) * 0.5 * 255.
// A constant image (stddev 0) maps to the value at b == mean.
func normalizeStandard(src, dst []uint8) {
	n := float64(len(src))

	var sum float64
	for _, b := range src {
		sum += float64(b)
	}
	mean := sum / n

	var sq float64
	for _, b := range src {
		d := float64(b) - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / n)

	if stddev == 0 {
		// z = 0 lands on the midpoint, truncated like every other value.
		const fill = 127
		for i := range dst {
			dst[i] = fill
		}
		return
	}

	scale := 1.0 / stddev
	for i, b := range src {
		v := ((float64(b)-mean)*scale + 1.0) * 0.5 * 255.0
		dst[i] = clampToByte(int(v))
	}
}

// normalizeMinMax stretches [min, max] onto [0, 255]. A constant image maps
// every byte to 255.
func normalizeMinMax(src, dst []uint8) {
	lo, hi := uint8(255), uint8(0)
	for _, b := range src {
		lo = min(lo, b)
		hi = max(hi, b)
	}

	if lo == hi {
		for i := range dst {
			dst[i] = 255
		}
		return
	}

	scale := 255.0 / float64(hi-lo)
	for i, b := range src {
		dst[i] = clampToByte(int(math.Round(float64(b-lo) * scale)))
	}
}

func clampToByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Close closes the child chain.
func (f *NormalizeFilter) Close() error {
	return closeChild(f.child)
}
