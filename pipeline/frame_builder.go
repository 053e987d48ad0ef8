package pipeline

import (
	"anomalyfilter/imaging"
	"anomalyfilter/metrics"

	"go.uber.org/zap"
)

// FrameBuilder reassembles tiles that share a frame ID into one full frame.
//
// The builder does not know how many tiles make up a frame. It keeps pulling
// until it sees a tile with a different frame ID, which it queues for the
// next Step, or until the child ends the stream.
type FrameBuilder struct {
	child   Node
	pending []Frame
	logger  *zap.Logger
	stats   *metrics.Collector
}

// NewFrameBuilder wraps child.
func NewFrameBuilder(child Node, logger *zap.Logger, stats *metrics.Collector) *FrameBuilder {
	return &FrameBuilder{child: child, logger: logger.Named("frame_builder"), stats: stats}
}

// next returns the oldest queued tile, or pulls one from the child.
func (b *FrameBuilder) next() Frame {
	if len(b.pending) > 0 {
		tile := b.pending[0]
		b.pending = b.pending[1:]
		return tile
	}
	return b.child.Step()
}

// Step returns the next reassembled frame.
func (b *FrameBuilder) Step() Frame {
	var (
		frame   *imaging.PixelBuffer
		out     Frame
		started bool
	)

	for {
		tile := b.next()
		if tile.EndOfStream() {
			break
		}

		if !started {
			frame = imaging.NewPixelBuffer(tile.Size.W, tile.Size.H)
			out = Frame{Image: frame, Size: tile.Size, ID: tile.ID}
			started = true
		} else if out.ID != tile.ID {
			// The child moved on to the next frame; keep its first tile.
			b.pending = append(b.pending, tile)
			break
		}

		blitInto(frame, tile)
	}

	if !started {
		return EndOfStream()
	}

	b.logger.Debug("Frame assembled", zap.Uint32("frame_id", out.ID), zap.Int("pending", len(b.pending)))
	b.stats.RecordFrame()
	return out
}

// blitInto copies tile rows into frame at the tile offset, clipping anything
// that falls outside the frame. Later tiles overwrite earlier ones.
func blitInto(frame *imaging.PixelBuffer, tile Frame) {
	if frame.Empty() || tile.Image.Empty() {
		return
	}
	if tile.Offset.X >= frame.Width || tile.Offset.Y >= frame.Height {
		return
	}

	width := min(tile.Image.Width, frame.Width-tile.Offset.X)
	height := min(tile.Image.Height, frame.Height-tile.Offset.Y)
	n := int(width) * imaging.Channels

	for y := uint32(0); y < height; y++ {
		dst := frame.Pix[frame.Offset(tile.Offset.X, tile.Offset.Y+y):]
		copy(dst[:n], tile.Image.Row(y)[:n])
	}
}

// Close closes the child chain.
func (b *FrameBuilder) Close() error {
	return closeChild(b.child)
}
