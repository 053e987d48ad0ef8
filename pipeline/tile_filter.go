package pipeline

import (
	"fmt"

	"anomalyfilter/imaging"
	"anomalyfilter/logging"
	"anomalyfilter/metrics"

	"go.uber.org/zap"
)

// tileState tracks the frame currently being cut into tiles.
// It lives from the first tile of a frame until the cursor leaves the frame.
type tileState struct {
	source Frame
	cursor Point
}

// TileFilter splits each frame pulled from its child into fixed-size tiles
// walked in raster order with the configured stride.
//
// Tiles that reach past the frame border are padded according to the padding
// mode. A frame smaller than one tile still yields exactly one tile. The
// filter does not require stride <= tile size; larger strides leave gaps that
// show up as unfilled regions after reassembly.
type TileFilter struct {
	child  Node
	config TileFilterConfig
	state  *tileState
	logger *zap.Logger
	stats  *metrics.Collector
}

// NewTileFilter validates cfg and wraps child.
func NewTileFilter(child Node, cfg TileFilterConfig, logger *zap.Logger, stats *metrics.Collector) (*TileFilter, error) {
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: tile size cannot be zero (got %dx%d)", ErrInvalidConfig, cfg.Width, cfg.Height)
	}
	if cfg.StrideX == 0 || cfg.StrideY == 0 {
		return nil, fmt.Errorf("%w: tile stride cannot be zero (got %dx%d)", ErrInvalidConfig, cfg.StrideX, cfg.StrideY)
	}

	logger = logger.Named("tile_filter")
	logger.Info("Tile filter configured",
		zap.Uint32("width", cfg.Width),
		zap.Uint32("height", cfg.Height),
		zap.Uint32("stride_x", cfg.StrideX),
		zap.Uint32("stride_y", cfg.StrideY),
		zap.Stringer("padding_mode", cfg.PaddingMode),
	)

	return &TileFilter{child: child, config: cfg, logger: logger, stats: stats}, nil
}

// Step emits the next tile, pulling a new frame from the child when the
// previous one has been fully tiled.
func (f *TileFilter) Step() Frame {
	if f.state == nil {
		source := f.child.Step()
		if source.EndOfStream() {
			return source
		}
		if source.Image.Empty() {
			f.logger.Error("Cannot tile an empty image", logging.FrameFields(source.ID, source.Offset.X, source.Offset.Y, source.Size.W, source.Size.H)...)
			f.stats.RecordDrop(metrics.DropEmptyImage)
			return EndOfStream()
		}
		f.state = &tileState{source: source}
	}

	state := f.state
	tile := imaging.NewPixelBuffer(f.config.Width, f.config.Height)
	f.blit(tile, state)

	out := Frame{
		Image:  tile,
		Offset: state.source.Offset.Add(state.cursor),
		Size:   state.source.Size,
		ID:     state.source.ID,
	}

	f.advance()
	f.stats.RecordTile()

	return out
}

// advance moves the cursor one stride to the right, wrapping to the next row
// and discarding the state once the cursor leaves the frame.
func (f *TileFilter) advance() {
	state := f.state
	src := state.source.Image

	state.cursor.X += f.config.StrideX
	if state.cursor.X < src.Width {
		return
	}
	state.cursor.X = 0
	state.cursor.Y += f.config.StrideY
	if state.cursor.Y >= src.Height {
		f.state = nil
	}
}

// blit copies the tile area at the cursor into tile, applying padding.
func (f *TileFilter) blit(tile *imaging.PixelBuffer, state *tileState) {
	src := state.source.Image
	replicate := f.config.PaddingMode == PaddingReplicate

	for y := uint32(0); y < tile.Height; y++ {
		srcY := state.cursor.Y + y
		if replicate {
			srcY = min(srcY, src.Height-1)
		}
		dst := tile.Row(y)

		for x := uint32(0); x < tile.Width; x++ {
			srcX := state.cursor.X + x
			if replicate {
				srcX = min(srcX, src.Width-1)
			}
			if srcX >= src.Width || srcY >= src.Height {
				// Zero padding; the tile buffer is already black.
				continue
			}
			i := src.Offset(srcX, srcY)
			dst[x*3+0] = src.Pix[i+0]
			dst[x*3+1] = src.Pix[i+1]
			dst[x*3+2] = src.Pix[i+2]
		}
	}
}

// Close closes the child chain.
func (f *TileFilter) Close() error {
	return closeChild(f.child)
}
