package pipeline

import (
	"errors"
	"testing"

	"anomalyfilter/imaging"
	"anomalyfilter/metrics"

	"go.uber.org/zap/zaptest"
)

func TestNewTileFilter_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  TileFilterConfig
	}{
		{name: "zero width", cfg: TileFilterConfig{Width: 0, Height: 2, StrideX: 1, StrideY: 1}},
		{name: "zero height", cfg: TileFilterConfig{Width: 2, Height: 0, StrideX: 1, StrideY: 1}},
		{name: "zero stride x", cfg: TileFilterConfig{Width: 2, Height: 2, StrideX: 0, StrideY: 1}},
		{name: "zero stride y", cfg: TileFilterConfig{Width: 2, Height: 2, StrideX: 1, StrideY: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTileFilter(newSliceNode(), tt.cfg, zaptest.NewLogger(t), nil)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewTileFilter() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestTileFilter_GraySquareScenario(t *testing.T) {
	gray := imaging.NewFilled(4, 4, imaging.RGB{128, 128, 128})
	stats := newStats()

	tf, err := NewTileFilter(newSliceNode(NewFrame(gray, 0)),
		TileFilterConfig{Width: 2, Height: 2, StrideX: 2, StrideY: 2, PaddingMode: PaddingZero},
		zaptest.NewLogger(t), stats)
	if err != nil {
		t.Fatalf("NewTileFilter() error: %v", err)
	}

	tiles := drain(t, tf)
	if len(tiles) != 4 {
		t.Fatalf("got %d tiles, want 4", len(tiles))
	}

	wantOffsets := []Point{{0, 0}, {2, 0}, {0, 2}, {2, 2}}
	for i, tile := range tiles {
		if tile.Offset != wantOffsets[i] {
			t.Errorf("tile %d offset = %+v, want %+v", i, tile.Offset, wantOffsets[i])
		}
		if tile.Size != (Size{W: 4, H: 4}) || tile.ID != 0 {
			t.Errorf("tile %d size/id = %+v/%d", i, tile.Size, tile.ID)
		}
		if !tile.Image.Equal(imaging.NewFilled(2, 2, imaging.RGB{128, 128, 128})) {
			t.Errorf("tile %d is not solid gray", i)
		}
	}

	rebuilt := drain(t, NewFrameBuilder(newSliceNode(tiles...), zaptest.NewLogger(t), nil))
	if len(rebuilt) != 1 || !rebuilt[0].Image.Equal(gray) {
		t.Fatal("reassembled frame differs from the original")
	}
	if got := stats.Snapshot().Tiles; got != 4 {
		t.Errorf("stats tiles = %d, want 4", got)
	}
}

func TestTileFilter_Coverage(t *testing.T) {
	tests := []struct {
		name   string
		w, h   uint32
		config TileFilterConfig
	}{
		{name: "exact fit", w: 8, h: 8, config: TileFilterConfig{Width: 4, Height: 4, StrideX: 4, StrideY: 4}},
		{name: "ragged border", w: 10, h: 7, config: TileFilterConfig{Width: 4, Height: 3, StrideX: 4, StrideY: 3}},
		{name: "overlapping", w: 9, h: 9, config: TileFilterConfig{Width: 4, Height: 4, StrideX: 2, StrideY: 3}},
		{name: "frame smaller than tile", w: 3, h: 2, config: TileFilterConfig{Width: 8, Height: 8, StrideX: 8, StrideY: 8}},
		{name: "single pixel stride", w: 3, h: 3, config: TileFilterConfig{Width: 1, Height: 1, StrideX: 1, StrideY: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tf, err := NewTileFilter(newSliceNode(NewFrame(patterned(tt.w, tt.h), 5)), tt.config, zaptest.NewLogger(t), nil)
			if err != nil {
				t.Fatalf("NewTileFilter() error: %v", err)
			}

			covered := make([]bool, tt.w*tt.h)
			for _, tile := range drain(t, tf) {
				if tile.ID != 5 {
					t.Errorf("tile id = %d, want 5", tile.ID)
				}
				for y := tile.Offset.Y; y < tile.Offset.Y+tt.config.Height && y < tt.h; y++ {
					for x := tile.Offset.X; x < tile.Offset.X+tt.config.Width && x < tt.w; x++ {
						covered[y*tt.w+x] = true
					}
				}
			}

			for i, ok := range covered {
				if !ok {
					t.Fatalf("pixel (%d,%d) not covered by any tile", uint32(i)%tt.w, uint32(i)/tt.w)
				}
			}
		})
	}
}

func TestTileFilter_SmallFrameYieldsOneTile(t *testing.T) {
	tf, _ := NewTileFilter(newSliceNode(NewFrame(patterned(3, 2), 0)),
		TileFilterConfig{Width: 8, Height: 8, StrideX: 8, StrideY: 8}, zaptest.NewLogger(t), nil)

	tiles := drain(t, tf)
	if len(tiles) != 1 {
		t.Fatalf("got %d tiles, want 1", len(tiles))
	}
	if tiles[0].Image.Width != 8 || tiles[0].Image.Height != 8 {
		t.Errorf("tile is %dx%d, want 8x8", tiles[0].Image.Width, tiles[0].Image.Height)
	}
}

func TestTileFilter_Padding(t *testing.T) {
	src := patterned(5, 5)

	tests := []struct {
		mode PaddingMode
		want func(x, y uint32) imaging.RGB
	}{
		{
			mode: PaddingZero,
			want: func(x, y uint32) imaging.RGB {
				if x >= 5 || y >= 5 {
					return imaging.RGB{}
				}
				return src.At(x, y)
			},
		},
		{
			mode: PaddingReplicate,
			want: func(x, y uint32) imaging.RGB {
				return src.At(min(x, 4), min(y, 4))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			tf, _ := NewTileFilter(newSliceNode(NewFrame(src, 0)),
				TileFilterConfig{Width: 4, Height: 4, StrideX: 3, StrideY: 3, PaddingMode: tt.mode},
				zaptest.NewLogger(t), nil)

			tiles := drain(t, tf)
			if len(tiles) != 4 {
				t.Fatalf("got %d tiles, want 4", len(tiles))
			}

			// The last tile straddles the bottom-right border.
			corner := tiles[3]
			if corner.Offset != (Point{3, 3}) {
				t.Fatalf("corner tile offset = %+v, want (3,3)", corner.Offset)
			}
			for y := uint32(0); y < 4; y++ {
				for x := uint32(0); x < 4; x++ {
					got := corner.Image.At(x, y)
					want := tt.want(corner.Offset.X+x, corner.Offset.Y+y)
					if got != want {
						t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
					}
				}
			}
		})
	}
}

func TestTileFilter_PreservesParentOffset(t *testing.T) {
	parent := Frame{Image: patterned(4, 2), Offset: Point{10, 20}, Size: Size{100, 100}, ID: 9}
	tf, _ := NewTileFilter(newSliceNode(parent),
		TileFilterConfig{Width: 2, Height: 2, StrideX: 2, StrideY: 2}, zaptest.NewLogger(t), nil)

	tiles := drain(t, tf)
	if len(tiles) != 2 {
		t.Fatalf("got %d tiles, want 2", len(tiles))
	}
	if tiles[1].Offset != (Point{12, 20}) || tiles[1].Size != (Size{100, 100}) {
		t.Errorf("second tile placement = %+v %+v", tiles[1].Offset, tiles[1].Size)
	}
}

func TestTileFilter_MultipleFrames(t *testing.T) {
	tf, _ := NewTileFilter(newSliceNode(NewFrame(patterned(4, 4), 0), NewFrame(patterned(4, 4), 1)),
		TileFilterConfig{Width: 2, Height: 2, StrideX: 2, StrideY: 2}, zaptest.NewLogger(t), nil)

	tiles := drain(t, tf)
	if len(tiles) != 8 {
		t.Fatalf("got %d tiles, want 8", len(tiles))
	}
	for i, tile := range tiles {
		if want := uint32(i / 4); tile.ID != want {
			t.Errorf("tile %d id = %d, want %d", i, tile.ID, want)
		}
	}
}

func TestTileFilter_EmptyImageEndsStream(t *testing.T) {
	stats := newStats()
	empty := Frame{Image: &imaging.PixelBuffer{}, ID: 0}
	tf, _ := NewTileFilter(newSliceNode(empty, NewFrame(patterned(2, 2), 1)),
		TileFilterConfig{Width: 2, Height: 2, StrideX: 2, StrideY: 2}, zaptest.NewLogger(t), stats)

	if f := tf.Step(); !f.EndOfStream() {
		t.Fatal("empty image should yield end-of-stream")
	}
	if got := stats.Snapshot().Drops[metrics.DropEmptyImage]; got != 1 {
		t.Errorf("empty image drops = %d, want 1", got)
	}
}

func TestTileFilter_ClosesChild(t *testing.T) {
	child := newSliceNode()
	tf, _ := NewTileFilter(child, TileFilterConfig{Width: 1, Height: 1, StrideX: 1, StrideY: 1}, zaptest.NewLogger(t), nil)
	if err := Close(tf); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !child.closed {
		t.Error("child was not closed")
	}
}
