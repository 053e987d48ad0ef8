// Package pipeline implements the pull-based streaming engine: the Frame
// exchanged between nodes, the Node contract, every node kind, the pipeline
// description and the assembler that wires it.
//
// Data flows leaf to root. The driving loop calls Step on the root node, which
// synchronously pulls its child, which pulls its own child, and so on:
//
//	source -> tile_filter -> detection_filter -> frame_builder -> sink
//
// End-of-stream propagates upward as a Frame whose ID is EndOfStreamID.
package pipeline

import (
	"math"

	"anomalyfilter/imaging"
)

// EndOfStreamID marks a frame that carries no data and ends the stream.
const EndOfStreamID = math.MaxUint32

// Point is an (x, y) pair in pixels.
type Point struct {
	X uint32
	Y uint32
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Size is a (width, height) pair in pixels.
type Size struct {
	W uint32
	H uint32
}

// Frame is the unit exchanged between nodes.
//
// Image may be a whole frame or a tile of one. Offset locates Image inside
// the logical parent frame whose dimensions are Size; for an untiled frame
// Offset is (0,0) and Size equals the image size. Frames are values and are
// never mutated once emitted; Image is shared read-only by every holder.
type Frame struct {
	Image  *imaging.PixelBuffer
	Offset Point
	Size   Size
	ID     uint32
}

// EndOfStream returns the sentinel frame.
func EndOfStream() Frame {
	return Frame{ID: EndOfStreamID}
}

// NewFrame wraps a full, untiled image.
func NewFrame(img *imaging.PixelBuffer, id uint32) Frame {
	return Frame{
		Image: img,
		Size:  Size{W: img.Width, H: img.Height},
		ID:    id,
	}
}

// Derive wraps img with the placement and identity of parent.
func Derive(img *imaging.PixelBuffer, parent Frame) Frame {
	return Frame{
		Image:  img,
		Offset: parent.Offset,
		Size:   parent.Size,
		ID:     parent.ID,
	}
}

// EndOfStream reports whether f is the end-of-stream sentinel.
func (f Frame) EndOfStream() bool {
	return f.ID == EndOfStreamID
}
