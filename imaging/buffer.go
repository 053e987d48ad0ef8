// Package imaging provides the RGB pixel buffer shared by every pipeline
// stage, plus decoding, encoding and tensor conversion helpers.
package imaging

import (
	"image"
	"image/color"
)

// Channels is the number of interleaved bytes per pixel (R, G, B).
const Channels = 3

// RGB is a single pixel value.
type RGB [Channels]uint8

// PixelBuffer owns a contiguous RGB byte buffer.
//
// A buffer with zero width or height is empty and carries no pixel data.
// Whenever it is non-empty, len(Pix) == Width*Height*3.
//
// Ownership: the allocator may write to Pix until the buffer is wrapped in a
// pipeline frame. After that, every holder treats it as read-only.
type PixelBuffer struct {
	Width  uint32
	Height uint32
	Pix    []uint8
}

// NewPixelBuffer allocates a zeroed buffer of the given size.
// A zero dimension yields an empty buffer.
func NewPixelBuffer(width, height uint32) *PixelBuffer {
	if width == 0 || height == 0 {
		return &PixelBuffer{}
	}
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, int(width)*int(height)*Channels),
	}
}

// NewFilled allocates a buffer where every pixel equals c.
func NewFilled(width, height uint32, c RGB) *PixelBuffer {
	buf := NewPixelBuffer(width, height)
	for i := 0; i < len(buf.Pix); i += Channels {
		buf.Pix[i+0] = c[0]
		buf.Pix[i+1] = c[1]
		buf.Pix[i+2] = c[2]
	}
	return buf
}

// Empty reports whether the buffer has no pixel data.
func (b *PixelBuffer) Empty() bool {
	return b == nil || b.Width == 0 || b.Height == 0
}

// Offset returns the index of the first byte of pixel (x, y).
func (b *PixelBuffer) Offset(x, y uint32) int {
	return (int(y)*int(b.Width) + int(x)) * Channels
}

// In reports whether (x, y) lies inside the buffer.
func (b *PixelBuffer) In(x, y uint32) bool {
	return x < b.Width && y < b.Height
}

// At returns the pixel at (x, y). Out-of-bounds reads return black.
func (b *PixelBuffer) At(x, y uint32) RGB {
	if b.Empty() || !b.In(x, y) {
		return RGB{}
	}
	i := b.Offset(x, y)
	return RGB{b.Pix[i], b.Pix[i+1], b.Pix[i+2]}
}

// Set writes the pixel at (x, y). Out-of-bounds writes are ignored.
func (b *PixelBuffer) Set(x, y uint32, c RGB) {
	if b.Empty() || !b.In(x, y) {
		return
	}
	i := b.Offset(x, y)
	b.Pix[i+0] = c[0]
	b.Pix[i+1] = c[1]
	b.Pix[i+2] = c[2]
}

// Row returns the bytes of row y.
func (b *PixelBuffer) Row(y uint32) []uint8 {
	start := b.Offset(0, y)
	return b.Pix[start : start+int(b.Width)*Channels]
}

// Stride is the number of bytes per row.
func (b *PixelBuffer) Stride() int {
	return int(b.Width) * Channels
}

// Clone returns a deep copy that the caller owns exclusively.
func (b *PixelBuffer) Clone() *PixelBuffer {
	if b.Empty() {
		return &PixelBuffer{}
	}
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &PixelBuffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Equal reports whether two buffers have the same size and bytes.
func (b *PixelBuffer) Equal(other *PixelBuffer) bool {
	if b.Empty() || other.Empty() {
		return b.Empty() && other.Empty()
	}
	if b.Width != other.Width || b.Height != other.Height {
		return false
	}
	for i := range b.Pix {
		if b.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// FromImage converts any image to an RGB buffer, discarding alpha.
func FromImage(img image.Image) *PixelBuffer {
	bounds := img.Bounds()
	buf := NewPixelBuffer(uint32(bounds.Dx()), uint32(bounds.Dy()))
	if buf.Empty() {
		return buf
	}

	// Fast path for the layouts the stdlib decoders usually produce.
	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < bounds.Dy(); y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+bounds.Dx()*4]
			dst := buf.Row(uint32(y))
			for x := 0; x < bounds.Dx(); x++ {
				dst[x*3+0] = row[x*4+0]
				dst[x*3+1] = row[x*4+1]
				dst[x*3+2] = row[x*4+2]
			}
		}
		return buf
	case *image.NRGBA:
		for y := 0; y < bounds.Dy(); y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+bounds.Dx()*4]
			dst := buf.Row(uint32(y))
			for x := 0; x < bounds.Dx(); x++ {
				dst[x*3+0] = row[x*4+0]
				dst[x*3+1] = row[x*4+1]
				dst[x*3+2] = row[x*4+2]
			}
		}
		return buf
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			buf.Set(uint32(x-bounds.Min.X), uint32(y-bounds.Min.Y), RGB{c.R, c.G, c.B})
		}
	}
	return buf
}

// ToRGBA converts the buffer to an opaque *image.RGBA.
func (b *PixelBuffer) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(b.Width), int(b.Height)))
	if b.Empty() {
		return img
	}
	for y := uint32(0); y < b.Height; y++ {
		src := b.Row(y)
		dst := img.Pix[int(y)*img.Stride:]
		for x := 0; x < int(b.Width); x++ {
			dst[x*4+0] = src[x*3+0]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return img
}
