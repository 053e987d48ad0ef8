package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Codec errors
var (
	ErrInvalidImage      = errors.New("imaging: invalid image data")
	ErrInvalidDimensions = errors.New("imaging: invalid dimensions")
	ErrEmptyImage        = errors.New("imaging: empty image data")
)

// Decode decodes image data (PNG, JPEG, GIF, BMP, TIFF, WebP) into an RGB buffer.
func Decode(data []byte) (*PixelBuffer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	buf := FromImage(img)
	if buf.Empty() {
		return nil, ErrInvalidDimensions
	}
	return buf, nil
}

// Encode encodes the buffer as PNG.
func Encode(buf *PixelBuffer) ([]byte, error) {
	if buf.Empty() {
		return nil, ErrInvalidDimensions
	}

	var out bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&out, buf.ToRGBA()); err != nil {
		return nil, fmt.Errorf("imaging: png encode: %w", err)
	}
	return out.Bytes(), nil
}

// Load reads and decodes an image file.
func Load(path string) (*PixelBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	buf, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// Save encodes the buffer as PNG and writes it to path.
func Save(path string, buf *PixelBuffer) error {
	data, err := Encode(buf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
