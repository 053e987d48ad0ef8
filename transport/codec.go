package transport

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec frames payloads on the wire, optionally compressing them with zstd.
// Both ends of a connection must agree on compression.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCodec returns a pass-through codec, or a zstd codec when compress is set.
func NewCodec(compress bool) (*Codec, error) {
	if !compress {
		return &Codec{}, nil
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedFastest),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("transport: zstd decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// Compressed reports whether payloads are zstd-compressed.
func (c *Codec) Compressed() bool {
	return c.enc != nil
}

// Encode prepares a payload for sending.
func (c *Codec) Encode(payload []byte) []byte {
	if c.enc == nil {
		return payload
	}
	return c.enc.EncodeAll(payload, make([]byte, 0, len(payload)/2))
}

// Decode restores a received payload.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	if c.dec == nil {
		return data, nil
	}
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: zstd decode: %w", err)
	}
	return out, nil
}

// Close releases encoder and decoder resources.
func (c *Codec) Close() {
	if c.enc != nil {
		c.enc.Close()
	}
	if c.dec != nil {
		c.dec.Close()
	}
}
