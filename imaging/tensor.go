package imaging

// PixelScale maps a byte intensity onto [0, 1].
const PixelScale = 1.0 / 255.0

// ToPlanarTensor converts channel-interleaved bytes into channel-planar
// float32 values scaled to [0, 1]. The result has layout [C, H, W].
func ToPlanarTensor(buf *PixelBuffer) []float32 {
	if buf.Empty() {
		return nil
	}

	plane := int(buf.Width) * int(buf.Height)
	out := make([]float32, plane*Channels)
	for i := 0; i < plane; i++ {
		out[i] = float32(buf.Pix[i*3+0]) * PixelScale
		out[plane+i] = float32(buf.Pix[i*3+1]) * PixelScale
		out[2*plane+i] = float32(buf.Pix[i*3+2]) * PixelScale
	}
	return out
}

// FromInterleavedTensor converts [H, W, C] float32 values in [0, 1] back to
// an RGB buffer, clamping out-of-range values.
func FromInterleavedTensor(data []float32, width, height uint32) *PixelBuffer {
	buf := NewPixelBuffer(width, height)
	for i := range buf.Pix {
		if i >= len(data) {
			break
		}
		buf.Pix[i] = clampByte(int(data[i]*255.0 + 0.5))
	}
	return buf
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
