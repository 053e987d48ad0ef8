package inference

import (
	"context"
	"fmt"
)

// planarInput unpacks a [3, H, W] tensor.
type planarInput struct {
	data          []float32
	width, height int
}

func newPlanarInput(t Tensor) (planarInput, error) {
	if err := t.Validate(); err != nil {
		return planarInput{}, err
	}
	if len(t.Shape) != 3 || t.Shape[0] != 3 {
		return planarInput{}, fmt.Errorf("%w: expected [3,H,W], got %v", ErrShapeMismatch, t.Shape)
	}
	return planarInput{data: t.Data, height: t.Shape[1], width: t.Shape[2]}, nil
}

// at samples channel c at (x, y), clamping coordinates into the image.
func (p planarInput) at(c, x, y int) float32 {
	x = max(0, min(x, p.width-1))
	y = max(0, min(y, p.height-1))
	return p.data[c*p.width*p.height+y*p.width+x]
}

func (p planarInput) contains(r Rect) bool {
	return int(r.X)+int(r.Width) <= p.width && int(r.Y)+int(r.Height) <= p.height
}

// identityModel returns the infill region unchanged: a perfect prediction.
type identityModel struct {
	infill Rect
}

func (m *identityModel) Infer(_ context.Context, input Tensor) (Tensor, error) {
	in, err := newPlanarInput(input)
	if err != nil {
		return Tensor{}, err
	}
	if !in.contains(m.infill) {
		return Tensor{}, fmt.Errorf("%w: infill %+v outside %dx%d input", ErrShapeMismatch, m.infill, in.width, in.height)
	}

	w, h := int(m.infill.Width), int(m.infill.Height)
	out := make([]float32, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				out[(y*w+x)*3+c] = in.at(c, int(m.infill.X)+x, int(m.infill.Y)+y)
			}
		}
	}
	return Tensor{Shape: []int{h, w, 3}, Data: out}, nil
}

func (m *identityModel) Close() error { return nil }

// inpaintModel reconstructs the infill region from the ring of pixels around
// it. Each output pixel averages a horizontal blend of the left and right
// neighbours with a vertical blend of the top and bottom neighbours, so
// smooth surfaces are reconstructed well and local defects are not.
type inpaintModel struct {
	infill Rect
}

func (m *inpaintModel) Infer(_ context.Context, input Tensor) (Tensor, error) {
	in, err := newPlanarInput(input)
	if err != nil {
		return Tensor{}, err
	}
	if !in.contains(m.infill) {
		return Tensor{}, fmt.Errorf("%w: infill %+v outside %dx%d input", ErrShapeMismatch, m.infill, in.width, in.height)
	}

	x0, y0 := int(m.infill.X), int(m.infill.Y)
	w, h := int(m.infill.Width), int(m.infill.Height)
	out := make([]float32, w*h*3)

	for y := 0; y < h; y++ {
		v := float32(y+1) / float32(h+1)
		for x := 0; x < w; x++ {
			u := float32(x+1) / float32(w+1)
			for c := 0; c < 3; c++ {
				left := in.at(c, x0-1, y0+y)
				right := in.at(c, x0+w, y0+y)
				top := in.at(c, x0+x, y0-1)
				bottom := in.at(c, x0+x, y0+h)

				horizontal := (1-u)*left + u*right
				vertical := (1-v)*top + v*bottom
				out[(y*w+x)*3+c] = 0.5 * (horizontal + vertical)
			}
		}
	}
	return Tensor{Shape: []int{h, w, 3}, Data: out}, nil
}

func (m *inpaintModel) Close() error { return nil }
