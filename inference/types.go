// Package inference defines the reconstruction model contract used by the
// detection filter, together with the built-in and remote model backends.
//
// A model receives a tile as a [C, H, W] float32 tensor in [0, 1] and returns
// its reconstruction of the infill region as an [H', W', C] tensor in [0, 1].
package inference

import (
	"context"
	"errors"
	"fmt"
)

// Inference errors
var (
	ErrUnknownModel  = errors.New("inference: unknown model identifier")
	ErrEmptyModel    = errors.New("inference: model identifier is empty")
	ErrInvalidTensor = errors.New("inference: invalid tensor")
	ErrShapeMismatch = errors.New("inference: tensor shape mismatch")
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// Elements returns the number of elements implied by Shape.
func (t Tensor) Elements() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Validate checks that Shape is positive and matches len(Data).
func (t Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return fmt.Errorf("%w: no shape", ErrInvalidTensor)
	}
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("%w: non-positive dimension in %v", ErrInvalidTensor, t.Shape)
		}
	}
	if n := t.Elements(); n != len(t.Data) {
		return fmt.Errorf("%w: shape %v needs %d values, got %d", ErrInvalidTensor, t.Shape, n, len(t.Data))
	}
	return nil
}

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	X      uint32
	Y      uint32
	Width  uint32
	Height uint32
}

// ModelSpec identifies a model and the region it is asked to reconstruct.
type ModelSpec struct {
	// ID selects the backend: "builtin:identity", "builtin:inpaint",
	// or an http(s) URL of a model server.
	ID string

	// Infill is the region of the input tile the model reconstructs.
	Infill Rect
}

// Model runs inference on one tensor at a time.
type Model interface {
	Infer(ctx context.Context, input Tensor) (Tensor, error)
	Close() error
}

// Engine loads models.
type Engine interface {
	Load(ctx context.Context, spec ModelSpec) (Model, error)
}
