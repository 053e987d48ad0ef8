package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"anomalyfilter/imaging"
	"anomalyfilter/inference"
	"anomalyfilter/metrics"
)

// sliceNode emits a fixed list of frames, then end-of-stream forever.
type sliceNode struct {
	frames []Frame
	closed bool
}

func (n *sliceNode) Step() Frame {
	if len(n.frames) == 0 {
		return EndOfStream()
	}
	f := n.frames[0]
	n.frames = n.frames[1:]
	return f
}

func (n *sliceNode) Close() error {
	n.closed = true
	return nil
}

func newSliceNode(frames ...Frame) *sliceNode {
	return &sliceNode{frames: frames}
}

// patterned returns a w x h image whose bytes are all distinct modulo 256.
func patterned(w, h uint32) *imaging.PixelBuffer {
	buf := imaging.NewPixelBuffer(w, h)
	for i := range buf.Pix {
		buf.Pix[i] = uint8(i*7 + 3)
	}
	return buf
}

// drain steps n until end-of-stream, failing the test if it never ends.
func drain(t *testing.T, n Node) []Frame {
	t.Helper()
	var out []Frame
	for i := 0; i < 100000; i++ {
		f := n.Step()
		if f.EndOfStream() {
			return out
		}
		out = append(out, f)
	}
	t.Fatal("node never reached end of stream")
	return nil
}

// fakeEngine returns a scripted model and counts loads.
type fakeEngine struct {
	loads   int
	loadErr error
	model   inference.Model
}

func (e *fakeEngine) Load(ctx context.Context, spec inference.ModelSpec) (inference.Model, error) {
	e.loads++
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	return e.model, nil
}

// fakeModel returns a fixed tensor or error.
type fakeModel struct {
	output inference.Tensor
	err    error
	calls  int
	closed bool
}

func (m *fakeModel) Infer(ctx context.Context, input inference.Tensor) (inference.Tensor, error) {
	m.calls++
	return m.output, m.err
}

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

var errBoom = errors.New("boom")

func newStats() *metrics.Collector {
	return metrics.NewCollector(time.Now())
}
