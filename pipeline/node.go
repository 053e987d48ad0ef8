package pipeline

import (
	"errors"
	"io"
)

// ErrInvalidConfig is wrapped by every construction-time validation error.
var ErrInvalidConfig = errors.New("pipeline: invalid configuration")

// Node produces frames on demand.
//
// Each call advances internal state and usually pulls from the node's child,
// so Step is not idempotent. A Frame with ID EndOfStreamID is returned when
// the source is exhausted or when the step failed; callers stop consuming in
// both cases. Step never panics on bad input data.
type Node interface {
	Step() Frame
}

// closeChild closes n if it holds resources.
func closeChild(n Node) error {
	if c, ok := n.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// nullNode is the root placeholder before any source is configured.
type nullNode struct{}

func (nullNode) Step() Frame { return EndOfStream() }

// Close releases resources held by every node in the chain rooted at n.
// Nodes that own a child close it as part of their own Close.
func Close(n Node) error {
	return closeChild(n)
}
