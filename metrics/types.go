// Package metrics counts what a pipeline run did: frames read, tiles cut,
// frames reassembled and everything dropped along the way, by reason.
// This file contains pure data types with no behavior.
package metrics

import "time"

// DropReason identifies why a step produced nothing useful.
type DropReason string

// Drop reasons recorded by the pipeline nodes.
const (
	DropEmptyImage        DropReason = "empty_image"
	DropModelUnavailable  DropReason = "model_unavailable"
	DropInfillOutOfBounds DropReason = "infill_out_of_bounds"
	DropInferenceError    DropReason = "inference_error"
	DropShapeMismatch     DropReason = "shape_mismatch"
	DropDecodeError       DropReason = "decode_error"
	DropEncodeError       DropReason = "encode_error"
	DropReceiveError      DropReason = "receive_error"
	DropPublishError      DropReason = "publish_error"
	DropStoreError        DropReason = "store_error"
)

// Snapshot is a point-in-time copy of a Collector's counters.
type Snapshot struct {
	// SourceFrames is the number of frames produced by sources
	SourceFrames uint64 `json:"source_frames"`

	// Tiles is the number of tiles cut by tile filters
	Tiles uint64 `json:"tiles"`

	// Frames is the number of frames emitted by frame builders
	Frames uint64 `json:"frames"`

	// Steps is the number of root steps taken by the driving loop
	Steps uint64 `json:"steps"`

	// Drops counts dropped work by reason
	Drops map[DropReason]uint64 `json:"drops"`

	// Elapsed is the time since the collector was created
	Elapsed time.Duration `json:"elapsed"`
}

// TotalDrops sums every drop reason.
func (s Snapshot) TotalDrops() uint64 {
	var total uint64
	for _, n := range s.Drops {
		total += n
	}
	return total
}
