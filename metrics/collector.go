package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector accumulates run counters. It is safe for concurrent use, and a
// nil *Collector is a valid no-op so nodes can be built without one.
//
// Usage:
//
//	stats := metrics.NewCollector(time.Now())
//	stats.RecordTile()
//	stats.RecordDrop(metrics.DropShapeMismatch)
//	snap := stats.Snapshot()
type Collector struct {
	sourceFrames atomic.Uint64
	tiles        atomic.Uint64
	frames       atomic.Uint64
	steps        atomic.Uint64

	mu    sync.Mutex
	drops map[DropReason]uint64

	startTime time.Time
}

// NewCollector creates a collector whose elapsed time counts from startTime.
func NewCollector(startTime time.Time) *Collector {
	return &Collector{
		drops:     make(map[DropReason]uint64),
		startTime: startTime,
	}
}

// RecordSourceFrame counts a frame produced by a source.
func (c *Collector) RecordSourceFrame() {
	if c == nil {
		return
	}
	c.sourceFrames.Add(1)
}

// RecordTile counts a tile cut by a tile filter.
func (c *Collector) RecordTile() {
	if c == nil {
		return
	}
	c.tiles.Add(1)
}

// RecordFrame counts a frame emitted by a frame builder.
func (c *Collector) RecordFrame() {
	if c == nil {
		return
	}
	c.frames.Add(1)
}

// RecordStep counts one step of the root node.
func (c *Collector) RecordStep() {
	if c == nil {
		return
	}
	c.steps.Add(1)
}

// RecordDrop counts a dropped unit of work.
func (c *Collector) RecordDrop(reason DropReason) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.drops[reason]++
	c.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{Drops: map[DropReason]uint64{}}
	}

	c.mu.Lock()
	drops := make(map[DropReason]uint64, len(c.drops))
	for reason, n := range c.drops {
		drops[reason] = n
	}
	c.mu.Unlock()

	return Snapshot{
		SourceFrames: c.sourceFrames.Load(),
		Tiles:        c.tiles.Load(),
		Frames:       c.frames.Load(),
		Steps:        c.steps.Load(),
		Drops:        drops,
		Elapsed:      time.Since(c.startTime),
	}
}
