package metrics

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector(time.Now())

	c.RecordSourceFrame()
	c.RecordTile()
	c.RecordTile()
	c.RecordFrame()
	c.RecordStep()
	c.RecordDrop(DropShapeMismatch)
	c.RecordDrop(DropShapeMismatch)
	c.RecordDrop(DropDecodeError)

	snap := c.Snapshot()
	if snap.SourceFrames != 1 {
		t.Errorf("SourceFrames = %d, want 1", snap.SourceFrames)
	}
	if snap.Tiles != 2 {
		t.Errorf("Tiles = %d, want 2", snap.Tiles)
	}
	if snap.Frames != 1 {
		t.Errorf("Frames = %d, want 1", snap.Frames)
	}
	if snap.Steps != 1 {
		t.Errorf("Steps = %d, want 1", snap.Steps)
	}
	if snap.Drops[DropShapeMismatch] != 2 {
		t.Errorf("Drops[shape_mismatch] = %d, want 2", snap.Drops[DropShapeMismatch])
	}
	if snap.TotalDrops() != 3 {
		t.Errorf("TotalDrops() = %d, want 3", snap.TotalDrops())
	}
}

func TestCollector_NilIsNoOp(t *testing.T) {
	var c *Collector

	c.RecordSourceFrame()
	c.RecordTile()
	c.RecordFrame()
	c.RecordStep()
	c.RecordDrop(DropEmptyImage)

	snap := c.Snapshot()
	if snap.Tiles != 0 || snap.TotalDrops() != 0 {
		t.Errorf("nil collector snapshot = %+v, want zero", snap)
	}
}

func TestCollector_SnapshotIsCopy(t *testing.T) {
	c := NewCollector(time.Now())
	c.RecordDrop(DropEncodeError)

	snap := c.Snapshot()
	snap.Drops[DropEncodeError] = 100

	if got := c.Snapshot().Drops[DropEncodeError]; got != 1 {
		t.Errorf("collector drops mutated through snapshot: got %d, want 1", got)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector(time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordTile()
				c.RecordDrop(DropInferenceError)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.Tiles != 800 {
		t.Errorf("Tiles = %d, want 800", snap.Tiles)
	}
	if snap.Drops[DropInferenceError] != 800 {
		t.Errorf("Drops = %d, want 800", snap.Drops[DropInferenceError])
	}
}

func TestPrintSummary(t *testing.T) {
	tests := []struct {
		name     string
		snap     Snapshot
		contains []string
	}{
		{
			name:     "no drops",
			snap:     Snapshot{SourceFrames: 2, Tiles: 8, Frames: 2, Drops: map[DropReason]uint64{}},
			contains: []string{"Run Summary", "Tiles", "8", "No drops"},
		},
		{
			name: "with drops",
			snap: Snapshot{Drops: map[DropReason]uint64{
				DropShapeMismatch: 3,
				DropDecodeError:   1,
			}},
			contains: []string{"shape_mismatch", "decode_error", "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintSummary(&buf, tt.snap)
			out := buf.String()
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("summary missing %q:\n%s", want, out)
				}
			}
		})
	}
}
