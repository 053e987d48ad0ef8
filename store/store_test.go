package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "results.db"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenSQLite_WAL(t *testing.T) {
	db, err := OpenSQLite(DefaultConnectionConfig(filepath.Join(t.TempDir(), "wal.db")))
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(ConnectionConfig{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestMigrations_UpDownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")

	if err := MigrateUpFromPath(path); err != nil {
		t.Fatalf("MigrateUpFromPath() error: %v", err)
	}
	// Applying again is a no-op.
	if err := MigrateUpFromPath(path); err != nil {
		t.Fatalf("second MigrateUpFromPath() error: %v", err)
	}

	db, err := OpenSQLite(DefaultConnectionConfig(path))
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	version, dirty, err := MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("version = %d dirty = %v, want 2 clean", version, dirty)
	}

	db, err = OpenSQLite(DefaultConnectionConfig(path))
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	if err := MigrateDown(db, -1); err != nil {
		t.Fatalf("MigrateDown() error: %v", err)
	}

	db, err = OpenSQLite(DefaultConnectionConfig(path))
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	version, _, err = MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error: %v", err)
	}
	if version != 0 {
		t.Errorf("version after down = %d, want 0", version)
	}
}

func TestRepository_RunLifecycle(t *testing.T) {
	st := openTestStore(t)
	repo := st.Repository()
	ctx := context.Background()
	runID := NewRunID()

	if _, err := uuid.Parse(runID); err != nil {
		t.Fatalf("NewRunID() = %q is not a uuid: %v", runID, err)
	}

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.BeginRun(ctx, Run{ID: runID, Pipeline: "pipeline.json", StartedAt: started}); err != nil {
		t.Fatalf("BeginRun() error: %v", err)
	}
	if err := repo.BeginRun(ctx, Run{ID: runID, Pipeline: "other.json"}); err != nil {
		t.Fatalf("BeginRun() twice error: %v", err)
	}

	run, err := repo.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if run.Pipeline != "pipeline.json" || !run.StartedAt.Equal(started) || !run.FinishedAt.IsZero() {
		t.Errorf("GetRun() = %+v", run)
	}

	if err := st.FinishRun(ctx, runID, 12); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}
	run, _ = repo.GetRun(ctx, runID)
	if run.Frames != 12 || run.FinishedAt.IsZero() {
		t.Errorf("finished run = %+v", run)
	}

	if _, err := repo.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrRunNotFound", err)
	}
	if err := repo.FinishRun(ctx, "missing", 0, time.Now()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun(missing) error = %v, want ErrRunNotFound", err)
	}
}

func TestRepository_Detections(t *testing.T) {
	st := openTestStore(t)
	repo := st.Repository()
	ctx := context.Background()
	runID := NewRunID()

	if err := repo.BeginRun(ctx, Run{ID: runID, Pipeline: "p"}); err != nil {
		t.Fatalf("BeginRun() error: %v", err)
	}

	for _, frameID := range []uint32{2, 0, 1} {
		rec := DetectionRecord{
			RunID:     runID,
			FrameID:   frameID,
			Width:     64,
			Height:    32,
			MaxScore:  uint8(200 + frameID),
			MeanScore: 1.5,
			Digest:    "abc",
		}
		if _, err := repo.InsertDetection(ctx, rec); err != nil {
			t.Fatalf("InsertDetection() error: %v", err)
		}
	}

	records, err := repo.ListDetections(ctx, runID)
	if err != nil {
		t.Fatalf("ListDetections() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ListDetections() returned %d records, want 3", len(records))
	}
	for i, rec := range records {
		if rec.FrameID != uint32(i) {
			t.Errorf("records[%d].FrameID = %d, want %d", i, rec.FrameID, i)
		}
		if rec.MaxScore != uint8(200+i) || rec.Width != 64 || rec.Height != 32 || rec.CreatedAt.IsZero() {
			t.Errorf("records[%d] = %+v", i, rec)
		}
	}

	count, err := repo.CountDetections(ctx, runID)
	if err != nil || count != 3 {
		t.Errorf("CountDetections() = %d, %v; want 3", count, err)
	}
}

func TestRepository_DetectionRequiresRun(t *testing.T) {
	st := openTestStore(t)
	_, err := st.Repository().InsertDetection(context.Background(), DetectionRecord{RunID: "unknown", Digest: "x"})
	if err == nil {
		t.Fatal("expected foreign key violation for unknown run")
	}
}

func TestAsyncWriter_WritesAndDrains(t *testing.T) {
	var (
		mu       sync.Mutex
		received []uint32
	)
	release := make(chan struct{})
	handler := func(ctx context.Context, rec DetectionRecord) error {
		<-release
		mu.Lock()
		received = append(received, rec.FrameID)
		mu.Unlock()
		return nil
	}

	w := NewAsyncWriter(handler, 10, zaptest.NewLogger(t))
	w.Start()
	for i := uint32(0); i < 5; i++ {
		if !w.Write(DetectionRecord{FrameID: i}) {
			t.Fatalf("Write(%d) returned false", i)
		}
	}
	close(release)

	if !w.Stop(5 * time.Second) {
		t.Fatal("Stop() timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 5 {
		t.Errorf("handled %d records, want 5", len(received))
	}
	if w.Written() != 5 {
		t.Errorf("Written() = %d, want 5", w.Written())
	}
	if w.Write(DetectionRecord{}) {
		t.Error("Write() after Stop should return false")
	}
}

func TestAsyncWriter_FullBuffer(t *testing.T) {
	block := make(chan struct{})
	w := NewAsyncWriter(func(ctx context.Context, rec DetectionRecord) error {
		<-block
		return nil
	}, 1, nil)

	// Not started: the single slot fills and the next write is rejected.
	if !w.Write(DetectionRecord{FrameID: 1}) {
		t.Fatal("first Write() should succeed")
	}
	if w.Write(DetectionRecord{FrameID: 2}) {
		t.Error("Write() into a full buffer should return false")
	}
	if w.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", w.Pending())
	}

	close(block)
	w.Stop(time.Second)
	if w.Pending() != 0 {
		t.Errorf("Pending() after Stop = %d, want 0", w.Pending())
	}
}

func TestAsyncWriter_CountsFailures(t *testing.T) {
	var calls atomic.Int32
	w := NewAsyncWriter(func(ctx context.Context, rec DetectionRecord) error {
		calls.Add(1)
		return errors.New("disk full")
	}, 4, zaptest.NewLogger(t))
	w.Start()

	w.Write(DetectionRecord{FrameID: 1})
	w.Write(DetectionRecord{FrameID: 2})
	w.Stop(time.Second)

	if w.Failed() != 2 || w.Written() != 0 {
		t.Errorf("Failed() = %d Written() = %d, want 2 and 0", w.Failed(), w.Written())
	}
}

func TestStore_AsyncWriterPersists(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	runID := NewRunID()

	if err := st.Repository().BeginRun(ctx, Run{ID: runID, Pipeline: "p"}); err != nil {
		t.Fatalf("BeginRun() error: %v", err)
	}
	for i := uint32(0); i < 3; i++ {
		st.Writer().Write(DetectionRecord{RunID: runID, FrameID: i, Digest: "d"})
	}

	// Close drains the writer; reopen to read back.
	path := st.Path()
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}

	reopened, err := Open(ctx, path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.Repository().CountDetections(ctx, runID)
	if err != nil || count != 3 {
		t.Errorf("CountDetections() = %d, %v; want 3", count, err)
	}
}
