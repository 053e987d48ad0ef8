package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout is how timestamps are stored in TEXT columns.
const timeLayout = time.RFC3339Nano

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("store: run not found")

// Run is a row of the runs table: one execution of a pipeline.
type Run struct {
	ID         string    // uuid assigned at startup
	Pipeline   string    // path of the pipeline description
	StartedAt  time.Time // when the run began
	FinishedAt time.Time // zero while the run is in progress
	Frames     int64     // frames recorded when the run finished
}

// DetectionRecord is a row of the detections table: the anomaly summary of
// one frame.
type DetectionRecord struct {
	ID        int64     // auto-incremented primary key
	RunID     string    // owning run
	FrameID   uint32    // frame id within the run
	Width     uint32    // anomaly map width
	Height    uint32    // anomaly map height
	MaxScore  uint8     // highest per-pixel score
	MeanScore float64   // mean per-pixel score
	Digest    string    // hex blake2b-256 of the map pixels
	CreatedAt time.Time // when the frame was recorded
}

// Repository reads and writes runs and detections.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an open connection.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// BeginRun inserts a run row. Beginning an existing run is a no-op so
// several report sinks can share one run id.
func (r *Repository) BeginRun(ctx context.Context, run Run) error {
	if r.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (id, pipeline, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Pipeline, run.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun stamps the end time and frame count of a run.
func (r *Repository) FinishRun(ctx context.Context, runID string, frames int64, finishedAt time.Time) error {
	if r.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, frames = ? WHERE id = ?`,
		finishedAt.UTC().Format(timeLayout), frames, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun loads a run by id.
func (r *Repository) GetRun(ctx context.Context, runID string) (Run, error) {
	if r.db == nil {
		return Run{}, fmt.Errorf("database connection is nil")
	}

	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, pipeline, started_at, finished_at, frames FROM runs WHERE id = ?`, runID).
		Scan(&run.ID, &run.Pipeline, &startedAt, &finishedAt, &run.Frames)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to query run: %w", err)
	}

	run.StartedAt, _ = time.Parse(timeLayout, startedAt)
	if finishedAt.Valid {
		run.FinishedAt, _ = time.Parse(timeLayout, finishedAt.String)
	}
	return run, nil
}

// InsertDetection stores one frame summary and returns its row id.
func (r *Repository) InsertDetection(ctx context.Context, rec DetectionRecord) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO detections (
			run_id, frame_id, width, height, max_score, mean_score, digest, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		int64(rec.FrameID),
		int64(rec.Width),
		int64(rec.Height),
		int64(rec.MaxScore),
		rec.MeanScore,
		rec.Digest,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}
	return res.LastInsertId()
}

// ListDetections returns the detections of a run ordered by frame id.
func (r *Repository) ListDetections(ctx context.Context, runID string) ([]DetectionRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, frame_id, width, height, max_score, mean_score, digest, created_at
		FROM detections WHERE run_id = ? ORDER BY frame_id, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var records []DetectionRecord
	for rows.Next() {
		var (
			rec                              DetectionRecord
			frameID, width, height, maxScore int64
			createdAt                        string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &frameID, &width, &height, &maxScore, &rec.MeanScore, &rec.Digest, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		rec.FrameID = uint32(frameID)
		rec.Width = uint32(width)
		rec.Height = uint32(height)
		rec.MaxScore = uint8(maxScore)
		rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountDetections returns how many detections a run has.
func (r *Repository) CountDetections(ctx context.Context, runID string) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM detections WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return count, nil
}
