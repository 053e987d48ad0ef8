package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPath is the results database used when none is configured.
const DefaultPath = "results.db"

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Store owns a migrated results database, its repository and an async
// writer for detections.
//
// Usage:
//
//	st, err := store.Open(ctx, "results.db", logger)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	st.Writer().Write(rec)
type Store struct {
	db     *sql.DB
	path   string
	repo   *Repository
	writer *AsyncWriter
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open creates the database file and its directory if needed, applies
// pending migrations and starts the async writer.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// Migrations own and close their connection.
	if err := MigrateUpFromPath(path); err != nil {
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}

	db, err := OpenSQLite(DefaultConnectionConfig(path))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := NewRepository(db)
	writer := NewAsyncWriter(func(ctx context.Context, rec DetectionRecord) error {
		_, err := repo.InsertDetection(ctx, rec)
		return err
	}, DefaultChannelCapacity, logger)
	writer.Start()

	logger.Info("Results database ready", zap.String("path", path))
	return &Store{db: db, path: path, repo: repo, writer: writer, logger: logger}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Repository gives synchronous access to runs and detections.
func (s *Store) Repository() *Repository {
	return s.repo
}

// Writer returns the async detection writer.
func (s *Store) Writer() *AsyncWriter {
	return s.writer
}

// Close drains pending writes and closes the database. It is safe to call
// more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if !s.writer.Stop(DefaultDrainTimeout) {
			s.logger.Warn("Timed out draining detection writes", zap.Int("pending", s.writer.Pending()))
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// FinishRun records the end of a run through the repository.
func (s *Store) FinishRun(ctx context.Context, runID string, frames int64) error {
	return s.repo.FinishRun(ctx, runID, frames, time.Now())
}
