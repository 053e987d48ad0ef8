package shutdown

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"
)

// CloseFunc returns a cleanup function that closes c once. Errors are
// logged and returned.
func CloseFunc(logger *zap.Logger, name string, c io.Closer) CleanupFunc {
	var once sync.Once
	var err error

	return func(ctx context.Context) error {
		once.Do(func() {
			done := make(chan error, 1)
			go func() { done <- c.Close() }()

			select {
			case err = <-done:
			case <-ctx.Done():
				err = ctx.Err()
			}
			if err != nil {
				logger.Warn("Failed to close", zap.String("name", name), zap.Error(err))
				return
			}
			logger.Debug("Closed", zap.String("name", name))
		})
		return err
	}
}

// Syncer is satisfied by loggers that buffer output.
type Syncer interface {
	Sync() error
}

// SyncFunc returns a cleanup function that flushes s.
func SyncFunc(s Syncer) CleanupFunc {
	return func(ctx context.Context) error {
		return s.Sync()
	}
}

// Func adapts a plain function to a CleanupFunc.
func Func(fn func()) CleanupFunc {
	return func(ctx context.Context) error {
		fn()
		return nil
	}
}
