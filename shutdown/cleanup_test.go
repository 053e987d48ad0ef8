package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type countingCloser struct {
	calls int
	err   error
	delay time.Duration
}

func (c *countingCloser) Close() error {
	c.calls++
	time.Sleep(c.delay)
	return c.err
}

func TestCloseFunc_ClosesOnce(t *testing.T) {
	c := &countingCloser{}
	fn := CloseFunc(zaptest.NewLogger(t), "pipeline", c)

	for i := 0; i < 3; i++ {
		if err := fn(context.Background()); err != nil {
			t.Fatalf("call %d error: %v", i, err)
		}
	}
	if c.calls != 1 {
		t.Errorf("Close called %d times, want 1", c.calls)
	}
}

func TestCloseFunc_ReturnsError(t *testing.T) {
	boom := errors.New("boom")
	fn := CloseFunc(zaptest.NewLogger(t), "sink", &countingCloser{err: boom})

	if err := fn(context.Background()); !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
}

func TestCloseFunc_RespectsDeadline(t *testing.T) {
	fn := CloseFunc(zaptest.NewLogger(t), "slow", &countingCloser{delay: 200 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := fn(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

type syncRecorder struct{ synced bool }

func (s *syncRecorder) Sync() error {
	s.synced = true
	return nil
}

func TestSyncFuncAndFunc(t *testing.T) {
	s := &syncRecorder{}
	if err := SyncFunc(s)(context.Background()); err != nil || !s.synced {
		t.Errorf("SyncFunc: err=%v synced=%v", err, s.synced)
	}

	called := false
	if err := Func(func() { called = true })(context.Background()); err != nil || !called {
		t.Errorf("Func: err=%v called=%v", err, called)
	}
}
