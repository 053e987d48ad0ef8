package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"anomalyfilter/core"

	"go.uber.org/zap"
)

// Manager ties together signal handling, the operation tracker and the
// cleanup registry.
//
// Usage:
//
//	manager := shutdown.NewManager(logger, shutdown.WithTimeout(cfg.ShutdownTimeout))
//	manager.Register("pipeline", shutdown.PriorityPipeline, shutdown.CloseFunc(logger, "pipeline", root))
//	manager.Start()
//
//	err := manager.Track("run", func(ctx context.Context) error {
//	    pipeline.Run(ctx, root, opts)
//	    return nil
//	})
//
//	manager.Shutdown()
//	os.Exit(manager.ExitCode())
type Manager struct {
	logger    *zap.Logger
	timeout   time.Duration
	forceExit func(code int)

	mu       sync.Mutex
	started  bool
	shutdown bool

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *OperationTracker
	registry *CleanupRegistry
	signals  *SignalCounter

	sigChan chan os.Signal
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout sets the total budget for waiting on operations and running
// cleanup. Default is 30 seconds.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithForceExit replaces os.Exit as the action taken on the second signal.
func WithForceExit(fn func(code int)) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.forceExit = fn
		}
	}
}

// WithParent derives the managed context from parent instead of
// context.Background.
func WithParent(parent context.Context) ManagerOption {
	return func(m *Manager) {
		m.ctx, m.cancel = context.WithCancel(parent)
	}
}

// NewManager creates a Manager. Signals are not handled until Start.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		logger:    logger.Named("shutdown"),
		timeout:   30 * time.Second,
		forceExit: os.Exit,
		tracker:   NewOperationTracker(),
		registry:  NewCleanupRegistry(),
		sigChan:   make(chan os.Signal, 2),
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(m)
	}

	m.signals = NewSignalCounter(2, func() {
		m.logger.Warn("Received second signal, forcing immediate exit")
		m.forceExit(core.ExitCodeError)
	})

	return m
}

// Context is cancelled when the first shutdown signal arrives or Cancel is
// called.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Cancel starts a graceful shutdown without a signal.
func (m *Manager) Cancel() {
	m.cancel()
}

// Register adds a cleanup function. Lower priorities run first.
func (m *Manager) Register(name string, priority int, fn CleanupFunc) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("Registered cleanup handler",
		zap.String("name", name),
		zap.Int("priority", priority),
	)
}

// Start begins handling SIGINT and SIGTERM. Calling it again is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.handleSignal(sig)
		}
	}()

	m.logger.Debug("Listening for shutdown signals")
}

func (m *Manager) handleSignal(sig os.Signal) {
	if m.signals.Increment(sig) == 1 {
		m.logger.Info("Received shutdown signal, stopping after the current step",
			zap.String("signal", sig.String()),
		)
		m.cancel()
	}
}

// Track runs fn as a tracked operation with the managed context. Shutdown
// waits for tracked operations before running cleanup. Once shutdown has
// begun fn is not run and ErrTrackerClosed is returned.
func (m *Manager) Track(name string, fn func(ctx context.Context) error) error {
	if !m.tracker.Start() {
		m.logger.Debug("Operation rejected, shutting down", zap.String("operation", name))
		return ErrTrackerClosed
	}
	defer m.tracker.Done()

	return fn(m.ctx)
}

// Shutdown cancels the managed context, waits for tracked operations and
// runs every cleanup handler within the configured timeout. Only the first
// call does anything.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	start := time.Now()
	m.cancel()
	m.tracker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if active := m.tracker.ActiveCount(); active > 0 {
		m.logger.Info("Waiting for running operations", zap.Int64("active", active))
	}
	if err := m.tracker.Wait(ctx); err != nil {
		m.logger.Warn("Timed out waiting for running operations",
			zap.Duration("waited", time.Since(start)),
			zap.Int64("remaining", m.tracker.ActiveCount()),
		)
	}

	// Cleanup always gets at least a second, even after a slow wait.
	cleanupCtx := ctx
	if deadline, _ := ctx.Deadline(); time.Until(deadline) < time.Second {
		var cleanupCancel context.CancelFunc
		cleanupCtx, cleanupCancel = context.WithTimeout(context.Background(), time.Second)
		defer cleanupCancel()
	}

	m.logger.Debug("Running cleanup handlers", zap.Strings("handlers", m.registry.Names()))
	errs := m.registry.Run(cleanupCtx)
	for _, err := range errs {
		m.logger.Error("Cleanup handler failed", zap.Error(err))
	}

	if started {
		signal.Stop(m.sigChan)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown had %d errors: %w", len(errs), errs[0])
	}
	m.logger.Debug("Shutdown complete", zap.Duration("duration", time.Since(start)))
	return nil
}

// ExitCode returns the code the process should exit with: the signal code
// when a signal triggered shutdown, otherwise success.
func (m *Manager) ExitCode() int {
	return m.signals.ExitCode()
}

// IsShuttingDown reports whether a signal arrived or Shutdown was called.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown || m.signals.Count() > 0
}

// RegisteredHandlers returns the cleanup handler names in execution order.
func (m *Manager) RegisteredHandlers() []string {
	return m.registry.Names()
}
