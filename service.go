package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"anomalyfilter/core"
	"anomalyfilter/logging"

	"github.com/kardianos/service"
	"go.uber.org/zap"
)

const serviceName = "anomalyfilter"

// program runs the pipeline under a service manager (systemd, launchd or
// the Windows service control manager).
type program struct {
	args   []string
	ctx    context.Context
	cancel context.CancelFunc
	exit   chan struct{}

	timeout time.Duration
	logger  service.Logger
}

// Start loads the configuration and launches the pipeline in the
// background; it must not block.
func (p *program) Start(s service.Service) error {
	cfg, err := loadProcessConfig(p.args)
	if err != nil {
		p.errorf("Failed to load configuration: %v", err)
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		p.errorf("Failed to initialize logger: %v", err)
		return err
	}

	p.timeout = cfg.ShutdownTimeout
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.exit = make(chan struct{})

	go func() {
		defer close(p.exit)
		code := newApp(cfg, logger, logWriter{logger}).Execute(p.ctx, false)
		if code != core.ExitCodeSuccess && p.ctx.Err() == nil {
			p.errorf("Pipeline exited with %s", core.ExitCodeName(code))
		}
	}()
	return nil
}

// Stop cancels the pipeline and waits for cleanup.
func (p *program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	select {
	case <-p.exit:
		return nil
	case <-time.After(p.timeout + time.Second):
		return fmt.Errorf("timeout waiting for pipeline to stop")
	}
}

func (p *program) errorf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Errorf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// logWriter sends the run summary to the log when there is no terminal.
type logWriter struct {
	logger *logging.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	w.logger.Info("Run summary", zap.ByteString("summary", p))
	return len(p), nil
}

// serviceConfig registers the service to run "service run" from the
// current working directory so the same .env and pipeline file are used.
func serviceConfig(args []string) (*service.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	runArgs := []string{"service", "run"}
	if len(args) > 0 {
		path := args[0]
		if !filepath.IsAbs(path) {
			path = filepath.Join(wd, path)
		}
		runArgs = append(runArgs, path)
	}

	return &service.Config{
		Name:             serviceName,
		DisplayName:      "Anomaly Filter",
		Description:      "Streaming image anomaly detection pipeline",
		Arguments:        runArgs,
		WorkingDirectory: wd,
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}, nil
}

func newService(args []string) (service.Service, *program, error) {
	prg := &program{args: args}
	svcConfig, err := serviceConfig(args)
	if err != nil {
		return nil, nil, err
	}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}
	if l, err := s.Logger(nil); err == nil {
		prg.logger = l
	}
	return s, prg, nil
}

// serviceCommand handles "anomalyfilter service <action> [pipeline-file]".
func serviceCommand(args []string) int {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s service install|uninstall|start|stop|restart|status|run [pipeline-file]\n", serviceName)
		return core.ExitCodeConfig
	}
	action, rest := args[0], args[1:]

	s, _, err := newService(rest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeError
	}

	switch action {
	case "run":
		if err := s.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: service run failed: %v\n", err)
			return core.ExitCodeError
		}
		return core.ExitCodeSuccess
	case "status":
		status, err := s.Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return core.ExitCodeError
		}
		fmt.Println(statusName(status))
		return core.ExitCodeSuccess
	}

	if !isControlAction(action) {
		fmt.Fprintf(os.Stderr, "Unknown service action %q; valid actions: %v, status, run\n", action, service.ControlAction)
		return core.ExitCodeConfig
	}
	if err := service.Control(s, action); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to %s service: %v\n", action, err)
		return core.ExitCodeError
	}
	fmt.Printf("Service %s: %s succeeded\n", serviceName, action)
	return core.ExitCodeSuccess
}

func isControlAction(action string) bool {
	for _, a := range service.ControlAction {
		if a == action {
			return true
		}
	}
	return false
}

func statusName(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
