package core

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by LoadConfig.
const (
	EnvPipelineConfig   = "PIPELINE_CONFIG"
	EnvDevMode          = "DEV_MODE"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogFile          = "LOG_FILE"
	EnvMaxFrames        = "MAX_FRAMES"
	EnvShutdownTimeout  = "SHUTDOWN_TIMEOUT"
	EnvResultsDB        = "RESULTS_DB"
	EnvInferenceTimeout = "INFERENCE_TIMEOUT"
)

// Defaults applied when a variable is unset.
const (
	DefaultPipelineConfig   = "pipeline.json"
	DefaultLogFile          = "anomalyfilter.log"
	DefaultResultsDB        = "results.db"
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultInferenceTimeout = 30 * time.Second
)

// Config holds the process configuration. The pipeline itself is described
// in the file at PipelinePath.
type Config struct {
	PipelinePath string // YAML or JSON pipeline description
	DevMode      bool   // colored console logs, debug level by default
	LogLevel     string // empty means the mode default
	LogFile      string // rotating JSON log file

	MaxFrames        uint64        // stop after this many frames; 0 = unlimited
	ShutdownTimeout  time.Duration // budget for cleanup handlers
	InferenceTimeout time.Duration // per-request timeout for remote models

	ResultsDB string // database for report_sink entries that name none
}

// LoadConfig reads configuration from environment variables, applying
// defaults for anything unset. Values that are set but malformed are
// reported as *ConfigError rather than silently replaced.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		PipelinePath:     GetEnvOrDefault(EnvPipelineConfig, DefaultPipelineConfig),
		DevMode:          ParseBoolEnv(EnvDevMode, false),
		LogLevel:         strings.ToLower(GetEnvOrDefault(EnvLogLevel, "")),
		LogFile:          GetEnvOrDefault(EnvLogFile, DefaultLogFile),
		ShutdownTimeout:  DefaultShutdownTimeout,
		InferenceTimeout: DefaultInferenceTimeout,
		ResultsDB:        GetEnvOrDefault(EnvResultsDB, DefaultResultsDB),
	}

	if raw := strings.TrimSpace(os.Getenv(EnvMaxFrames)); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, ErrInvalidValue(EnvMaxFrames, raw, "must be a non-negative integer")
		}
		cfg.MaxFrames = n
	}

	var err error
	if cfg.ShutdownTimeout, err = durationVar(EnvShutdownTimeout, DefaultShutdownTimeout); err != nil {
		return nil, err
	}
	if cfg.InferenceTimeout, err = durationVar(EnvInferenceTimeout, DefaultInferenceTimeout); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durationVar parses a positive duration, failing on values that are set
// but unusable.
func durationVar(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	sentinel := time.Duration(-1)
	d := ParseDurationEnv(key, sentinel)
	if d <= 0 {
		return 0, ErrInvalidValue(key, raw, "must be a positive number of seconds or a duration like 45s")
	}
	return d, nil
}

// Validate checks values that do not depend on the environment.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PipelinePath) == "" {
		return ErrInvalidValue(EnvPipelineConfig, c.PipelinePath, "must name a file")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return ErrInvalidValue(EnvLogLevel, c.LogLevel, "must be one of debug, info, warn, error, fatal")
	}
	return nil
}
