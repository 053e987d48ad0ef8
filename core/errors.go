package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
	Err     error  // Underlying cause, if any
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Error codes for configuration errors
const (
	ErrCodePipelineMissing = "PIPELINE_MISSING"
	ErrCodePipelineInvalid = "PIPELINE_INVALID"
	ErrCodeInvalidValue    = "INVALID_VALUE"
	ErrCodeLogSetup        = "LOG_SETUP_FAILED"
)

// ErrPipelineMissing returns an error for a pipeline description that cannot be read.
func ErrPipelineMissing(path string, cause error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodePipelineMissing,
		Message: fmt.Sprintf("Pipeline description not found: %s", path),
		Action:  "Set PIPELINE_CONFIG to a YAML or JSON pipeline description, or pass its path as the first argument",
		Err:     cause,
	}
}

// ErrPipelineInvalid returns an error for a pipeline description that does not parse or build.
func ErrPipelineInvalid(path string, cause error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodePipelineInvalid,
		Message: fmt.Sprintf("Invalid pipeline description %s: %v", path, cause),
		Action:  "Check that every entry sets exactly one node kind with valid options",
		Err:     cause,
	}
}

// ErrInvalidValue returns an error for an environment variable with an unusable value.
func ErrInvalidValue(varName, value, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s '%s': %s", varName, value, reason),
		Action:  fmt.Sprintf("Fix %s in your environment or .env file", varName),
	}
}

// ErrLogSetup returns an error for a log file that cannot be opened.
func ErrLogSetup(path string, cause error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeLogSetup,
		Message: fmt.Sprintf("Cannot open log file %s: %v", path, cause),
		Action:  "Set LOG_FILE to a writable location",
		Err:     cause,
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
