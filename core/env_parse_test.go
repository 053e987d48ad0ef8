package core

import (
	"testing"
	"time"
)

func TestGetEnvOrDefault(t *testing.T) {
	const testKey = "TEST_GET_ENV_OR_DEFAULT"

	tests := []struct {
		name         string
		envValue     string
		defaultValue string
		want         string
	}{
		{name: "returns env value when set", envValue: "custom_value", defaultValue: "default", want: "custom_value"},
		{name: "returns default when empty", envValue: "", defaultValue: "default", want: "default"},
		{name: "returns default when blank", envValue: "   ", defaultValue: "default", want: "default"},
		{name: "trims value", envValue: " pipeline.yaml ", defaultValue: "default", want: "pipeline.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(testKey, tt.envValue)
			if got := GetEnvOrDefault(testKey, tt.defaultValue); got != tt.want {
				t.Errorf("GetEnvOrDefault() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	const testKey = "TEST_PARSE_INT_ENV"

	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		want         int
	}{
		{name: "parses valid integer", envValue: "42", defaultValue: 0, want: 42},
		{name: "parses negative integer", envValue: "-10", defaultValue: 0, want: -10},
		{name: "returns default for invalid", envValue: "abc", defaultValue: 7, want: 7},
		{name: "returns default for float", envValue: "1.5", defaultValue: 7, want: 7},
		{name: "returns default when empty", envValue: "", defaultValue: 7, want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(testKey, tt.envValue)
			if got := ParseIntEnv(testKey, tt.defaultValue); got != tt.want {
				t.Errorf("ParseIntEnv() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseUint64Env(t *testing.T) {
	const testKey = "TEST_PARSE_UINT64_ENV"

	tests := []struct {
		name         string
		envValue     string
		defaultValue uint64
		want         uint64
	}{
		{name: "parses count", envValue: "1000", want: 1000},
		{name: "parses zero", envValue: "0", defaultValue: 5, want: 0},
		{name: "rejects negative", envValue: "-1", defaultValue: 5, want: 5},
		{name: "rejects garbage", envValue: "many", defaultValue: 5, want: 5},
		{name: "returns default when empty", envValue: "", defaultValue: 5, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(testKey, tt.envValue)
			if got := ParseUint64Env(testKey, tt.defaultValue); got != tt.want {
				t.Errorf("ParseUint64Env() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseBoolEnv(t *testing.T) {
	const testKey = "TEST_PARSE_BOOL_ENV"

	tests := []struct {
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
		{"", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv(testKey, tt.envValue)
			if got := ParseBoolEnv(testKey, tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.envValue, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestParseDurationEnv(t *testing.T) {
	const testKey = "TEST_PARSE_DURATION_ENV"

	tests := []struct {
		name     string
		envValue string
		want     time.Duration
	}{
		{name: "bare seconds", envValue: "30", want: 30 * time.Second},
		{name: "duration string", envValue: "1m30s", want: 90 * time.Second},
		{name: "milliseconds", envValue: "250ms", want: 250 * time.Millisecond},
		{name: "invalid falls back", envValue: "soon", want: 10 * time.Second},
		{name: "empty falls back", envValue: "", want: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(testKey, tt.envValue)
			if got := ParseDurationEnv(testKey, 10*time.Second); got != tt.want {
				t.Errorf("ParseDurationEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}
