package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PaddingMode selects how tiles sample pixels outside the frame.
type PaddingMode int

const (
	// PaddingZero fills out-of-bounds samples with black.
	PaddingZero PaddingMode = iota
	// PaddingReplicate clamps out-of-bounds samples to the nearest edge pixel.
	PaddingReplicate
)

func (m PaddingMode) String() string {
	switch m {
	case PaddingZero:
		return "ZERO"
	case PaddingReplicate:
		return "REPLICATE"
	default:
		return fmt.Sprintf("PaddingMode(%d)", int(m))
	}
}

// UnmarshalYAML accepts the mode name, case-insensitively.
func (m *PaddingMode) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToUpper(strings.TrimSpace(value.Value)) {
	case "", "ZERO":
		*m = PaddingZero
	case "REPLICATE":
		*m = PaddingReplicate
	default:
		return fmt.Errorf("%w: unknown padding mode %q", ErrInvalidConfig, value.Value)
	}
	return nil
}

// Normalization selects the normalize filter variant.
type Normalization int

const (
	// NormalizeStandard applies a global z-score remap.
	NormalizeStandard Normalization = iota
	// NormalizeMinMax stretches the global value range onto [0, 255].
	NormalizeMinMax
)

func (n Normalization) String() string {
	switch n {
	case NormalizeStandard:
		return "STANDARD"
	case NormalizeMinMax:
		return "MIN_MAX"
	default:
		return fmt.Sprintf("Normalization(%d)", int(n))
	}
}

// UnmarshalYAML accepts the variant name, case-insensitively.
func (n *Normalization) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToUpper(strings.TrimSpace(value.Value)) {
	case "", "STANDARD":
		*n = NormalizeStandard
	case "MIN_MAX", "MINMAX":
		*n = NormalizeMinMax
	default:
		return fmt.Errorf("%w: unknown normalization kind %q", ErrInvalidConfig, value.Value)
	}
	return nil
}

// DirectorySourceConfig reads frames from image files in a directory.
type DirectorySourceConfig struct {
	Path string `yaml:"path"`
}

// StreamSourceConfig receives encoded frames from a publisher.
type StreamSourceConfig struct {
	ConnectAddress string `yaml:"connect_address"`
	Compressed     bool   `yaml:"compressed"`
}

// TileFilterConfig configures tiling.
type TileFilterConfig struct {
	Width       uint32      `yaml:"width"`
	Height      uint32      `yaml:"height"`
	StrideX     uint32      `yaml:"stride_x"`
	StrideY     uint32      `yaml:"stride_y"`
	PaddingMode PaddingMode `yaml:"padding_mode"`
}

// NormalizeFilterConfig configures normalization.
type NormalizeFilterConfig struct {
	Kind Normalization `yaml:"kind"`
}

// DetectionFilterConfig configures anomaly scoring.
type DetectionFilterConfig struct {
	Model        string `yaml:"model"`
	InfillX      uint32 `yaml:"infill_x"`
	InfillY      uint32 `yaml:"infill_y"`
	InfillWidth  uint32 `yaml:"infill_width"`
	InfillHeight uint32 `yaml:"infill_height"`
}

// FrameBuilderConfig has no options.
type FrameBuilderConfig struct{}

// DirectorySinkConfig writes frames as PNG files.
type DirectorySinkConfig struct {
	Path string `yaml:"path"`
}

// StreamSinkConfig publishes frames as PNG payloads.
type StreamSinkConfig struct {
	BindAddress string `yaml:"bind_address"`
	Compressed  bool   `yaml:"compressed"`
}

// ReportSinkConfig records per-frame anomaly scores in a SQLite database.
type ReportSinkConfig struct {
	Database string `yaml:"database"`
}

// NodeConfig is one entry of the pipeline description. Exactly one field
// should be set; an entry with none is ignored.
type NodeConfig struct {
	DirectorySource *DirectorySourceConfig `yaml:"directory_source,omitempty"`
	StreamSource    *StreamSourceConfig    `yaml:"stream_source,omitempty"`
	TileFilter      *TileFilterConfig      `yaml:"tile_filter,omitempty"`
	NormalizeFilter *NormalizeFilterConfig `yaml:"normalize_filter,omitempty"`
	DetectionFilter *DetectionFilterConfig `yaml:"detection_filter,omitempty"`
	FrameBuilder    *FrameBuilderConfig    `yaml:"frame_builder,omitempty"`
	DirectorySink   *DirectorySinkConfig   `yaml:"directory_sink,omitempty"`
	StreamSink      *StreamSinkConfig      `yaml:"stream_sink,omitempty"`
	ReportSink      *ReportSinkConfig      `yaml:"report_sink,omitempty"`
}

// Kind returns the name of the configured node kind, "" when none is set, or
// an error when several are set.
func (c NodeConfig) Kind() (string, error) {
	var kinds []string
	add := func(set bool, name string) {
		if set {
			kinds = append(kinds, name)
		}
	}
	add(c.DirectorySource != nil, "directory_source")
	add(c.StreamSource != nil, "stream_source")
	add(c.TileFilter != nil, "tile_filter")
	add(c.NormalizeFilter != nil, "normalize_filter")
	add(c.DetectionFilter != nil, "detection_filter")
	add(c.FrameBuilder != nil, "frame_builder")
	add(c.DirectorySink != nil, "directory_sink")
	add(c.StreamSink != nil, "stream_sink")
	add(c.ReportSink != nil, "report_sink")

	switch len(kinds) {
	case 0:
		return "", nil
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("%w: node entry sets several kinds: %s", ErrInvalidConfig, strings.Join(kinds, ", "))
	}
}

// Config is the pipeline description: nodes are built in list order.
type Config struct {
	EnableDebugLogging bool         `yaml:"enable_debug_logging"`
	Pipeline           []NodeConfig `yaml:"pipeline"`
}

// ParseConfig parses a YAML or JSON pipeline description.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// LoadConfig reads and parses a pipeline description file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline description: %w", err)
	}
	return ParseConfig(data)
}
