package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"anomalyfilter/imaging"
	"anomalyfilter/metrics"

	"go.uber.org/zap"
)

// DirectorySource emits one frame per decodable file in a directory, in
// lexical path order. The frame ID is the file's position in that order.
type DirectorySource struct {
	paths  []string
	next   int
	logger *zap.Logger
	stats  *metrics.Collector
}

// NewDirectorySource lists the directory once. An empty path means the
// working directory.
func NewDirectorySource(cfg DirectorySourceConfig, logger *zap.Logger, stats *metrics.Collector) (*DirectorySource, error) {
	dir := cfg.Path
	if dir == "" {
		dir = "."
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	logger = logger.Named("directory_source")
	logger.Info("Directory source ready", zap.String("path", dir), zap.Int("files", len(paths)))

	return &DirectorySource{paths: paths, logger: logger, stats: stats}, nil
}

// Step decodes the next readable file. Files that fail to decode are skipped.
func (s *DirectorySource) Step() Frame {
	for s.next < len(s.paths) {
		i := s.next
		s.next++

		img, err := imaging.Load(s.paths[i])
		if err != nil {
			s.logger.Warn("Skipping unreadable image", zap.String("path", s.paths[i]), zap.Error(err))
			s.stats.RecordDrop(metrics.DropDecodeError)
			continue
		}

		s.stats.RecordSourceFrame()
		return NewFrame(img, uint32(i))
	}
	return EndOfStream()
}

// DirectorySink writes every frame passing through it as a numbered PNG.
type DirectorySink struct {
	child  Node
	dir    string
	index  int
	logger *zap.Logger
	stats  *metrics.Collector
}

// NewDirectorySink wraps child, creating the output directory if needed.
func NewDirectorySink(child Node, cfg DirectorySinkConfig, logger *zap.Logger, stats *metrics.Collector) (*DirectorySink, error) {
	dir := cfg.Path
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &DirectorySink{child: child, dir: dir, logger: logger.Named("directory_sink"), stats: stats}, nil
}

// Step passes the next frame through after writing it.
func (s *DirectorySink) Step() Frame {
	frame := s.child.Step()
	if frame.EndOfStream() {
		return frame
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%08d.png", s.index))
	if err := imaging.Save(path, frame.Image); err != nil {
		s.logger.Error("Failed to write frame", zap.String("path", path), zap.Uint32("frame_id", frame.ID), zap.Error(err))
		s.stats.RecordDrop(metrics.DropEncodeError)
	}
	s.index++

	return frame
}

// Close closes the child chain.
func (s *DirectorySink) Close() error {
	return closeChild(s.child)
}
