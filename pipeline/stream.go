package pipeline

import (
	"context"
	"fmt"

	"anomalyfilter/imaging"
	"anomalyfilter/metrics"
	"anomalyfilter/transport"

	"go.uber.org/zap"
)

// StreamSource emits frames received from a publisher. Only the most recent
// undelivered payload is kept, so a slow pipeline skips frames rather than
// falling behind. Frame IDs count received frames from zero.
type StreamSource struct {
	ctx        context.Context
	subscriber *transport.Subscriber
	nextID     uint32
	logger     *zap.Logger
	stats      *metrics.Collector
}

// NewStreamSource subscribes to cfg.ConnectAddress. The publisher does not
// need to be up yet. An unusable address is logged and the source then
// reports end-of-stream on every step.
func NewStreamSource(ctx context.Context, cfg StreamSourceConfig, logger *zap.Logger, stats *metrics.Collector) *StreamSource {
	logger = logger.Named("stream_source")
	s := &StreamSource{ctx: ctx, logger: logger, stats: stats}

	sub, err := transport.Subscribe(cfg.ConnectAddress,
		transport.WithCompression(cfg.Compressed),
		transport.WithLogger(logger),
	)
	if err != nil {
		logger.Error("Failed to connect to publisher", zap.String("address", cfg.ConnectAddress), zap.Error(err))
		return s
	}

	logger.Info("Subscribed to frames", zap.String("address", cfg.ConnectAddress), zap.Bool("compressed", cfg.Compressed))
	s.subscriber = sub
	return s
}

// Step blocks until a frame arrives. Receive and decode failures are
// reported as end-of-stream.
func (s *StreamSource) Step() Frame {
	if s.subscriber == nil {
		return EndOfStream()
	}

	payload, err := s.subscriber.Receive(s.ctx)
	if err != nil {
		s.logger.Error("Failed to receive frame", zap.Error(err))
		s.stats.RecordDrop(metrics.DropReceiveError)
		return EndOfStream()
	}

	img, err := imaging.Decode(payload)
	if err != nil {
		s.logger.Error("Failed to decode received frame", zap.Int("bytes", len(payload)), zap.Error(err))
		s.stats.RecordDrop(metrics.DropDecodeError)
		return EndOfStream()
	}

	id := s.nextID
	s.nextID++
	s.stats.RecordSourceFrame()
	return NewFrame(img, id)
}

// Close disconnects from the publisher.
func (s *StreamSource) Close() error {
	if s.subscriber == nil {
		return nil
	}
	if drops := s.subscriber.Drops(); drops > 0 {
		s.logger.Info("Frames replaced before processing", zap.Uint64("drops", drops))
	}
	return s.subscriber.Close()
}

// StreamSink publishes every frame passing through it as a PNG payload.
type StreamSink struct {
	child     Node
	publisher *transport.Publisher
	logger    *zap.Logger
	stats     *metrics.Collector
}

// NewStreamSink binds a publisher to cfg.BindAddress and wraps child.
func NewStreamSink(child Node, cfg StreamSinkConfig, logger *zap.Logger, stats *metrics.Collector) (*StreamSink, error) {
	logger = logger.Named("stream_sink")

	pub, err := transport.Listen(cfg.BindAddress,
		transport.WithCompression(cfg.Compressed),
		transport.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", cfg.BindAddress, err)
	}

	return &StreamSink{child: child, publisher: pub, logger: logger, stats: stats}, nil
}

// Addr returns the address the sink is publishing on.
func (s *StreamSink) Addr() string {
	return s.publisher.Addr()
}

// Step passes the next frame through after publishing it.
func (s *StreamSink) Step() Frame {
	frame := s.child.Step()
	if frame.EndOfStream() {
		return frame
	}

	payload, err := imaging.Encode(frame.Image)
	if err != nil {
		s.logger.Error("Failed to encode frame", zap.Uint32("frame_id", frame.ID), zap.Error(err))
		s.stats.RecordDrop(metrics.DropEncodeError)
		return frame
	}
	if err := s.publisher.Send(payload); err != nil {
		s.logger.Error("Failed to publish frame", zap.Uint32("frame_id", frame.ID), zap.Error(err))
		s.stats.RecordDrop(metrics.DropPublishError)
	}

	return frame
}

// Close stops publishing and closes the child chain.
func (s *StreamSink) Close() error {
	err := s.publisher.Close()
	if cerr := closeChild(s.child); err == nil {
		err = cerr
	}
	return err
}
