package transport

import (
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
)

// FramesPath is the WebSocket endpoint frames are served on.
const FramesPath = "/frames"

// hostPort strips an optional tcp:// or ws:// scheme and maps the "*"
// wildcard host to all interfaces.
func hostPort(address string) (string, error) {
	addr := strings.TrimSpace(address)
	for _, scheme := range []string{"tcp://", "ws://"} {
		addr = strings.TrimPrefix(addr, scheme)
	}
	addr = strings.TrimSuffix(addr, FramesPath)

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("transport: invalid address %q: %w", address, err)
	}
	if host == "*" {
		host = ""
	}
	return net.JoinHostPort(host, port), nil
}

// Option configures a Publisher or Subscriber.
type Option func(*options)

type options struct {
	compress bool
	logger   *zap.Logger
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithCompression enables zstd payload compression.
func WithCompression(enabled bool) Option {
	return func(o *options) {
		o.compress = enabled
	}
}

// WithLogger sets the logger for connection events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
