package transport

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Reconnect backoff bounds.
const (
	minBackoff = 100 * time.Millisecond
	maxBackoff = 5 * time.Second
)

// Subscriber is a subscribe-only endpoint. A background goroutine keeps a
// connection to the publisher, reconnecting with backoff, and stores each
// received message in a latest-wins mailbox.
type Subscriber struct {
	url    string
	codec  *Codec
	box    *Mailbox
	logger *zap.Logger
	dialer *websocket.Dialer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	conn      *websocket.Conn
	closeOnce sync.Once
}

// Subscribe connects to a publisher at address. Like a message-queue
// subscriber it does not fail when the publisher is not up yet; it keeps
// retrying in the background until Close.
func Subscribe(address string, opts ...Option) (*Subscriber, error) {
	o := buildOptions(opts)

	addr, err := hostPort(address)
	if err != nil {
		return nil, err
	}
	codec, err := NewCodec(o.compress)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscriber{
		url:    (&url.URL{Scheme: "ws", Host: addr, Path: FramesPath}).String(),
		codec:  codec,
		box:    NewMailbox(),
		logger: o.logger.Named("subscriber"),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second, ReadBufferSize: 64 * 1024},
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.run()
	return s, nil
}

// Receive returns the most recent message, waiting for one if necessary.
func (s *Subscriber) Receive(ctx context.Context) ([]byte, error) {
	data, err := s.box.Receive(ctx)
	if err != nil {
		return nil, err
	}
	return s.codec.Decode(data)
}

// Drops returns how many messages were replaced before being received.
func (s *Subscriber) Drops() uint64 {
	return s.box.Drops()
}

func (s *Subscriber) run() {
	defer close(s.done)
	defer s.box.Close()

	backoff := minBackoff
	for s.ctx.Err() == nil {
		conn, _, err := s.dialer.DialContext(s.ctx, s.url, nil)
		if err != nil {
			s.logger.Debug("Publisher not reachable, retrying", zap.String("url", s.url), zap.Duration("backoff", backoff), zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-s.ctx.Done():
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = minBackoff
		s.setConn(conn)
		s.logger.Info("Connected to publisher", zap.String("url", s.url))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if s.ctx.Err() == nil {
					s.logger.Warn("Lost connection to publisher", zap.String("url", s.url), zap.Error(err))
				}
				break
			}
			s.box.Put(data)
		}

		s.setConn(nil)
		conn.Close()
	}
}

func (s *Subscriber) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	// Close may have run between the dial and the store.
	if conn != nil && s.ctx.Err() != nil {
		conn.Close()
	}
}

// Close stops reconnecting and wakes pending receivers.
func (s *Subscriber) Close() error {
	s.cancel()

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()

	<-s.done
	s.closeOnce.Do(s.codec.Close)
	return nil
}
