package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Publisher timing defaults.
const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// subscriberConn is one connected subscriber with its own latest-wins slot.
type subscriberConn struct {
	conn       *websocket.Conn
	box        *Mailbox
	remoteAddr string
}

// Publisher is a publish-only endpoint. Every Send replaces the pending
// message of each connected subscriber; nothing is queued and nothing is
// acknowledged.
type Publisher struct {
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	codec    *Codec
	logger   *zap.Logger

	mu          sync.Mutex
	subscribers map[*subscriberConn]struct{}
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Listen binds a publisher to address ("tcp://*:5555", ":5555", "host:port").
func Listen(address string, opts ...Option) (*Publisher, error) {
	o := buildOptions(opts)

	addr, err := hostPort(address)
	if err != nil {
		return nil, err
	}
	codec, err := NewCodec(o.compress)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		codec.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		listener: ln,
		codec:    codec,
		logger:   o.logger.Named("publisher"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		subscribers: make(map[*subscriberConn]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(FramesPath, p.handleConnection)
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("Publisher server stopped", zap.Error(err))
		}
	}()

	p.logger.Info("Publishing frames", zap.String("address", ln.Addr().String()), zap.Bool("compressed", codec.Compressed()))
	return p, nil
}

// Addr returns the bound listener address.
func (p *Publisher) Addr() string {
	return p.listener.Addr().String()
}

// Send publishes payload to every connected subscriber. With no subscribers
// the payload is discarded.
func (p *Publisher) Send(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	data := p.codec.Encode(payload)
	for sub := range p.subscribers {
		sub.box.Put(data)
	}
	return nil
}

// Subscribers returns the number of connected subscribers.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

// Drops returns the total number of messages overwritten before delivery
// across the currently connected subscribers.
func (p *Publisher) Drops() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var total uint64
	for sub := range p.subscribers {
		total += sub.box.Drops()
	}
	return total
}

func (p *Publisher) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warn("Failed to upgrade connection", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	sub := &subscriberConn{conn: conn, box: NewMailbox(), remoteAddr: conn.RemoteAddr().String()}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return
	}
	p.subscribers[sub] = struct{}{}
	total := len(p.subscribers)
	p.wg.Add(2)
	p.mu.Unlock()

	p.logger.Info("Subscriber connected", zap.String("remote", sub.remoteAddr), zap.Int("total", total))

	go p.writePump(sub)
	go p.readPump(sub)
}

// readPump discards inbound messages and detects disconnects.
func (p *Publisher) readPump(sub *subscriberConn) {
	defer p.wg.Done()
	defer p.removeSubscriber(sub)

	sub.conn.SetReadLimit(512)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards the latest message of sub's mailbox and keeps the
// connection alive with pings.
func (p *Publisher) writePump(sub *subscriberConn) {
	defer p.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	msgs := make(chan []byte)
	go func() {
		defer close(msgs)
		for {
			msg, err := sub.box.Receive(p.ctx)
			if err != nil {
				return
			}
			select {
			case msgs <- msg:
			case <-p.ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				sub.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				p.logger.Warn("Failed to send frame", zap.String("remote", sub.remoteAddr), zap.Error(err))
				sub.conn.Close()
				return
			}
		case <-ticker.C:
			if err := sub.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				sub.conn.Close()
				return
			}
		}
	}
}

func (p *Publisher) removeSubscriber(sub *subscriberConn) {
	p.mu.Lock()
	_, ok := p.subscribers[sub]
	delete(p.subscribers, sub)
	total := len(p.subscribers)
	p.mu.Unlock()

	sub.box.Close()
	sub.conn.Close()
	if ok {
		p.logger.Info("Subscriber disconnected", zap.String("remote", sub.remoteAddr), zap.Int("total", total))
	}
}

// Close disconnects every subscriber and stops listening.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	subs := make([]*subscriberConn, 0, len(p.subscribers))
	for sub := range p.subscribers {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	p.cancel()
	for _, sub := range subs {
		sub.box.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	err := p.server.Shutdown(ctx)

	for _, sub := range subs {
		sub.conn.Close()
	}
	p.wg.Wait()
	p.codec.Close()
	return err
}
