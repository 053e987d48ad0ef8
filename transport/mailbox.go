// Package transport delivers encoded frames between processes with
// "latest wins" semantics: a slow consumer never queues messages, it only
// ever sees the most recent one. Delivery is fire-and-forget.
package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by operations on a closed mailbox, publisher or
// subscriber.
var ErrClosed = errors.New("transport: closed")

// Mailbox is a single-slot buffer with overwrite policy.
//
// Put never blocks: a message that has not been consumed yet is replaced and
// counted as a drop. Receive blocks until a message is available, the
// mailbox is closed, or the context is done.
//
// Contract:
//   - Messages MUST NOT be modified after Put (they are shared by reference)
//   - Receive is intended for a single consumer goroutine
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	msg    []byte
	full   bool
	closed bool

	drops atomic.Uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put stores msg, replacing any unconsumed message.
func (m *Mailbox) Put(msg []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.full {
		m.drops.Add(1)
	}
	m.msg = msg
	m.full = true
	m.cond.Signal()
}

// Receive waits for and consumes the latest message.
func (m *Mailbox) Receive(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.full && !m.closed && ctx.Err() == nil {
		m.cond.Wait()
	}

	if m.full {
		msg := m.msg
		m.msg = nil
		m.full = false
		return msg, nil
	}
	if m.closed {
		return nil, ErrClosed
	}
	return nil, ctx.Err()
}

// Close wakes every waiting receiver. Later Puts are ignored. A message
// already stored can still be received.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
}

// Drops returns how many messages were overwritten before being consumed.
func (m *Mailbox) Drops() uint64 {
	return m.drops.Load()
}
