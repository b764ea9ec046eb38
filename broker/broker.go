// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package broker pools InvocationChannels over one transport. It is
// the piece that turns a single connection-oriented listener/dialer
// pair into "as many concurrent invocations as the caller wants,
// recycling channels between calls" -- the multiplexing half of the
// session, grounded on the teacher's zapServer/ZAPConn accept-and-pool
// model (see luxfi/rpc's zap.go).
package broker

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	metrics "github.com/armon/go-metrics"
	"go.uber.org/zap"

	"github.com/luxfi/dirmi/codec"
	"github.com/luxfi/dirmi/wire"
)

// ErrClosed is returned by Connect/Accept once the broker has been
// closed. A channel passed to Recycle after closing is closed rather
// than pooled.
var ErrClosed = errors.New("broker: closed")

// Dialer opens a new outbound connection when the pool has no idle
// channel to offer.
type Dialer func(ctx context.Context) (net.Conn, error)

// Options configures a Broker.
type Options struct {
	Codec       codec.Codec
	MaxChannels int           // 0 means unbounded pool growth
	IdleTimeout time.Duration // 0 disables idle reaping
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Broker pools InvocationChannels over one net.Listener (for Accept)
// and one Dialer (for Connect). Either may be nil: a broker that only
// dials never calls Accept, and vice versa, matching a session that
// is purely a client or purely a server.
type Broker struct {
	dial     Dialer
	listener net.Listener
	opts     Options

	mu      sync.Mutex
	idle    []*entry
	closed  bool

	incoming chan acceptResult
	acceptWG sync.WaitGroup

	stopReap chan struct{}
}

type entry struct {
	ch       *wire.Channel
	lastUsed time.Time
}

type acceptResult struct {
	ch  *wire.Channel
	err error
}

// New creates a Broker. Either dial or listener (or both) may be
// supplied depending on the session's role.
func New(dial Dialer, listener net.Listener, opts Options) *Broker {
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	b := &Broker{
		dial:     dial,
		listener: listener,
		opts:     opts,
		incoming: make(chan acceptResult, 8),
		stopReap: make(chan struct{}),
	}
	if listener != nil {
		b.acceptWG.Add(1)
		go b.acceptLoop()
	}
	if opts.IdleTimeout > 0 {
		go b.reapLoop()
	}
	return b
}

func (b *Broker) acceptLoop() {
	defer b.acceptWG.Done()
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			b.incoming <- acceptResult{err: err}
			return
		}
		ch := wire.NewChannel(conn, b.opts.Codec)
		select {
		case b.incoming <- acceptResult{ch: ch}:
		default:
			// Backlog full; still deliver, blocking, so no accepted
			// connection is silently dropped.
			b.incoming <- acceptResult{ch: ch}
		}
	}
}

func (b *Broker) reapLoop() {
	ticker := time.NewTicker(b.opts.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.reapIdle()
		case <-b.stopReap:
			return
		}
	}
}

func (b *Broker) reapIdle() {
	cutoff := time.Now().Add(-b.opts.IdleTimeout)
	b.mu.Lock()
	kept := b.idle[:0]
	var stale []*entry
	for _, e := range b.idle {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e)
		} else {
			kept = append(kept, e)
		}
	}
	b.idle = kept
	b.mu.Unlock()

	for _, e := range stale {
		e.ch.Close()
		b.opts.Logger.Debug("broker: reaped idle channel")
		b.emit("dirmi.broker.reaped", 1)
	}
}

// Connect returns a channel ready for a new outbound invocation,
// preferring a pooled channel over dialing a new one.
func (b *Broker) Connect(ctx context.Context) (*wire.Channel, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if n := len(b.idle); n > 0 {
		e := b.idle[n-1]
		b.idle = b.idle[:n-1]
		b.mu.Unlock()
		b.emit("dirmi.broker.reused", 1)
		return e.ch, nil
	}
	b.mu.Unlock()

	if b.dial == nil {
		return nil, errors.New("broker: no dialer configured")
	}
	conn, err := b.dial(ctx)
	if err != nil {
		return nil, err
	}
	b.emit("dirmi.broker.dialed", 1)
	return wire.NewChannel(conn, b.opts.Codec), nil
}

// Accept blocks until an incoming channel is available, the broker is
// closed, or ctx is cancelled.
func (b *Broker) Accept(ctx context.Context) (*wire.Channel, error) {
	select {
	case res := <-b.incoming:
		if res.err != nil {
			b.mu.Lock()
			closed := b.closed
			b.mu.Unlock()
			if closed {
				return nil, ErrClosed
			}
			return nil, res.err
		}
		return res.ch, nil
	case <-b.stopReap:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Recycle returns ch to the pool for future outbound reuse. If err is
// non-nil (the previous reply could not be fully drained), the channel
// is closed instead.
func (b *Broker) Recycle(ch *wire.Channel, err error) {
	if err != nil || ch.Closed() {
		ch.Close()
		b.emit("dirmi.broker.discarded", 1)
		return
	}

	b.mu.Lock()
	if b.closed || (b.opts.MaxChannels > 0 && len(b.idle) >= b.opts.MaxChannels) {
		b.mu.Unlock()
		ch.Close()
		b.emit("dirmi.broker.discarded", 1)
		return
	}
	b.idle = append(b.idle, &entry{ch: ch, lastUsed: time.Now()})
	b.mu.Unlock()
	b.emit("dirmi.broker.recycled", 1)
}

// Close closes all pooled channels, rejects new Connect calls with
// ErrClosed, and drains any Accept callers with the same error.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	idle := b.idle
	b.idle = nil
	b.mu.Unlock()

	close(b.stopReap)
	for _, e := range idle {
		e.ch.Close()
	}
	if b.listener != nil {
		b.listener.Close()
		b.acceptWG.Wait()
	}
	return nil
}

func (b *Broker) emit(name string, v float32) {
	if b.opts.Metrics != nil {
		b.opts.Metrics.IncrCounter([]string{name}, v)
	}
}
