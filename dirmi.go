// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dirmi

import (
	"context"

	"github.com/luxfi/dirmi/session"
)

// Session is a bidirectional RMI session over one connection-oriented
// transport.
type Session = session.Session

// Listener accepts inbound Sessions.
type Listener = session.Listener

// Stub is the application-facing handle for an imported remote object.
type Stub = session.Stub

// DialOption configures an outbound Session.
type DialOption = session.DialOption

// ServerOption configures a Session accepted by a Listener.
type ServerOption = session.ServerOption

// Dial opens a Session to addr.
func Dial(ctx context.Context, addr string, opts ...DialOption) (*Session, error) {
	return session.Dial(ctx, addr, opts...)
}

// Listen starts accepting connections at addr.
func Listen(addr string, opts ...ServerOption) (*Listener, error) {
	return session.Listen(addr, opts...)
}

// Re-exported functional options, following the teacher's WithCodec /
// WithTransport naming.
var (
	WithCodec               = session.WithCodec
	WithServerCodec         = session.WithServerCodec
	WithIdleTimeout         = session.WithIdleTimeout
	WithServerIdleTimeout   = session.WithServerIdleTimeout
	WithMaxChannels         = session.WithMaxChannels
	WithServerMaxChannels   = session.WithServerMaxChannels
	WithDGCInterval         = session.WithDGCInterval
	WithServerDGCInterval   = session.WithServerDGCInterval
	WithLogger              = session.WithLogger
	WithServerLogger        = session.WithServerLogger
	WithMetrics             = session.WithMetrics
	WithServerMetrics       = session.WithServerMetrics
	WithTracerProvider      = session.WithTracerProvider
	WithServerTracerProvider = session.WithServerTracerProvider
	WithAsyncErrorSink      = session.WithAsyncErrorSink
	WithServerAsyncErrorSink = session.WithServerAsyncErrorSink
	WithListener            = session.WithListener
)
