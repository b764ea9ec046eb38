// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package session owns one peer connection's worth of state: the
// channel broker, the object registry, the DGC clock, and the accept
// loop that routes inbound channels to either a DGC exchange or a
// skeleton dispatch. It is the thing an application Dials or Listens
// for; everything else in this module is a piece session wires
// together.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	metrics "github.com/armon/go-metrics"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/luxfi/dirmi/broker"
	"github.com/luxfi/dirmi/codec"
	"github.com/luxfi/dirmi/dgc"
	"github.com/luxfi/dirmi/dispatch"
	"github.com/luxfi/dirmi/identity"
	"github.com/luxfi/dirmi/info"
	"github.com/luxfi/dirmi/registry"
	"github.com/luxfi/dirmi/wire"
)

// ErrClosed is returned once a Session has been closed.
var ErrClosed = errors.New("session: closed")

// Options configures a Session, filled in by DialOption/ServerOption.
type Options struct {
	Codec          codec.Codec
	IdleTimeout    time.Duration
	MaxChannels    int
	DGCInterval    time.Duration
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	TracerProvider trace.TracerProvider
	AsyncErrors    dispatch.AsyncErrorSink

	// Listener, if set, lets a dialing session also accept connections
	// the peer opens back to push invocations for objects this side
	// exported -- true duplex push otherwise requires both peers to be
	// mutually dialable, which a firewalled client generally is not
	// (NAT/firewall traversal is out of scope; see WithListener).
	Listener net.Listener
}

// DialOption configures an outbound Session.
type DialOption func(*Options)

// ServerOption configures a Session accepted by a Listener.
type ServerOption func(*Options)

// WithCodec selects the object codec used for shared/unshared values.
func WithCodec(c codec.Codec) DialOption { return func(o *Options) { o.Codec = c } }

// WithServerCodec is WithCodec's ServerOption counterpart.
func WithServerCodec(c codec.Codec) ServerOption { return func(o *Options) { o.Codec = c } }

// WithIdleTimeout sets how long an idle pooled channel survives before
// the broker closes it. Zero disables reaping.
func WithIdleTimeout(d time.Duration) DialOption { return func(o *Options) { o.IdleTimeout = d } }

// WithServerIdleTimeout is WithIdleTimeout's ServerOption counterpart.
func WithServerIdleTimeout(d time.Duration) ServerOption {
	return func(o *Options) { o.IdleTimeout = d }
}

// WithMaxChannels caps how many idle channels the broker pools. Zero
// means unbounded growth.
func WithMaxChannels(n int) DialOption { return func(o *Options) { o.MaxChannels = n } }

// WithServerMaxChannels is WithMaxChannels's ServerOption counterpart.
func WithServerMaxChannels(n int) ServerOption { return func(o *Options) { o.MaxChannels = n } }

// WithDGCInterval sets how often the session initiates a distributed
// garbage collection exchange with its peer.
func WithDGCInterval(d time.Duration) DialOption { return func(o *Options) { o.DGCInterval = d } }

// WithServerDGCInterval is WithDGCInterval's ServerOption counterpart.
func WithServerDGCInterval(d time.Duration) ServerOption {
	return func(o *Options) { o.DGCInterval = d }
}

// WithLogger sets the session's structured logger.
func WithLogger(l *zap.Logger) DialOption { return func(o *Options) { o.Logger = l } }

// WithServerLogger is WithLogger's ServerOption counterpart.
func WithServerLogger(l *zap.Logger) ServerOption { return func(o *Options) { o.Logger = l } }

// WithMetrics sets the metrics sink used for the broker's channel
// counters; the DGC clock emits no metrics.
func WithMetrics(m *metrics.Metrics) DialOption { return func(o *Options) { o.Metrics = m } }

// WithServerMetrics is WithMetrics's ServerOption counterpart.
func WithServerMetrics(m *metrics.Metrics) ServerOption { return func(o *Options) { o.Metrics = m } }

// WithTracerProvider sets the OpenTelemetry tracer provider the session
// obtains its tracer from. Stub calls are not wrapped in spans.
func WithTracerProvider(tp trace.TracerProvider) DialOption {
	return func(o *Options) { o.TracerProvider = tp }
}

// WithServerTracerProvider is WithTracerProvider's ServerOption counterpart.
func WithServerTracerProvider(tp trace.TracerProvider) ServerOption {
	return func(o *Options) { o.TracerProvider = tp }
}

// WithAsyncErrorSink sets where failures from asynchronous methods
// (which have no reply channel to travel over) are reported.
func WithAsyncErrorSink(f dispatch.AsyncErrorSink) DialOption {
	return func(o *Options) { o.AsyncErrors = f }
}

// WithServerAsyncErrorSink is WithAsyncErrorSink's ServerOption counterpart.
func WithServerAsyncErrorSink(f dispatch.AsyncErrorSink) ServerOption {
	return func(o *Options) { o.AsyncErrors = f }
}

// WithListener lets a dialing session also accept connections the peer
// opens back to it, for true duplex push of server-initiated calls
// against objects this side exported. Only meaningful with Dial.
func WithListener(ln net.Listener) DialOption { return func(o *Options) { o.Listener = ln } }

// exportedHandle pairs a dispatch.Handle with the object it dispatches
// against, so the accept loop can build a Skeleton for it on demand.
type exportedHandle struct {
	handle *dispatch.Handle
	target interface{}
}

// Session is a bidirectional RMI session over one connection-oriented
// transport: a broker of pooled invocation channels, a registry of
// exported/imported objects, and a DGC clock, all driven by a single
// accept loop that classifies each inbound channel as either a DGC
// ping or a skeleton dispatch.
type Session struct {
	broker   *broker.Broker
	registry *registry.Registry
	clock    *dgc.Clock
	opts     Options
	tracer   trace.Tracer

	mu      sync.RWMutex
	handles map[identity.ID]*exportedHandle // by exported object ID
	closed  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newSession(br *broker.Broker, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	reg := registry.New()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		broker:   br,
		registry: reg,
		opts:     opts,
		handles:  make(map[identity.ID]*exportedHandle),
		cancel:   cancel,
	}
	if opts.TracerProvider != nil {
		s.tracer = opts.TracerProvider.Tracer("github.com/luxfi/dirmi")
	}
	s.clock = &dgc.Clock{
		Registry:  reg,
		Connector: br,
		Recycler:  br,
		Interval:  opts.DGCInterval,
		Logger:    opts.Logger,
	}

	s.wg.Add(2)
	go func() { defer s.wg.Done(); s.clock.Run(ctx) }()
	go func() { defer s.wg.Done(); s.acceptLoop(ctx) }()
	return s
}

// ApplyDialOptions folds a DialOption slice into an Options value, for
// alternate-transport Dial functions (e.g. a gRPC-tunneled dialer)
// that need to build a Session with a custom broker.Dialer instead of
// the default net.Dial.
func ApplyDialOptions(opts ...DialOption) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds a Session directly from a broker.Dialer/net.Listener
// pair, for transports other than the default raw TCP one.
func New(dial broker.Dialer, listener net.Listener, opts Options) *Session {
	br := broker.New(dial, listener, broker.Options{
		Codec:       opts.Codec,
		MaxChannels: opts.MaxChannels,
		IdleTimeout: opts.IdleTimeout,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
	})
	return newSession(br, opts)
}

// Dial opens a Session to addr over TCP.
func Dial(ctx context.Context, addr string, opts ...DialOption) (*Session, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	dialer := func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("session: dial: %w", err)
		}
		return conn, nil
	}
	br := broker.New(dialer, o.Listener, broker.Options{
		Codec:       o.Codec,
		MaxChannels: o.MaxChannels,
		IdleTimeout: o.IdleTimeout,
		Logger:      o.Logger,
		Metrics:     o.Metrics,
	})
	return newSession(br, o), nil
}

// Listener accepts inbound Sessions, one per accepted connection.
type Listener struct {
	ln   net.Listener
	opts Options
}

// Listen starts accepting TCP connections at addr, each becoming an
// independent Session once accepted via Accept.
func Listen(addr string, opts ...ServerOption) (*Listener, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("session: listen: %w", err)
	}
	return &Listener{ln: ln, opts: o}, nil
}

// Accept blocks for the next inbound connection and wraps it as a
// Session symmetric to one produced by Dial: both sides can export
// and import objects to and from each other over it.
func (l *Listener) Accept(ctx context.Context) (*Session, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	single := &singleConnListener{conn: conn, accepted: make(chan struct{}), done: make(chan struct{})}
	br := broker.New(nil, single, broker.Options{
		Codec:       l.opts.Codec,
		MaxChannels: l.opts.MaxChannels,
		IdleTimeout: l.opts.IdleTimeout,
		Logger:      l.opts.Logger,
		Metrics:     l.opts.Metrics,
	})
	return newSession(br, l.opts), nil
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// singleConnListener adapts one already-accepted net.Conn into the
// net.Listener shape broker.Broker's accept loop expects, since dirmi
// sessions are symmetric: the connection that was dialed or accepted
// is itself the channel source for invocations flowing in either
// direction, not a separate listen socket per session.
type singleConnListener struct {
	conn     net.Conn
	accepted chan struct{}
	done     chan struct{}
	once     sync.Once
}

func (l *singleConnListener) Accept() (net.Conn, error) {
	first := false
	l.once.Do(func() { first = true; close(l.accepted) })
	if first {
		return l.conn, nil
	}
	<-l.done
	return nil, net.ErrClosed
}

func (l *singleConnListener) Close() error {
	err := l.conn.Close()
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return err
}

func (l *singleConnListener) Addr() net.Addr { return l.conn.LocalAddr() }

// acceptLoop routes every inbound channel to either the DGC clock or a
// skeleton dispatch, based on the reserved leading method identifier.
func (s *Session) acceptLoop(ctx context.Context) {
	for {
		ch, err := s.broker.Accept(ctx)
		if err != nil {
			return
		}
		go s.route(ctx, ch)
	}
}

// route reads the leading identifier every inbound channel carries --
// either the reserved DGC ping identifier or an exported object's
// identifier -- and dispatches the rest of the channel accordingly.
// After an object identifier, the method identifier that follows is
// read by dispatch.Skeleton.Dispatch; after the ping identifier,
// dgc.Clock.HandlePing reads the peer's live-set report.
func (s *Session) route(ctx context.Context, ch *wire.Channel) {
	in := ch.Reader()
	leading, err := in.ReadMethodID()
	if err != nil {
		s.broker.Recycle(ch, err)
		return
	}
	if leading == dgc.PingMethodID {
		s.clock.HandlePing(ch)
		return
	}

	s.mu.RLock()
	eh, ok := s.handles[leading]
	s.mu.RUnlock()
	if !ok {
		s.broker.Recycle(ch, registry.ErrNoSuchObject)
		return
	}

	skel := &dispatch.Skeleton{
		Handle: eh.handle,
		Target: eh.target,
		Support: &dispatch.SkeletonSupport{
			Recycler: s.broker,
			Errors:   s.opts.AsyncErrors,
			Logger:   s.opts.Logger,
		},
	}
	skel.Dispatch(ctx, ch)
}

// Export makes obj remotely reachable to the peer under table's
// registered type, returning the object identifier the peer will use
// to import a stub for it.
func (s *Session) Export(obj interface{}, table *dispatch.Table) *identity.Versioned {
	ver := s.registry.ExportLocal(obj, table.TypeID)
	s.mu.Lock()
	s.handles[ver.ID] = &exportedHandle{handle: dispatch.NewHandle(table), target: obj}
	s.mu.Unlock()
	return ver
}

// ExportWellKnown makes obj reachable under a caller-chosen identifier
// rather than one minted by Export, for a root object a peer needs to
// import without first learning its identifier over the wire (as
// dirmiecho's demo server does).
func (s *Session) ExportWellKnown(id identity.ID, obj interface{}, table *dispatch.Table) *identity.Versioned {
	ver := s.registry.ExportAt(id, obj, table.TypeID)
	s.mu.Lock()
	s.handles[id] = &exportedHandle{handle: dispatch.NewHandle(table), target: obj}
	s.mu.Unlock()
	return ver
}

// Import builds a Stub for the object identified by id, of the type
// described by table, sharing identity with any stub already built for
// the same id in this session. The registry's imported entry for id
// survives only as long as some caller retains the returned Stub: once
// it becomes unreachable, a finalizer drops it so the next DGC round
// stops reporting id as live to the peer (see spec's weak-reference
// imported map). Call Release explicitly instead of waiting on the
// garbage collector when the caller knows it is done with the stub.
func (s *Session) Import(id identity.ID, table *dispatch.Table, version uint32) (*Stub, error) {
	handle := dispatch.NewHandle(table)
	raw, err := s.registry.ImportRemote(id, table.TypeID, version, table.Info(), func() interface{} {
		stub := &Stub{stub: s.newStub(id, table.TypeID, handle), registry: s.registry, objID: id}
		runtime.SetFinalizer(stub, releaseStub)
		return stub
	})
	if err != nil {
		return nil, err
	}
	return raw.(*Stub), nil
}

func (s *Session) newStub(objID, typeID identity.ID, handle *dispatch.Handle) *dispatch.Stub {
	return &dispatch.Stub{
		Handle: handle,
		ObjID:  &identity.Versioned{ID: objID},
		TypeID: &identity.Versioned{ID: typeID},
		Support: &dispatch.StubSupport{
			Connector: s.broker,
			Recycler:  s.broker,
			Logger:    s.opts.Logger,
		},
		Registry: s.registry,
		Resolve: func(ref *dispatch.Ref) (interface{}, error) {
			if ref == nil {
				return nil, nil
			}
			if local, err := s.registry.LookupLocal(ref.ObjID.ID); err == nil {
				return local, nil
			}
			ri, _ := s.registry.TypeInfo(ref.TypeID.ID)
			_ = ri
			return nil, fmt.Errorf("session: cannot resolve remote reference %s without a registered dispatch table", ref.ObjID.ID)
		},
	}
}

// TypeInfo exposes the registry's cached RemoteInfo, so a caller can
// build a dispatch.Table for a type it has not seen before.
func (s *Session) TypeInfo(typeID identity.ID) (*info.RemoteInfo, bool) {
	return s.registry.TypeInfo(typeID)
}

// Close shuts down the accept loop, the DGC clock, and the broker.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	err := s.broker.Close()
	s.wg.Wait()
	return err
}

// Stub is the application-facing handle for an imported remote object.
// It embeds a *dispatch.Stub whose Call method is used through a
// generated or hand-written interface implementation.
type Stub struct {
	stub     *dispatch.Stub
	registry *registry.Registry
	objID    identity.ID
}

// Call invokes methodID against the remote object, matching
// dispatch.Stub.Call's contract.
func (s *Stub) Call(ctx context.Context, methodID identity.ID, args []interface{}, resultPtr interface{}) error {
	return s.stub.Call(ctx, methodID, args, resultPtr)
}

// Release drops this stub's entry from the importing session's
// registry immediately, so the next DGC round stops reporting objID
// as live to the peer. Safe to call more than once; safe to skip and
// let the finalizer installed by Session.Import do it instead.
func (s *Stub) Release() {
	runtime.SetFinalizer(s, nil)
	s.registry.DropImport(s.objID)
}

func releaseStub(s *Stub) {
	s.registry.DropImport(s.objID)
}
