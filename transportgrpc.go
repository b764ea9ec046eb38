//go:build grpc

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dirmi

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/luxfi/dirmi/session"
)

// rawCodec passes gRPC message bytes through unchanged, letting one
// wire.Channel frame ride inside a gRPC stream without a .proto
// schema -- generalized from the teacher's dialGRPC, which invoked a
// method by name against an ordinary protobuf-typed service. dirmi has
// no fixed request/reply shape to describe in a .proto file, so the
// gRPC transport here carries raw invocation bytes instead.
type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("dirmi: grpc transport expects *[]byte, got %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("dirmi: grpc transport expects *[]byte, got %T", v)
	}
	*b = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return "dirmi-raw" }

func init() {
	encoding.RegisterCodec(rawCodec{})
}

const grpcStreamMethod = "/dirmi.Transport/Stream"

// grpcServiceDesc describes the one bidirectional-streaming method the
// gRPC transport needs: a tunnel for raw invocation-channel bytes.
var grpcServiceDesc = grpc.ServiceDesc{
	ServiceName: "dirmi.Transport",
	HandlerType: (*any)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Stream",
		Handler:       grpcStreamHandler,
		ServerStreams: true,
		ClientStreams: true,
	}},
	Metadata: "dirmi/transportgrpc.go",
}

func grpcStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	handler := srv.(func(net.Conn))
	conn := newGRPCStreamConn(stream)
	handler(conn)
	return nil
}

// DialGRPC opens a dirmi Session whose invocation channels are each a
// gRPC bidirectional stream on one grpc.ClientConn, instead of a raw
// net.Conn per channel.
func DialGRPC(ctx context.Context, addr string, opts ...DialOption) (*Session, error) {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rawCodec{}.Name())))
	if err != nil {
		return nil, fmt.Errorf("dirmi: grpc dial: %w", err)
	}
	dialer := func(ctx context.Context) (net.Conn, error) {
		stream, err := cc.NewStream(ctx, &grpcServiceDesc.Streams[0], grpcStreamMethod,
			grpc.CallContentSubtype(rawCodec{}.Name()))
		if err != nil {
			return nil, fmt.Errorf("dirmi: grpc new stream: %w", err)
		}
		return newGRPCStreamConn(stream), nil
	}
	return session.New(dialer, nil, session.ApplyDialOptions(opts...)), nil
}

// ServeGRPC registers the dirmi transport service on srv and returns a
// channel of accepted net.Conn wrappers, one per stream a peer opens;
// feed it to session.Listen-equivalent plumbing via WithListener.
func ServeGRPC(srv *grpc.Server) <-chan net.Conn {
	conns := make(chan net.Conn, 8)
	desc := grpcServiceDesc
	desc.Streams[0].Handler = func(_ interface{}, stream grpc.ServerStream) error {
		conns <- newGRPCStreamConn(stream)
		return nil
	}
	srv.RegisterService(&desc, struct{}{})
	return conns
}

// grpcStreamConn adapts a grpc.Stream carrying raw []byte frames into
// a net.Conn, so wire.Channel can frame an invocation over it exactly
// as it would over a TCP socket.
type grpcStreamConn struct {
	stream grpc.Stream
	buf    []byte
}

func newGRPCStreamConn(stream grpc.Stream) *grpcStreamConn { return &grpcStreamConn{stream: stream} }

func (c *grpcStreamConn) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		var frame []byte
		if err := c.stream.RecvMsg(&frame); err != nil {
			if err == io.EOF {
				return 0, io.EOF
			}
			return 0, err
		}
		c.buf = frame
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

func (c *grpcStreamConn) Write(p []byte) (int, error) {
	frame := append([]byte(nil), p...)
	if err := c.stream.SendMsg(&frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *grpcStreamConn) Close() error {
	if cs, ok := c.stream.(grpc.ClientStream); ok {
		return cs.CloseSend()
	}
	return nil
}

func (c *grpcStreamConn) LocalAddr() net.Addr             { return grpcAddr{} }
func (c *grpcStreamConn) RemoteAddr() net.Addr            { return grpcAddr{} }
func (c *grpcStreamConn) SetDeadline(t time.Time) error      { return nil }
func (c *grpcStreamConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *grpcStreamConn) SetWriteDeadline(t time.Time) error { return nil }

type grpcAddr struct{}

func (grpcAddr) Network() string { return "grpc" }
func (grpcAddr) String() string  { return "grpc" }
