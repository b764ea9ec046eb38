package wire

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/dirmi/codec"
)

// Channel is a full-duplex framed connection with independent read and
// write timeouts. It carries at most one invocation at a time: a
// request is written and flushed, a reply is read to completion, and
// only then is the channel released back to its broker's pool or
// discarded.
type Channel struct {
	conn  net.Conn
	codec codec.Codec

	br *bufio.Reader
	bw *bufio.Writer

	readMu  sync.Mutex
	writeMu sync.Mutex

	readTimeout  atomic.Int64 // nanoseconds; 0 means none
	writeTimeout atomic.Int64

	closed atomic.Bool
}

// NewChannel wraps conn as an InvocationChannel. c is the object codec
// used to marshal parameters, return values, and throwable chains on
// this channel; a nil c uses codec.Default.
func NewChannel(conn net.Conn, c codec.Codec) *Channel {
	if c == nil {
		c = codec.Default
	}
	return &Channel{
		conn:  conn,
		codec: c,
		br:    bufio.NewReader(conn),
		bw:    bufio.NewWriter(conn),
	}
}

// Writer returns an Output bound to this channel for one invocation's
// worth of writes. Call Flush when done to push buffered bytes onto
// the wire.
func (ch *Channel) Writer() *Output {
	ch.applyWriteTimeout()
	return NewOutput(ch.bw, ch.codec)
}

// Reader returns an Input bound to this channel for one invocation's
// worth of reads.
func (ch *Channel) Reader() *Input {
	ch.applyReadTimeout()
	return NewInput(ch.br, ch.codec)
}

// Flush pushes buffered writes onto the underlying transport.
func (ch *Channel) Flush() error {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	if ch.closed.Load() {
		return ErrClosed
	}
	if _, ok := ch.conn.(failingConn); ok {
		return ErrNotConnected
	}
	return ch.bw.Flush()
}

// SetReadTimeout sets the read deadline duration applied before every
// subsequent Reader() call. A zero duration disables the timeout.
func (ch *Channel) SetReadTimeout(d time.Duration) { ch.readTimeout.Store(int64(d)) }

// SetWriteTimeout sets the write deadline duration applied before
// every subsequent Writer() call. A zero duration disables the timeout.
func (ch *Channel) SetWriteTimeout(d time.Duration) { ch.writeTimeout.Store(int64(d)) }

// ReadTimeout returns the currently configured read timeout.
func (ch *Channel) ReadTimeout() time.Duration { return time.Duration(ch.readTimeout.Load()) }

// WriteTimeout returns the currently configured write timeout.
func (ch *Channel) WriteTimeout() time.Duration { return time.Duration(ch.writeTimeout.Load()) }

func (ch *Channel) applyReadTimeout() {
	ch.readMu.Lock()
	defer ch.readMu.Unlock()
	if d := ch.ReadTimeout(); d > 0 {
		ch.conn.SetReadDeadline(time.Now().Add(d))
	} else {
		ch.conn.SetReadDeadline(time.Time{})
	}
}

func (ch *Channel) applyWriteTimeout() {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	if d := ch.WriteTimeout(); d > 0 {
		ch.conn.SetWriteDeadline(time.Now().Add(d))
	} else {
		ch.conn.SetWriteDeadline(time.Time{})
	}
}

// Close is idempotent and releases the underlying transport
// immediately. Flush on a closed channel returns ErrClosed; a read or
// write already in flight fails with whatever error the transport
// reports for a closed connection.
func (ch *Channel) Close() error {
	if ch.closed.Swap(true) {
		return nil
	}
	return ch.conn.Close()
}

// Closed reports whether Close has been called.
func (ch *Channel) Closed() bool { return ch.closed.Load() }

// LocalAddressString and RemoteAddressString are purely informational
// and may return "" when the underlying transport has no addressing
// concept.
func (ch *Channel) LocalAddressString() string {
	if ch.conn == nil || ch.conn.LocalAddr() == nil {
		return ""
	}
	return ch.conn.LocalAddr().String()
}

func (ch *Channel) RemoteAddressString() string {
	if ch.conn == nil || ch.conn.RemoteAddr() == nil {
		return ""
	}
	return ch.conn.RemoteAddr().String()
}
