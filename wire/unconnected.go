package wire

import (
	"net"
	"time"
)

// failingConn is a net.Conn stand-in whose every operation fails with
// ErrNotConnected. It backs the Unconnected channel variant (see
// design note in SPEC_FULL.md: modelled as an enum variant of the
// channel type, not a shared singleton, per the original's
// io.Unconnection).
type failingConn struct{}

func (failingConn) Read([]byte) (int, error)        { return 0, ErrNotConnected }
func (failingConn) Write([]byte) (int, error)       { return 0, ErrNotConnected }
func (failingConn) Close() error                    { return nil }
func (failingConn) LocalAddr() net.Addr             { return nil }
func (failingConn) RemoteAddr() net.Addr            { return nil }
func (failingConn) SetDeadline(time.Time) error     { return nil }
func (failingConn) SetReadDeadline(time.Time) error { return nil }
func (failingConn) SetWriteDeadline(time.Time) error { return nil }

// Unconnected returns a fresh Channel on which every read, write and
// Flush fails with ErrNotConnected (Close succeeds). Each call returns
// a distinct instance rather
// than a shared singleton, so per-channel state (timeouts, closed
// flag) never leaks between unrelated placeholder uses.
func Unconnected() *Channel {
	return NewChannel(failingConn{}, nil)
}
