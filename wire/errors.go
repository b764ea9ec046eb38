// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire implements the framed, full-duplex InvocationChannel and
// the primitive/string/var-uint/object codecs that ride on top of it.
// A channel carries exactly one invocation at a time: a request written
// by one side, a reply read back by the same side, after which the
// channel is either recycled by the broker or discarded.
package wire

import "errors"

var (
	// ErrClosed is returned by Flush on a channel that has been
	// closed. Reads and writes in flight when the channel closes fail
	// with the transport's own error instead.
	ErrClosed = errors.New("wire: channel closed")

	// ErrNotConnected is returned by every read, write and Flush on the
	// Unconnected channel variant.
	ErrNotConnected = errors.New("wire: not connected")

	// ErrTimeout names the read/write deadline failure. Channel does
	// not return it: an exceeded deadline surfaces as the transport's
	// own error (os.ErrDeadlineExceeded for a net.Conn).
	ErrTimeout = errors.New("wire: timeout")

	// ErrStreamCorrupted is returned when a multi-byte var-uint or
	// compact-character encoding is truncated, and (wrapped) by ReadOk
	// for an unknown reply status byte. An illegal leading byte in a
	// compact string character is reported as ErrMalformed instead.
	ErrStreamCorrupted = errors.New("wire: stream corrupted")

	// ErrMalformed is returned by the compact string reader when it
	// encounters an illegal leading byte pattern (111xxxxx).
	ErrMalformed = errors.New("wire: malformed string encoding")
)
