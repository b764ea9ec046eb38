// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package identity provides the cryptographically-unguessable stable
// identifiers used to name exported remote objects, remote types, and
// remote methods across a session.
package identity

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// ID is a 64-bit opaque session-stable identity. Two IDs are equal iff
// their underlying values are equal.
type ID uint64

// New mints a cryptographically-strong random ID. It never returns the
// zero value, which is reserved to mean "absent" on the wire.
func New() ID {
	var buf [8]byte
	for {
		if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
			// crypto/rand is not expected to fail on supported platforms;
			// a failure here indicates a broken entropy source.
			panic(fmt.Errorf("identity: read random bytes: %w", err))
		}
		id := ID(binary.BigEndian.Uint64(buf[:]))
		if id != 0 {
			return id
		}
	}
}

// String renders the ID in hex, matching how the wire form is usually
// logged.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// Write encodes id as 8 big-endian bytes.
func (id ID) Write(w io.Writer) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	_, err := w.Write(buf[:])
	return err
}

// Read decodes an ID from 8 big-endian bytes.
func Read(r io.Reader) (ID, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return ID(binary.BigEndian.Uint64(buf[:])), nil
}
