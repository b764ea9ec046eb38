// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package codec provides the pluggable object marshaller the invocation
// protocol delegates to. The core does not pick a serialization format
// for user objects; it only mandates how a Codec is composed with the
// invocation framing (see wire.Output.WriteObject / WriteUnsharedObject).
package codec

// Codec encodes and decodes user objects that travel as remote-call
// parameters, return values, or throwable payloads.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// Default is used whenever a session is not configured with an explicit
// Codec.
var Default Codec = JSON{}
