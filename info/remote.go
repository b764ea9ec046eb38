// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package info describes the reflected type metadata exchanged for a
// remote interface the first time either side encounters it: its
// method list, stable method identifiers, and per-method marshalling
// flags.
package info

import "github.com/luxfi/dirmi/identity"

// PrimitiveKind tags a parameter's wire representation.
type PrimitiveKind int

const (
	KindObject PrimitiveKind = iota
	KindByte
	KindBoolean
	KindChar
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
)

// Param describes one declared parameter, return type, or exception
// type of a RemoteMethod.
type Param struct {
	// TypeName is the declared Go type name, used only for
	// diagnostics and failure reconstruction.
	TypeName string

	// Unshared forces single-use marshalling: the value is written
	// with WriteUnsharedObject rather than WriteObject, disabling
	// identity preservation within the reply's sharing scope.
	Unshared bool

	// Remote marshals the value as a MarshalledRemote reference
	// rather than by value.
	Remote bool

	Kind PrimitiveKind
}

// RemoteMethod describes one method of a remote interface.
type RemoteMethod struct {
	// Name is the method's Go name, used for diagnostics; the wire
	// ordinal is ID, not Name.
	Name string

	// ID is this method's stable identifier. It is part of the
	// transmitted RemoteInfo and is used as the wire ordinal for the
	// lifetime of the session.
	ID identity.ID

	Return *Param // nil for void
	Params []Param
	Errors []Param

	// Asynchronous methods return to the caller as soon as the
	// request has been written and flushed; the callee runs them
	// without sending a reply.
	Asynchronous bool

	// Pipe methods keep the invocation channel after dispatch instead
	// of recycling it: Skeleton.Dispatch leaves the channel to the
	// method's Invoke, which owns it from then on, and writes no reply.
	// Stub.Call does not special-case Pipe methods; it reads a reply
	// and recycles the channel as for any synchronous method.
	Pipe bool

	// FailureException names the exception type this method declares
	// it may fail with remotely.
	FailureException string

	// FailureDeclared reports whether FailureException was an
	// explicit declaration on the interface, as opposed to the
	// implicit default remote-failure type. Reconstruction refuses to
	// surface an undeclared failure as anything but the generic
	// failure.RemoteError.
	FailureDeclared bool
}

// RemoteInfo is the metadata transmitted for a remote-capable
// interface the first time either side marshals a reference to an
// object of that type.
type RemoteInfo struct {
	TypeID  identity.ID
	Name    string
	Methods []RemoteMethod
}

// ByID looks up a method by its wire ordinal.
func (ri *RemoteInfo) ByID(id identity.ID) (*RemoteMethod, bool) {
	for i := range ri.Methods {
		if ri.Methods[i].ID == id {
			return &ri.Methods[i], true
		}
	}
	return nil, false
}
