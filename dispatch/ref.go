// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dispatch realizes the stub/skeleton half of the invocation
// protocol: dispatch tables built once per remote interface at
// registration time (an array of function entries indexed by method
// ordinal, standing in for the generated stub/skeleton classes of the
// original), the per-call StubSupport/SkeletonSupport services, and
// the parameter-kind-driven marshalling switch.
package dispatch

import (
	"github.com/luxfi/dirmi/identity"
	"github.com/luxfi/dirmi/info"
	"github.com/luxfi/dirmi/wire"
)

// Ref is the wire carrier for a remote reference: MarshalledRemote in
// SPEC_FULL.md's terms. Write sends Info when it is non-nil and a null
// object otherwise; whoever builds the Ref decides (for example with
// registry.Registry.InfoPending) whether the peer still needs the
// type's RemoteInfo.
type Ref struct {
	ObjID  *identity.Versioned
	TypeID *identity.Versioned
	Info   *info.RemoteInfo
}

// Write encodes the reference: VersionedIdentifier(objID),
// VersionedIdentifier(typeID), then an optional RemoteInfo object.
func (r *Ref) Write(out *wire.Output) error {
	if err := out.WriteVersioned(r.ObjID); err != nil {
		return err
	}
	if err := out.WriteVersioned(r.TypeID); err != nil {
		return err
	}
	// Pass an untyped nil through the interface{} boundary when Info
	// is absent, so WriteObject's nil check actually fires instead of
	// tripping over a typed-nil-pointer-in-interface.
	var payload interface{}
	if r.Info != nil {
		payload = r.Info
	}
	return out.WriteObject(payload)
}

// ReadRef decodes a reference written by Write. objVersion and
// typeVersion are the peer-reported localVersions, for the caller to
// fold into its own remote-version bookkeeping.
func ReadRef(in *wire.Input) (ref *Ref, objVersion, typeVersion uint32, err error) {
	objID, objVer, err := in.ReadVersioned()
	if err != nil {
		return nil, 0, 0, err
	}
	typeID, typeVer, err := in.ReadVersioned()
	if err != nil {
		return nil, 0, 0, err
	}
	var ri *info.RemoteInfo
	if err := in.ReadObject(&ri); err != nil {
		return nil, 0, 0, err
	}
	return &Ref{ObjID: objID, TypeID: typeID, Info: ri}, objVer, typeVer, nil
}
