// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry holds the per-session identifier <-> object/stub/
// type mappings that give remote objects a distributed identity: the
// exported map (local objects offered to the peer), the imported map
// (stubs standing in for the peer's objects), and the type cache
// (RemoteInfo already exchanged for a given type).
package registry

import (
	"errors"
	"sync"

	"github.com/luxfi/dirmi/identity"
	"github.com/luxfi/dirmi/info"
)

// ErrNoSuchObject is returned by LookupLocal when the identifier names
// no object exported in this session.
var ErrNoSuchObject = errors.New("registry: no such object")

type exportedEntry struct {
	obj  interface{}
	typ  identity.ID
	ver  *identity.Versioned
	// infoSent tracks whether the peer has already been sent
	// RemoteInfo for typ, so InfoPending can report it as already sent
	// for later exports of the same type (see MarshalledRemote in
	// SPEC_FULL.md's supplemented-features section).
	infoSent bool
}

type importedEntry struct {
	typ         identity.ID
	stub        interface{}
	lastVersion uint32
}

// Live is one identifier and the version last observed for it,
// reported during a DGC round.
type Live struct {
	ID      identity.ID
	Version uint32
}

// Registry is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	exported map[identity.ID]*exportedEntry
	imported map[identity.ID]*importedEntry
	typeCache map[identity.ID]*info.RemoteInfo
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		exported:  make(map[identity.ID]*exportedEntry),
		imported:  make(map[identity.ID]*importedEntry),
		typeCache: make(map[identity.ID]*info.RemoteInfo),
	}
}

// ExportLocal registers obj as remotely reachable under typeID,
// returning its (possibly pre-existing) VersionedIdentifier. Exporting
// the same obj twice under the same typeID returns the same identifier
// without touching its versions; the local version advances each time
// the identifier is written to the wire (identity.Versioned.Write).
func (r *Registry) ExportLocal(obj interface{}, typeID identity.ID) *identity.Versioned {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.exported {
		if e.obj == obj && e.typ == typeID {
			return e.ver
		}
	}

	ver := identity.NewVersioned()
	r.exported[ver.ID] = &exportedEntry{obj: obj, typ: typeID, ver: ver}
	return ver
}

// ExportAt registers obj under a caller-chosen identifier rather than
// one minted by ExportLocal, for well-known root objects a peer needs
// to import without first receiving the identifier over the wire.
func (r *Registry) ExportAt(id identity.ID, obj interface{}, typeID identity.ID) *identity.Versioned {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.exported[id]; ok {
		return e.ver
	}
	ver := &identity.Versioned{ID: id}
	r.exported[id] = &exportedEntry{obj: obj, typ: typeID, ver: ver}
	return ver
}

// LookupLocal returns the object exported under id, or ErrNoSuchObject.
func (r *Registry) LookupLocal(id identity.ID) (interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.exported[id]
	if !ok {
		return nil, ErrNoSuchObject
	}
	return e.obj, nil
}

// InfoPending reports whether RemoteInfo for id's declared type still
// needs to be sent to the peer, and marks it sent. Used by the
// MarshalledRemote writer to send RemoteInfo only on first encounter
// of a type within this session (as long as some export of that type
// remains registered).
func (r *Registry) InfoPending(id identity.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exported[id]
	if !ok || e.infoSent {
		return false
	}
	e.infoSent = true
	for otherID, other := range r.exported {
		if otherID != id && other.typ == e.typ && other.infoSent {
			return false
		}
	}
	return true
}

// ImportRemote returns the existing stub for id if one has already
// been built in this session, so two stubs for the same remote object
// share identity. If info is non-nil it is folded into the type
// cache; makeStub is called at most once per id, and its result is
// cached and returned on every subsequent ImportRemote for the same
// id, whether or not a fresher RemoteInfo has since arrived.
func (r *Registry) ImportRemote(
	id identity.ID,
	typeID identity.ID,
	version uint32,
	remoteInfo *info.RemoteInfo,
	makeStub func() interface{},
) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if remoteInfo != nil {
		// First writer wins: concurrent first-encounter of the same
		// type keeps whichever RemoteInfo was cached first.
		if _, ok := r.typeCache[typeID]; !ok {
			r.typeCache[typeID] = remoteInfo
		}
	}

	if e, ok := r.imported[id]; ok {
		if version > e.lastVersion {
			e.lastVersion = version
		}
		return e.stub, nil
	}

	stub := makeStub()
	r.imported[id] = &importedEntry{typ: typeID, stub: stub, lastVersion: version}
	return stub, nil
}

// TypeInfo returns the cached RemoteInfo for typeID, if any.
func (r *Registry) TypeInfo(typeID identity.ID) (*info.RemoteInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ri, ok := r.typeCache[typeID]
	return ri, ok
}

// DropExport processes a DGC removal notice: observedRemoteVersion is
// folded into the identifier's acknowledged remote version (which never
// decreases), and id is removed from the exported map only once that
// acknowledged version is at least the identifier's current local
// version, so a notice describing a stale, already superseded
// incarnation of id is safely ignored.
func (r *Registry) DropExport(id identity.ID, observedRemoteVersion uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exported[id]
	if !ok {
		return
	}
	e.ver.UpdateRemoteVersion(observedRemoteVersion)
	if e.ver.Stale() {
		delete(r.exported, id)
	}
}

// Refresh folds an observed version from a peer's live-set report into
// the bookkeeping for an exported identifier, without considering it
// for deletion. Pruning only happens once the identifier drops out of
// a report entirely; see DropExport.
func (r *Registry) Refresh(id identity.ID, observedVersion uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.exported[id]; ok {
		e.ver.UpdateRemoteVersion(observedVersion)
	}
}

// LiveExports returns the identifiers currently exported, for DGC's
// periodic live-set bookkeeping on the exporting side.
func (r *Registry) LiveExports() []identity.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]identity.ID, 0, len(r.exported))
	for id := range r.exported {
		ids = append(ids, id)
	}
	return ids
}

// LiveImports returns the identifiers currently imported, with the
// version last observed for each, for DGC's periodic live-set report
// to the peer.
func (r *Registry) LiveImports() []Live {
	r.mu.RLock()
	defer r.mu.RUnlock()
	live := make([]Live, 0, len(r.imported))
	for id, e := range r.imported {
		live = append(live, Live{ID: id, Version: e.lastVersion})
	}
	return live
}

// DropImport removes id from the imported map, e.g. once the local
// stub becomes unreachable and DGC decides to stop reporting it as
// live to the peer.
func (r *Registry) DropImport(id identity.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.imported, id)
}
