package dispatch

import (
	"context"
	"errors"

	"github.com/luxfi/dirmi/identity"
	"github.com/luxfi/dirmi/info"
	"github.com/luxfi/dirmi/wire"
)

// ErrNoSuchMethod is replied NOT_OK when a skeleton receives a method
// ordinal its dispatch table does not recognize -- typically because
// the calling stub is newer than the local skeleton's interface.
var ErrNoSuchMethod = errors.New("dispatch: no such method")

// MethodFunc invokes one method of a local target against a request
// already positioned at the first parameter byte, writing the success
// reply (status and return value) to out. On failure it returns the
// error without writing; Skeleton.Dispatch then writes the NOT_OK
// reply. It is the skeleton side's
// per-method entry; the dispatch table built at registration time is
// this realization's replacement for the original's generated
// skeleton class.
type MethodFunc func(ctx context.Context, target interface{}, in *wire.Input, out *wire.Output) error

// MethodEntry is one row of a Table: the dispatch metadata info.RemoteMethod
// carries over the wire, plus the local Invoke closure that runs it.
type MethodEntry struct {
	ID     identity.ID
	Name   string
	Params []info.Param
	Return *info.Param // nil for void
	Async  bool
	Pipe   bool

	// FailureException and FailureDeclared mirror info.RemoteMethod,
	// describing what a NOT_OK reply from this method means.
	FailureException string
	FailureDeclared  bool

	Invoke MethodFunc
}

// Table is the per-remote-type dispatch table: a set of MethodEntry
// values indexed by their stable method Identifier, the ordinal used
// on the wire. It is built once when a remote interface is registered
// and shared thereafter by every stub and skeleton of that type via a
// Handle.
type Table struct {
	TypeID  identity.ID
	Name    string
	entries map[identity.ID]*MethodEntry
	order   []*MethodEntry
}

// NewTable creates an empty dispatch table for the remote interface
// named name under typeID.
func NewTable(typeID identity.ID, name string) *Table {
	return &Table{TypeID: typeID, Name: name, entries: make(map[identity.ID]*MethodEntry)}
}

// Add installs a method entry. Method identifiers must be unique
// within a table and stable for the lifetime of the session, since
// they are transmitted as RemoteMethod.ID and used as the wire
// ordinal.
func (t *Table) Add(e MethodEntry) {
	t.entries[e.ID] = &e
	t.order = append(t.order, &e)
}

// Lookup returns the entry for a method ordinal read off the wire.
func (t *Table) Lookup(id identity.ID) (*MethodEntry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// Info builds the RemoteInfo describing this table, suitable for
// sending to a peer encountering the type for the first time.
func (t *Table) Info() *info.RemoteInfo {
	ri := &info.RemoteInfo{TypeID: t.TypeID, Name: t.Name}
	for _, e := range t.order {
		ri.Methods = append(ri.Methods, info.RemoteMethod{
			Name:             e.Name,
			ID:               e.ID,
			Params:           e.Params,
			Return:           e.Return,
			Asynchronous:     e.Async,
			Pipe:             e.Pipe,
			FailureException: e.FailureException,
			FailureDeclared:  e.FailureDeclared,
		})
	}
	return ri
}
