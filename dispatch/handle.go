package dispatch

import "sync/atomic"

// Handle is a reference-counted holder for a *Table, shared by every
// stub and skeleton instance of one remote type within a session.
// This is the dispatch-table realization of the original's "factory
// strong-reference" pattern (SPEC_FULL.md §4.4): as long as any stub or
// skeleton retains a Handle, the underlying Table -- and therefore the
// type's identifier mappings -- stays alive, without needing a
// class-unload-driven registry entry of its own.
type Handle struct {
	table *Table
	refs  atomic.Int32
}

// NewHandle wraps table in a Handle starting at one reference.
func NewHandle(table *Table) *Handle {
	h := &Handle{table: table}
	h.refs.Store(1)
	return h
}

// Table returns the underlying dispatch table.
func (h *Handle) Table() *Table { return h.table }

// Retain increments the reference count and returns h, so callers can
// write `stub.handle = parent.Retain()`.
func (h *Handle) Retain() *Handle {
	h.refs.Add(1)
	return h
}

// Release decrements the reference count. It returns the count after
// release; callers that manage a side table keyed by type may use a
// zero result to prune it, though Go's own GC reclaims the Table
// itself regardless once nothing retains the Handle.
func (h *Handle) Release() int32 {
	return h.refs.Add(-1)
}
