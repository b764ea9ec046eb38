package wire

import "github.com/luxfi/dirmi/identity"

// WriteVersioned writes a VersionedIdentifier as its 8-byte Identifier
// followed by a 4-byte localVersion, bumping that version as a side
// effect (this is a write of v, after all).
func (o *Output) WriteVersioned(v *identity.Versioned) error {
	return v.Write(o.w)
}

// ReadVersioned reads a VersionedIdentifier previously written by
// WriteVersioned, returning a fresh local Versioned carrying only the
// peer's Identifier, plus the localVersion the peer reported (the
// caller folds that into whatever remoteVersion bookkeeping applies).
func (in *Input) ReadVersioned() (*identity.Versioned, uint32, error) {
	return identity.ReadVersioned(in.r)
}
