package identity

import (
	"io"
	"sync"
)

// Versioned is an Identifier plus the two monotonic counters distributed
// garbage collection needs to tell a fresh reference from a stale one
// across re-exports.
//
// localVersion increases by one every time the minting side re-exports
// this identifier. remoteVersion records the highest version the peer
// has acknowledged seeing. A reference is stale once the peer has
// acknowledged a remoteVersion >= the current localVersion and nothing
// else retains it locally.
type Versioned struct {
	ID ID

	mu            sync.Mutex
	localVersion  uint32
	remoteVersion uint32
}

// NewVersioned mints a fresh Versioned identity at version 0.
func NewVersioned() *Versioned {
	return &Versioned{ID: New()}
}

// NextLocalVersion bumps and returns the local version. Called whenever
// this identifier is (re-)exported to a peer.
func (v *Versioned) NextLocalVersion() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.localVersion++
	return v.localVersion
}

// LocalVersion returns the current local version without mutating it.
func (v *Versioned) LocalVersion() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.localVersion
}

// UpdateRemoteVersion records the highest version the peer is known to
// have observed. Updates are monotonic: a smaller observed version never
// regresses the stored one (messages may arrive out of order).
func (v *Versioned) UpdateRemoteVersion(observed uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if observed > v.remoteVersion {
		v.remoteVersion = observed
	}
}

// RemoteVersion returns the highest version the peer has acknowledged.
func (v *Versioned) RemoteVersion() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.remoteVersion
}

// Stale reports whether the peer has acknowledged a version at least as
// new as the current local version, i.e. whether a drop notice for this
// identifier's current incarnation would not be stale itself.
func (v *Versioned) Stale() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.remoteVersion >= v.localVersion
}

// Write encodes the identifier followed by the current local version,
// bumping it first. This matches the wire shape of MarshalledRemote: an
// Identifier plus the localVersion observed at the time of write.
func (v *Versioned) Write(w io.Writer) error {
	if err := v.ID.Write(w); err != nil {
		return err
	}
	ver := v.NextLocalVersion()
	return writeUint32(w, ver)
}

// ReadVersioned decodes an Identifier plus the peer's localVersion. It
// returns a fresh Versioned carrying only the Identifier, with the
// peer's version as a separate result for the caller to fold into its
// own remote-version bookkeeping.
func ReadVersioned(r io.Reader) (*Versioned, uint32, error) {
	id, err := Read(r)
	if err != nil {
		return nil, 0, err
	}
	ver, err := readUint32(r)
	if err != nil {
		return nil, 0, err
	}
	return &Versioned{ID: id}, ver, nil
}

func writeUint32(w io.Writer, v uint32) error {
	buf := [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), nil
}
