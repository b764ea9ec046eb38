package identity

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNeverReturnsZero(t *testing.T) {
	for i := 0; i < 1000; i++ {
		require.NotEqual(t, ID(0), New())
	}
}

func TestIDWriteReadRoundTrip(t *testing.T) {
	id := New()
	var buf bytes.Buffer
	require.NoError(t, id.Write(&buf))
	got, err := Read(&buf)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestVersionedStaleness(t *testing.T) {
	v := NewVersioned()
	require.Equal(t, uint32(0), v.LocalVersion())

	var buf bytes.Buffer
	require.NoError(t, v.Write(&buf))
	require.Equal(t, uint32(1), v.LocalVersion())
	require.False(t, v.Stale())

	v.UpdateRemoteVersion(1)
	require.True(t, v.Stale())

	// A re-export bumps localVersion again, so a drop notice
	// acknowledging the old version can no longer declare it stale.
	var buf2 bytes.Buffer
	require.NoError(t, v.Write(&buf2))
	require.False(t, v.Stale())
}

func TestUpdateRemoteVersionIsMonotonic(t *testing.T) {
	v := NewVersioned()
	v.UpdateRemoteVersion(5)
	v.UpdateRemoteVersion(2)
	require.Equal(t, uint32(5), v.RemoteVersion())
}

func TestReadVersionedDecodesLocalVersionAsObserved(t *testing.T) {
	v := NewVersioned()
	var buf bytes.Buffer
	require.NoError(t, v.Write(&buf))

	peerView, observed, err := ReadVersioned(&buf)
	require.NoError(t, err)
	require.Equal(t, v.ID, peerView.ID)
	require.Equal(t, uint32(1), observed)
}
