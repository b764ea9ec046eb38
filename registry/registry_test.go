package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/dirmi/identity"
	"github.com/luxfi/dirmi/info"
)

var typeA = identity.ID(1)
var typeB = identity.ID(2)

func TestExportLocalReturnsSameIdentityForSameObject(t *testing.T) {
	r := New()
	obj := &struct{}{}
	v1 := r.ExportLocal(obj, typeA)
	v2 := r.ExportLocal(obj, typeA)
	require.Equal(t, v1.ID, v2.ID)
}

func TestExportLocalDistinguishesByType(t *testing.T) {
	r := New()
	obj := &struct{}{}
	v1 := r.ExportLocal(obj, typeA)
	v2 := r.ExportLocal(obj, typeB)
	require.NotEqual(t, v1.ID, v2.ID)
}

func TestLookupLocalUnknownReturnsErrNoSuchObject(t *testing.T) {
	r := New()
	_, err := r.LookupLocal(identity.New())
	require.ErrorIs(t, err, ErrNoSuchObject)
}

func TestExportAtUsesCallerChosenIdentifier(t *testing.T) {
	r := New()
	id := identity.ID(0xf00d)
	obj := &struct{}{}
	v := r.ExportAt(id, obj, typeA)
	require.Equal(t, id, v.ID)

	got, err := r.LookupLocal(id)
	require.NoError(t, err)
	require.Same(t, obj, got)
}

func TestExportAtIsIdempotent(t *testing.T) {
	r := New()
	id := identity.ID(0xf00d)
	obj := &struct{}{}
	v1 := r.ExportAt(id, obj, typeA)
	v2 := r.ExportAt(id, &struct{}{}, typeA)
	require.Same(t, v1, v2)
}

func TestInfoPendingFiresOnceThenFalse(t *testing.T) {
	r := New()
	v := r.ExportLocal(&struct{}{}, typeA)
	require.True(t, r.InfoPending(v.ID))
	require.False(t, r.InfoPending(v.ID))
}

func TestInfoPendingUnknownIDIsFalse(t *testing.T) {
	r := New()
	require.False(t, r.InfoPending(identity.New()))
}

func TestImportRemoteCachesStubByID(t *testing.T) {
	r := New()
	id := identity.New()
	calls := 0
	makeStub := func() interface{} {
		calls++
		return "stub"
	}

	s1, err := r.ImportRemote(id, typeA, 1, nil, makeStub)
	require.NoError(t, err)
	s2, err := r.ImportRemote(id, typeA, 2, nil, makeStub)
	require.NoError(t, err)

	require.Equal(t, s1, s2)
	require.Equal(t, 1, calls)
}

func TestImportRemoteCachesTypeInfoFirstWriterWins(t *testing.T) {
	r := New()
	id1, id2 := identity.New(), identity.New()
	first := &info.RemoteInfo{TypeID: typeA, Name: "first"}
	second := &info.RemoteInfo{TypeID: typeA, Name: "second"}

	_, err := r.ImportRemote(id1, typeA, 0, first, func() interface{} { return nil })
	require.NoError(t, err)
	_, err = r.ImportRemote(id2, typeA, 0, second, func() interface{} { return nil })
	require.NoError(t, err)

	cached, ok := r.TypeInfo(typeA)
	require.True(t, ok)
	require.Equal(t, "first", cached.Name)
}

func TestDropExportRequiresMatchingVersion(t *testing.T) {
	r := New()
	v := r.ExportLocal(&struct{}{}, typeA)
	v.NextLocalVersion() // simulate a re-export bump beyond what the peer saw

	r.DropExport(v.ID, 0) // stale notice: acknowledges an old version
	_, err := r.LookupLocal(v.ID)
	require.NoError(t, err, "stale drop notice must not remove a re-exported object")
}

func TestDropExportRemovesWhenAcknowledgedVersionIsCurrent(t *testing.T) {
	r := New()
	v := r.ExportLocal(&struct{}{}, typeA)
	r.DropExport(v.ID, v.LocalVersion())

	_, err := r.LookupLocal(v.ID)
	require.ErrorIs(t, err, ErrNoSuchObject)
}


func TestLiveExportsAndImportsReflectCurrentState(t *testing.T) {
	r := New()
	v := r.ExportLocal(&struct{}{}, typeA)
	id := identity.New()
	_, err := r.ImportRemote(id, typeA, 3, nil, func() interface{} { return "s" })
	require.NoError(t, err)

	require.Contains(t, r.LiveExports(), v.ID)

	live := r.LiveImports()
	require.Len(t, live, 1)
	require.Equal(t, id, live[0].ID)
	require.Equal(t, uint32(3), live[0].Version)
}

func TestDropImportRemovesFromLiveImports(t *testing.T) {
	r := New()
	id := identity.New()
	_, err := r.ImportRemote(id, typeA, 0, nil, func() interface{} { return "s" })
	require.NoError(t, err)

	r.DropImport(id)
	require.Empty(t, r.LiveImports())
}

func TestRefreshUpdatesVersionWithoutDeleting(t *testing.T) {
	r := New()
	v := r.ExportLocal(&struct{}{}, typeA)
	r.Refresh(v.ID, 0)

	_, err := r.LookupLocal(v.ID)
	require.NoError(t, err)
	require.Equal(t, uint32(0), v.RemoteVersion())
}
