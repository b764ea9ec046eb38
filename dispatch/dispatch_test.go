package dispatch

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/dirmi/identity"
	"github.com/luxfi/dirmi/info"
	"github.com/luxfi/dirmi/wire"
)

// fixedConnector hands out one already-established channel, mirroring
// how a broker with exactly one idle channel would behave for Acquire.
type fixedConnector struct{ ch *wire.Channel }

func (f fixedConnector) Connect(ctx context.Context) (*wire.Channel, error) { return f.ch, nil }

type noopRecycler struct{}

func (noopRecycler) Recycle(ch *wire.Channel, err error) {}

var errBoom = errors.New("boom")

func echoTable() *Table {
	tbl := NewTable(identity.ID(1), "Echo")
	tbl.Add(MethodEntry{
		ID:     identity.ID(10),
		Name:   "Echo",
		Params: []info.Param{{Kind: info.KindString}},
		Return: &info.Param{Kind: info.KindString},
		Invoke: func(ctx context.Context, target interface{}, in *wire.Input, out *wire.Output) error {
			arg, err := UnmarshalParam(in, info.Param{Kind: info.KindString}, nil)
			if err != nil {
				return err
			}
			s, _ := arg.(string)
			if s == "fail" {
				return errBoom
			}
			if err := out.WriteOk(true); err != nil {
				return err
			}
			return MarshalParam(out, info.Param{Kind: info.KindString}, "echo:"+s)
		},
	})
	tbl.Add(MethodEntry{
		ID:     identity.ID(11),
		Name:   "Notify",
		Params: []info.Param{{Kind: info.KindString}},
		Async:  true,
		Invoke: func(ctx context.Context, target interface{}, in *wire.Input, out *wire.Output) error {
			_, err := UnmarshalParam(in, info.Param{Kind: info.KindString}, nil)
			return err
		},
	})
	return tbl
}

// serveOne mimics the one piece of session.route this package doesn't
// own: consuming the leading object identifier before handing the
// channel to a Skeleton, which expects the method identifier next.
func serveOne(t *testing.T, serverCh *wire.Channel, handle *Handle) {
	t.Helper()
	in := serverCh.Reader()
	_, err := in.ReadMethodID()
	require.NoError(t, err)

	skel := &Skeleton{
		Handle:  handle,
		Target:  nil,
		Support: &SkeletonSupport{Recycler: noopRecycler{}},
	}
	skel.Dispatch(context.Background(), serverCh)
}

func newPipeChannels() (client, server *wire.Channel) {
	c, s := net.Pipe()
	return wire.NewChannel(c, nil), wire.NewChannel(s, nil)
}

func TestStubCallRoundTripsReturnValue(t *testing.T) {
	clientConn, serverConn := newPipeChannels()
	handle := NewHandle(echoTable())

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveOne(t, serverConn, handle)
	}()

	stub := &Stub{
		Handle:  handle,
		ObjID:   identity.NewVersioned(),
		Support: &StubSupport{Connector: fixedConnector{clientConn}, Recycler: noopRecycler{}},
	}

	var reply string
	err := stub.Call(context.Background(), identity.ID(10), []interface{}{"hi"}, &reply)
	require.NoError(t, err)
	require.Equal(t, "echo:hi", reply)
	<-done
}

func TestStubCallReconstructsRemoteFailure(t *testing.T) {
	clientConn, serverConn := newPipeChannels()
	handle := NewHandle(echoTable())

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveOne(t, serverConn, handle)
	}()

	stub := &Stub{
		Handle:  handle,
		ObjID:   identity.NewVersioned(),
		Support: &StubSupport{Connector: fixedConnector{clientConn}, Recycler: noopRecycler{}},
	}

	var reply string
	err := stub.Call(context.Background(), identity.ID(10), []interface{}{"fail"}, &reply)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
	<-done
}

func TestStubCallAsyncMethodReturnsWithoutWaitingForReply(t *testing.T) {
	clientConn, serverConn := newPipeChannels()
	handle := NewHandle(echoTable())

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveOne(t, serverConn, handle)
	}()

	stub := &Stub{
		Handle:  handle,
		ObjID:   identity.NewVersioned(),
		Support: &StubSupport{Connector: fixedConnector{clientConn}, Recycler: noopRecycler{}},
	}

	err := stub.Call(context.Background(), identity.ID(11), []interface{}{"hi"}, nil)
	require.NoError(t, err)
	<-done
}

func TestStubCallUnknownMethodFailsLocally(t *testing.T) {
	handle := NewHandle(echoTable())
	stub := &Stub{Handle: handle, ObjID: identity.NewVersioned()}

	err := stub.Call(context.Background(), identity.ID(999), nil, nil)
	require.Error(t, err)
}

func TestStubCallWrongArgCountFailsLocally(t *testing.T) {
	handle := NewHandle(echoTable())
	stub := &Stub{Handle: handle, ObjID: identity.NewVersioned()}

	err := stub.Call(context.Background(), identity.ID(10), nil, nil)
	require.Error(t, err)
}

func TestHandleRetainReleaseCount(t *testing.T) {
	h := NewHandle(echoTable())
	h.Retain()
	require.Equal(t, int32(1), h.Release())
}

func TestTableLookupAndInfo(t *testing.T) {
	tbl := echoTable()
	entry, ok := tbl.Lookup(identity.ID(10))
	require.True(t, ok)
	require.Equal(t, "Echo", entry.Name)

	ri := tbl.Info()
	require.Len(t, ri.Methods, 2)
	m, ok := ri.ByID(identity.ID(11))
	require.True(t, ok)
	require.True(t, m.Asynchronous)
}
