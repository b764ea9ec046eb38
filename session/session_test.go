package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/dirmi/dispatch"
	"github.com/luxfi/dirmi/identity"
	"github.com/luxfi/dirmi/info"
	"github.com/luxfi/dirmi/wire"
)

var (
	greeterTypeID   = identity.ID(0x1001)
	greeterMethodID = identity.ID(0x1002)
)

type greeter struct{}

func (greeter) Greet(name string) string { return "hello, " + name }

func greeterTable() *dispatch.Table {
	tbl := dispatch.NewTable(greeterTypeID, "Greeter")
	tbl.Add(dispatch.MethodEntry{
		ID:     greeterMethodID,
		Name:   "Greet",
		Params: []info.Param{{Kind: info.KindString}},
		Return: &info.Param{Kind: info.KindString},
		Invoke: func(ctx context.Context, target interface{}, in *wire.Input, out *wire.Output) error {
			arg, err := dispatch.UnmarshalParam(in, info.Param{Kind: info.KindString}, nil)
			if err != nil {
				return err
			}
			reply := target.(greeter).Greet(arg.(string))
			if err := out.WriteOk(true); err != nil {
				return err
			}
			return dispatch.MarshalParam(out, info.Param{Kind: info.KindString}, reply)
		},
	})
	return tbl
}

func TestSessionExportImportCallRoundTrip(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accepted := make(chan *Session, 1)
	go func() {
		sess, err := ln.Accept(ctx)
		require.NoError(t, err)
		accepted <- sess
	}()

	client, err := Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	ver := server.Export(greeter{}, greeterTable())

	stub, err := client.Import(ver.ID, greeterTable(), 0)
	require.NoError(t, err)

	var reply string
	err = stub.Call(ctx, greeterMethodID, []interface{}{"world"}, &reply)
	require.NoError(t, err)
	require.Equal(t, "hello, world", reply)
}

func TestSessionImportIsIdempotentPerObjectID(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accepted := make(chan *Session, 1)
	go func() {
		sess, err := ln.Accept(ctx)
		require.NoError(t, err)
		accepted <- sess
	}()

	client, err := Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	ver := server.Export(greeter{}, greeterTable())

	stub1, err := client.Import(ver.ID, greeterTable(), 0)
	require.NoError(t, err)
	stub2, err := client.Import(ver.ID, greeterTable(), 0)
	require.NoError(t, err)
	require.Same(t, stub1, stub2)
}

func TestStubReleaseDropsRegistryImportEntry(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accepted := make(chan *Session, 1)
	go func() {
		sess, err := ln.Accept(ctx)
		require.NoError(t, err)
		accepted <- sess
	}()

	client, err := Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	ver := server.Export(greeter{}, greeterTable())

	stub, err := client.Import(ver.ID, greeterTable(), 0)
	require.NoError(t, err)
	require.Len(t, client.registry.LiveImports(), 1)

	stub.Release()
	require.Empty(t, client.registry.LiveImports())
}

func TestSessionRouteRecyclesChannelForUnknownObject(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accepted := make(chan *Session, 1)
	go func() {
		sess, err := ln.Accept(ctx)
		require.NoError(t, err)
		accepted <- sess
	}()

	client, err := Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	// Import a handle for an object the server never exported; the
	// call must fail instead of hanging, proving route's unknown-object
	// branch recycles the channel rather than leaving the client stuck
	// waiting on a reply that will never come.
	stub, err := client.Import(identity.New(), greeterTable(), 0)
	require.NoError(t, err)

	var reply string
	err = stub.Call(ctx, greeterMethodID, []interface{}{"world"}, &reply)
	require.Error(t, err)
}
