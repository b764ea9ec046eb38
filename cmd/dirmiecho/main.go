// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command dirmiecho is a runnable smoke test of Dial/Listen/Export/
// Import: a server exports one object with a single Echo method, and
// a client imports a stub for it and calls it once. It is
// demonstration glue, not a CLI surface for the core runtime.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/luxfi/dirmi"
	"github.com/luxfi/dirmi/dispatch"
	"github.com/luxfi/dirmi/identity"
	"github.com/luxfi/dirmi/info"
	"github.com/luxfi/dirmi/wire"
)

// echoTypeID and echoMethodID are fixed so the client and server agree
// on them without exchanging RemoteInfo first; a real application
// would instead build these from its own stable registration scheme.
var (
	echoTypeID   = identity.ID(0x00000000deadbeef)
	echoMethodID = identity.ID(0x00000000c0ffee01)
	echoObjID    = identity.ID(0x00000000f00d0001)
)

type echoService struct{}

func (echoService) Echo(s string) string { return "echo: " + s }

func echoTable() *dispatch.Table {
	t := dispatch.NewTable(echoTypeID, "Echo")
	t.Add(dispatch.MethodEntry{
		ID:     echoMethodID,
		Name:   "Echo",
		Params: []info.Param{{TypeName: "string", Kind: info.KindString}},
		Return: &info.Param{TypeName: "string", Kind: info.KindString},
		Invoke: func(ctx context.Context, target interface{}, in *wire.Input, out *wire.Output) error {
			arg, err := dispatch.UnmarshalParam(in, info.Param{Kind: info.KindString}, nil)
			if err != nil {
				return err
			}
			s, _ := arg.(string)
			reply := target.(interface{ Echo(string) string }).Echo(s)
			if err := out.WriteOk(true); err != nil {
				return err
			}
			return dispatch.MarshalParam(out, info.Param{Kind: info.KindString}, reply)
		},
	})
	return t
}

func main() {
	mode := flag.String("mode", "server", "server or client")
	addr := flag.String("addr", "localhost:8910", "address")
	message := flag.String("message", "hello", "message to echo (client mode)")
	flag.Parse()

	switch *mode {
	case "server":
		runServer(*addr)
	case "client":
		runClient(*addr, *message)
	default:
		fmt.Fprintln(os.Stderr, "mode must be server or client")
		os.Exit(2)
	}
}

func runServer(addr string) {
	ln, err := dirmi.Listen(addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("dirmiecho server listening on %s", ln.Addr())

	ctx := context.Background()
	for {
		sess, err := ln.Accept(ctx)
		if err != nil {
			log.Fatalf("accept: %v", err)
		}
		sess.ExportWellKnown(echoObjID, echoService{}, echoTable())
		log.Printf("accepted session, exported Echo at %s", echoObjID)
	}
}

func runClient(addr, message string) {
	ctx := context.Background()
	sess, err := dirmi.Dial(ctx, addr)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer sess.Close()

	stub, err := sess.Import(echoObjID, echoTable(), 0)
	if err != nil {
		log.Fatalf("import: %v", err)
	}

	var reply string
	if err := stub.Call(ctx, echoMethodID, []interface{}{message}, &reply); err != nil {
		log.Fatalf("call: %v", err)
	}
	fmt.Println(reply)
}
