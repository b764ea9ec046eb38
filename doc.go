// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dirmi provides a bidirectional remote-method-invocation
// runtime: either peer of a session can export objects for the other
// to call and import stubs for objects the other has exported, over
// one connection-oriented transport.
//
// # Transport Selection
//
// A raw TCP connection is the default transport. Build tags enable
// alternatives for specific pieces of the protocol:
//
//	go build              # raw net.Conn only (default)
//	go build -tags grpc   # gRPC-framed invocation channels
//	go build -tags json   # HTTP/JSON-RPC bootstrap transport
//
// # Usage
//
// Server side:
//
//	ln, err := dirmi.Listen(":9000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sess, err := ln.Accept(ctx)
//	table := dispatch.NewTable(echoTypeID, "Echo")
//	table.Add(echoMethodEntry)
//	sess.Export(&echoImpl{}, table)
//
// Client side:
//
//	sess, err := dirmi.Dial(ctx, "localhost:9000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//	stub, err := sess.Import(objID, table, version)
//	var reply string
//	err = stub.Call(ctx, echoMethodID, []interface{}{"hello"}, &reply)
//
// # Architecture
//
// The runtime is split across packages by concern:
//
//   - identity: 64-bit object/method identifiers and version counters
//   - codec: pluggable object marshalling (JSON, gob)
//   - wire: framed invocation channels and the primitive wire format
//   - broker: pools invocation channels over one transport
//   - info: reflected remote-interface metadata
//   - registry: per-session exported/imported/type-cache maps
//   - dispatch: stub call sequence and skeleton dispatch tables
//   - failure: remote throwable chain reconstruction
//   - dgc: periodic distributed garbage collection exchange
//   - session: ties the above into Dial/Listen/Export/Import
//
// Application code should depend on this package and dispatch for the
// stub/skeleton shapes it generates or hand-writes, not on the
// internal wire format directly.
package dirmi
