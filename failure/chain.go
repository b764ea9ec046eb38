// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package failure reconstructs a remote throwable chain into a local
// Go error chain, stitching the caller's own stack after the remote
// stack of the thrown error, so that the outermost RemoteError's Stack
// runs from its remote frames into the caller's frames (minus the stub
// frame that did the stitching). Each cause level keeps its own remote
// Stack.
package failure

import (
	"fmt"
	"strings"

	"github.com/luxfi/dirmi/wire"
)

// RemoteError is the generic reconstruction of one level of a remote
// throwable. A call that fails remotely always surfaces at least this
// shape; FailureDeclared method metadata (info.RemoteMethod) governs
// whether callers are additionally allowed to assume a more specific
// meaning for ClassName, but the core itself never invents a richer
// Go type for it.
type RemoteError struct {
	ClassName string
	Message   string
	Stack     []wire.Frame
	cause     error
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.ClassName
	}
	return fmt.Sprintf("%s: %s", e.ClassName, e.Message)
}

// Unwrap exposes the next cause down the chain, letting errors.Is/As
// walk it like any other wrapped error.
func (e *RemoteError) Unwrap() error { return e.cause }

// StackString renders Stack the way a Go panic trace reads: two lines
// per frame (the function, then an indented file:line), in Stack order.
func (e *RemoteError) StackString() string {
	var sb strings.Builder
	for _, f := range e.Stack {
		fmt.Fprintf(&sb, "\t%s.%s\n\t\t%s:%d\n", f.ClassName, f.MethodName, f.FileName, f.LineNumber)
	}
	return sb.String()
}

// Reconstruct builds a Go error from a throwable chain as written by
// wire.Output.WriteThrowableChain: chain is root-cause-first, terminal
// is the throwable actually thrown on the far side. localStack is
// appended to the terminal error's Stack, standing in for "stitch the
// local thread's current stack after the remote stack".
func Reconstruct(chain []wire.ThrowableLevel, terminal wire.ThrowableLevel, localStack []wire.Frame) error {
	var cause error
	for _, lvl := range chain {
		cause = build(lvl, cause)
	}
	final := build(terminal, cause)
	final.Stack = append(final.Stack, localStack...)
	return final
}

func build(lvl wire.ThrowableLevel, cause error) *RemoteError {
	msg := ""
	if lvl.Message != nil {
		msg = *lvl.Message
	}
	return &RemoteError{ClassName: lvl.ClassName, Message: msg, Stack: lvl.Stack, cause: cause}
}

// Levels serializes err's own error chain (via errors.Unwrap) into the
// root-cause-first []wire.ThrowableLevel form WriteThrowableChain
// expects, splitting it into the chain proper and the terminal level
// (the outermost error, i.e. err itself).
func Levels(err error) (chain []wire.ThrowableLevel, terminal wire.ThrowableLevel) {
	var all []wire.ThrowableLevel
	for e := err; e != nil; e = unwrap(e) {
		all = append(all, levelOf(e))
	}
	if len(all) == 0 {
		return nil, wire.ThrowableLevel{ClassName: "error", Message: strPtr("")}
	}
	// all is terminal-first (err, then its cause, then its cause's
	// cause, ...); the wire format wants the chain root-first with the
	// terminal last, so reverse everything but the first entry.
	terminal = all[0]
	rest := all[1:]
	chain = make([]wire.ThrowableLevel, len(rest))
	for i, lvl := range rest {
		chain[len(rest)-1-i] = lvl
	}
	return chain, terminal
}

func unwrap(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return u.Unwrap()
	}
	return nil
}

func levelOf(err error) wire.ThrowableLevel {
	if re, ok := err.(*RemoteError); ok {
		msg := re.Message
		return wire.ThrowableLevel{ClassName: re.ClassName, Message: &msg, Stack: re.Stack}
	}
	msg := err.Error()
	return wire.ThrowableLevel{ClassName: ClassName(err), Message: &msg}
}

// ClassName derives a stable-ish "class name" for a plain Go error:
// its dynamic type name, matching how the original names a Java
// exception by its fully-qualified class.
func ClassName(err error) string {
	return fmt.Sprintf("%T", err)
}

func strPtr(s string) *string { return &s }
