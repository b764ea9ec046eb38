package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/dirmi/wire"
)

func TestLevelsOfPlainErrorHasNoChain(t *testing.T) {
	err := errors.New("boom")
	chain, terminal := Levels(err)
	require.Empty(t, chain)
	require.Equal(t, "boom", *terminal.Message)
}

func TestLevelsOfWrappedErrorIsRootCauseFirst(t *testing.T) {
	root := errors.New("root cause")
	wrapped := fmt.Errorf("outer: %w", root)

	chain, terminal := Levels(wrapped)
	require.Len(t, chain, 1)
	require.Equal(t, "root cause", *chain[0].Message)
	require.Contains(t, terminal.ClassName, "wrapError")
}

func TestReconstructRoundTripsThroughLevels(t *testing.T) {
	root := errors.New("disk full")
	wrapped := fmt.Errorf("write failed: %w", root)

	chain, terminal := Levels(wrapped)
	rebuilt := Reconstruct(chain, terminal, nil)

	var re *RemoteError
	require.True(t, errors.As(rebuilt, &re))
	require.Contains(t, re.Error(), "write failed")

	cause := errors.Unwrap(rebuilt)
	require.NotNil(t, cause)
	require.Contains(t, cause.Error(), "disk full")
}

func TestReconstructAppendsLocalStackToTerminal(t *testing.T) {
	terminal := wire.ThrowableLevel{ClassName: "remote.Error"}
	local := []wire.Frame{{ClassName: "pkg", MethodName: "Fn", FileName: "f.go", LineNumber: 7}}

	rebuilt := Reconstruct(nil, terminal, local)
	var re *RemoteError
	require.True(t, errors.As(rebuilt, &re))
	require.Equal(t, local, re.Stack)
}

func TestRemoteErrorStackStringFormatsFunctionAndFileLine(t *testing.T) {
	re := &RemoteError{
		ClassName: "remote.Error",
		Stack: []wire.Frame{
			{ClassName: "pkg", MethodName: "Fn", FileName: "f.go", LineNumber: 42},
		},
	}
	s := re.StackString()
	require.Contains(t, s, "pkg.Fn")
	require.Contains(t, s, "f.go:42")
}

func TestRemoteErrorErrorStringOmitsEmptyMessage(t *testing.T) {
	re := &RemoteError{ClassName: "remote.Error"}
	require.Equal(t, "remote.Error", re.Error())
}
