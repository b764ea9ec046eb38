package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimitivesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, nil)
	require.NoError(t, out.WriteByte(7))
	require.NoError(t, out.WriteBoolean(true))
	require.NoError(t, out.WriteChar('λ'))
	require.NoError(t, out.WriteInt(-42))
	require.NoError(t, out.WriteLong(1<<40))
	require.NoError(t, out.WriteFloat(3.5))
	require.NoError(t, out.WriteDouble(2.25))

	in := NewInput(&buf, nil)
	b, err := in.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(7), b)

	bo, err := in.ReadBoolean()
	require.NoError(t, err)
	require.True(t, bo)

	c, err := in.ReadChar()
	require.NoError(t, err)
	require.Equal(t, 'λ', c)

	i, err := in.ReadInt()
	require.NoError(t, err)
	require.Equal(t, int32(-42), i)

	l, err := in.ReadLong()
	require.NoError(t, err)
	require.Equal(t, int64(1<<40), l)

	f, err := in.ReadFloat()
	require.NoError(t, err)
	require.Equal(t, float32(3.5), f)

	d, err := in.ReadDouble()
	require.NoError(t, err)
	require.Equal(t, 2.25, d)
}

func TestBoxedPrimitiveNullRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, nil)
	require.NoError(t, out.WriteIntObj(nil))
	v := int32(9)
	require.NoError(t, out.WriteIntObj(&v))

	in := NewInput(&buf, nil)
	got, err := in.ReadIntObj()
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = in.ReadIntObj()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, int32(9), *got)
}

func TestVarUintRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 16383, 16384, 1 << 28, ^uint32(0)}
	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, writeVarUint(&buf, v))
		got, err := readVarUint(&buf)
		require.NoError(t, err)
		require.Equal(t, v, got, "round trip for %d", v)
	}
}

func TestStringRoundTripIncludingSupplementaryCodePoint(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, nil)
	s := "hello \U0001F600 world"
	require.NoError(t, out.WriteString(&s))
	require.NoError(t, out.WriteString(nil))

	in := NewInput(&buf, nil)
	got, err := in.ReadString()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, s, *got)

	null, err := in.ReadString()
	require.NoError(t, err)
	require.Nil(t, null)
}

type samplePayload struct {
	A string
	B int
}

func TestObjectSharedIdentityWithinScope(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, nil)
	shared := &samplePayload{A: "x", B: 1}
	require.NoError(t, out.WriteObject(shared))
	require.NoError(t, out.WriteObject(shared))

	in := NewInput(&buf, nil)
	var first, second samplePayload
	require.NoError(t, in.ReadObject(&first))
	require.NoError(t, in.ReadObject(&second))
	require.Equal(t, first, second)
}

func TestObjectWriteDoesNotPanicOnUnhashableDynamicType(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, nil)
	require.NotPanics(t, func() {
		require.NoError(t, out.WriteObject([]string{"a", "b"}))
	})

	in := NewInput(&buf, nil)
	var got []string
	require.NoError(t, in.ReadObject(&got))
	require.Equal(t, []string{"a", "b"}, got)
}

func TestObjectWriteDoesNotCollapseDistinctEqualValues(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, nil)
	a := samplePayload{A: "x", B: 1}
	b := samplePayload{A: "x", B: 1}
	require.NoError(t, out.WriteObject(a))
	require.NoError(t, out.WriteObject(b))

	in := NewInput(&buf, nil)
	var gotA, gotB samplePayload
	require.NoError(t, in.ReadObject(&gotA))
	require.NoError(t, in.ReadObject(&gotB))
	require.Equal(t, a, gotA)
	require.Equal(t, b, gotB)
}

func TestReadOkStatuses(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, nil)
	require.NoError(t, out.WriteOk(false))
	require.NoError(t, out.WriteOk(true))

	in := NewInput(&buf, nil)
	hasValue, notOK, err := in.ReadOk()
	require.NoError(t, err)
	require.False(t, hasValue)
	require.False(t, notOK)

	hasValue, notOK, err = in.ReadOk()
	require.NoError(t, err)
	require.True(t, hasValue)
	require.False(t, notOK)
}

func TestThrowableChainRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, nil)
	msg := "root cause"
	chain := []ThrowableLevel{{ClassName: "io.Error", Message: &msg}}
	terminal := ThrowableLevel{ClassName: "dirmi.CallError", Stack: []Frame{{ClassName: "pkg", MethodName: "Fn", FileName: "f.go", LineNumber: 10}}}
	require.NoError(t, out.WriteThrowableChain(chain, terminal))

	in := NewInput(&buf, nil)
	hasValue, notOK, err := in.ReadOk()
	require.NoError(t, err)
	require.False(t, hasValue)
	require.True(t, notOK)

	gotChain, gotTerminal, err := in.ReadThrowableChain()
	require.NoError(t, err)
	require.Len(t, gotChain, 1)
	require.Equal(t, "io.Error", gotChain[0].ClassName)
	require.Equal(t, "dirmi.CallError", gotTerminal.ClassName)
	require.Len(t, gotTerminal.Stack, 1)
}

func TestUnconnectedChannelRejectsEveryOperation(t *testing.T) {
	ch := Unconnected()
	require.ErrorIs(t, ch.Flush(), ErrNotConnected)
	require.NoError(t, ch.Close())
}
