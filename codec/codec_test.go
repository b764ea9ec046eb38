package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Name string
	N    int
}

func TestJSONRoundTrip(t *testing.T) {
	Register(samplePayload{})
	in := samplePayload{Name: "x", N: 3}
	data, err := JSON{}.Encode(in)
	require.NoError(t, err)

	var out samplePayload
	require.NoError(t, JSON{}.Decode(data, &out))
	require.Equal(t, in, out)
}

func TestGobRoundTrip(t *testing.T) {
	Register(samplePayload{})
	in := samplePayload{Name: "y", N: 7}
	data, err := Gob{}.Encode(in)
	require.NoError(t, err)

	var out samplePayload
	require.NoError(t, Gob{}.Decode(data, &out))
	require.Equal(t, in, out)
}

func TestDefaultCodecIsJSON(t *testing.T) {
	_, ok := Default.(JSON)
	require.True(t, ok)
}
