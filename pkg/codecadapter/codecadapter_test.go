package codecadapter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/codecadapter"
	"github.com/openvocs/ovformat/pkg/format"
)

// rotateCodec is a trivial reversible transform standing in for a real
// external codec (spec.md §4.11): it rotates every byte by a fixed
// amount, with Decode applying the inverse rotation.
type rotateCodec struct {
	shift byte
}

func (c rotateCodec) Encode(in []byte) ([]byte, error) {
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b + c.shift
	}
	return out, nil
}

func (c rotateCodec) Decode(_ uint64, out, in []byte) (int, error) {
	for i, b := range in {
		out[i] = b - c.shift
	}
	return len(in), nil
}

func TestCodecAdapterRoundTrip(t *testing.T) {
	out, err := format.FromMemory(ovformat.ModeWrite, nil, 256)
	require.NoError(t, err)
	w, err := codecadapter.New(out, codecadapter.Options{Codec: rotateCodec{shift: 7}})
	require.NoError(t, err)

	n, err := format.WriteChunk(w, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	n, err = format.WriteChunk(w, []byte("world"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.NoError(t, format.Close(w))

	mem, err := format.GetMemory(out)
	require.NoError(t, err)
	require.NotEqual(t, []byte("helloworld"), mem) // rotated, not plaintext

	leaf, err := format.FromMemory(ovformat.ModeRead, mem, 0)
	require.NoError(t, err)
	r, err := codecadapter.New(leaf, codecadapter.Options{Codec: rotateCodec{shift: 7}})
	require.NoError(t, err)

	got, err := format.ReadChunk(r, len(mem))
	require.NoError(t, err)
	require.Equal(t, []byte("helloworld"), got)
	require.Equal(t, uint64(1), codecadapter.SequenceNumber(r))
}

func TestCodecAdapterRequiresCodec(t *testing.T) {
	out, err := format.FromMemory(ovformat.ModeWrite, nil, 16)
	require.NoError(t, err)
	_, err = codecadapter.New(out, codecadapter.Options{})
	require.Error(t, err)
}
