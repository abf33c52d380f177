package oggopus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
	"github.com/openvocs/ovformat/pkg/ogg"
	"github.com/openvocs/ovformat/pkg/oggopus"
)

// TestOggOpusRoundTrip covers spec.md §8 Scenario E: ID header, deferred
// comment header, and one audio payload, all round-tripped.
func TestOggOpusRoundTrip(t *testing.T) {
	out, err := format.FromMemory(ovformat.ModeWrite, nil, 4096)
	require.NoError(t, err)
	oggFmt, err := ogg.New(out, ogg.Options{StreamSerial: 99})
	require.NoError(t, err)
	opusFmt, err := oggopus.New(oggFmt, oggopus.Options{
		PreSkipSamples: 132,
		SampleRateHz:   41289,
		OutputGainDB:   0.2,
	})
	require.NoError(t, err)

	require.NoError(t, oggopus.CommentSet(opusFmt, "alpha", "beta"))
	require.NoError(t, oggopus.CommentSet(opusFmt, "gamma", "Es ist was faul im Staate Daenemark"))

	payload := []byte("Das ist das Hexeneinmaleins")
	n, err := format.WriteChunk(opusFmt, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	// comment header is sealed by the first audio write
	err = oggopus.CommentSet(opusFmt, "delta", "too late")
	require.Error(t, err)

	require.NoError(t, format.Close(opusFmt))

	mem, err := format.GetMemory(out)
	require.NoError(t, err)

	leaf, err := format.FromMemory(ovformat.ModeRead, mem, 0)
	require.NoError(t, err)
	oggRead, err := ogg.New(leaf, nil)
	require.NoError(t, err)
	opusRead, err := oggopus.New(oggRead, nil)
	require.NoError(t, err)

	require.Equal(t, uint16(132), oggopus.PreSkipSamplesOf(opusRead))
	require.Equal(t, uint32(41289), oggopus.SampleRateOf(opusRead))
	require.InDelta(t, 0.2, oggopus.OutputGainDBOf(opusRead), 1.0/256.0)

	alpha, ok := oggopus.Comment(opusRead, "alpha")
	require.True(t, ok)
	require.Equal(t, "beta", alpha)
	gamma, ok := oggopus.Comment(opusRead, "gamma")
	require.True(t, ok)
	require.Equal(t, "Es ist was faul im Staate Daenemark", gamma)
	_, ok = oggopus.Comment(opusRead, "delta")
	require.False(t, ok)

	got, err := format.ReadChunk(opusRead, 0)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}
