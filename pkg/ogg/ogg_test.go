package ogg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
	"github.com/openvocs/ovformat/pkg/ogg"
)

func writeStream(t *testing.T, w *format.Format, chunks [][]byte) {
	t.Helper()
	for _, c := range chunks {
		n, err := format.WriteChunk(w, c)
		require.NoError(t, err)
		require.Equal(t, len(c), n)
	}
}

func readAll(t *testing.T, r *format.Format) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		chunk, err := format.ReadChunk(r, 0)
		require.NoError(t, err)
		if len(chunk) == 0 && !format.HasMoreData(r) {
			break
		}
		out = append(out, chunk)
		if !format.HasMoreData(r) {
			break
		}
	}
	return out
}

// TestOggMultiStream covers spec.md §8 Scenario D: three streams written
// in sequence, each selectable independently on read.
func TestOggMultiStream(t *testing.T) {
	streamZero := [][]byte{[]byte("Abra cadabra"), []byte("alpha beta gamma delta"), []byte("one"), []byte("two"), []byte("three")}
	streamOneThreeTwo := [][]byte{[]byte("middle stream chunk one"), []byte("middle stream chunk two")}
	streamTwoFiveSix := [][]byte{make([]byte, 256)}
	for i := range streamTwoFiveSix[0] {
		streamTwoFiveSix[0][i] = byte(i)
	}

	out, err := format.FromMemory(ovformat.ModeWrite, nil, 4096)
	require.NoError(t, err)
	w, err := ogg.New(out, ogg.Options{StreamSerial: 0xabc})
	require.NoError(t, err)

	writeStream(t, w, streamZero)
	require.NoError(t, ogg.NewStream(w, 132))
	writeStream(t, w, streamOneThreeTwo)
	require.NoError(t, ogg.NewStream(w, 256))
	writeStream(t, w, streamTwoFiveSix)
	require.NoError(t, format.Close(w))

	mem, err := format.GetMemory(out)
	require.NoError(t, err)

	leaf, err := format.FromMemory(ovformat.ModeRead, mem, 0)
	require.NoError(t, err)
	r, err := ogg.New(leaf, nil)
	require.NoError(t, err)
	require.Equal(t, streamZero, readAll(t, r))

	leaf2, err := format.FromMemory(ovformat.ModeRead, mem, 0)
	require.NoError(t, err)
	r2, err := ogg.New(leaf2, nil)
	require.NoError(t, err)
	require.NoError(t, ogg.SelectStream(r2, 132))
	require.Equal(t, streamOneThreeTwo, readAll(t, r2))

	leaf3, err := format.FromMemory(ovformat.ModeRead, mem, 0)
	require.NoError(t, err)
	r3, err := ogg.New(leaf3, nil)
	require.NoError(t, err)
	require.NoError(t, ogg.SelectStream(r3, 256))
	require.Equal(t, streamTwoFiveSix, readAll(t, r3))
}

// TestOggLargePacketSpansPages exercises the 255-byte segment lacing and
// continuation-across-pages rule (spec.md §8 invariant 5) with a single
// logical packet larger than one page's 255-segment budget.
func TestOggLargePacketSpansPages(t *testing.T) {
	big := make([]byte, 255*300+17)
	for i := range big {
		big[i] = byte(i)
	}

	out, err := format.FromMemory(ovformat.ModeWrite, nil, 1<<20)
	require.NoError(t, err)
	w, err := ogg.New(out, ogg.Options{StreamSerial: 1})
	require.NoError(t, err)
	n, err := format.WriteChunk(w, big)
	require.NoError(t, err)
	require.Equal(t, len(big), n)
	require.NoError(t, format.Close(w))

	mem, err := format.GetMemory(out)
	require.NoError(t, err)

	leaf, err := format.FromMemory(ovformat.ModeRead, mem, 0)
	require.NoError(t, err)
	r, err := ogg.New(leaf, nil)
	require.NoError(t, err)

	got, err := format.ReadChunk(r, 0)
	require.NoError(t, err)
	require.Equal(t, big, got)
}

// TestOggCorruptedPageCRCFails covers spec.md §8 invariant 5's CRC half:
// flipping a payload byte after writing must be caught on read.
func TestOggCorruptedPageCRCFails(t *testing.T) {
	out, err := format.FromMemory(ovformat.ModeWrite, nil, 4096)
	require.NoError(t, err)
	w, err := ogg.New(out, ogg.Options{StreamSerial: 7})
	require.NoError(t, err)
	_, err = format.WriteChunk(w, []byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, format.Close(w))

	mem, err := format.GetMemory(out)
	require.NoError(t, err)
	corrupted := append([]byte(nil), mem...)
	corrupted[len(corrupted)-1] ^= 0xff

	leaf, err := format.FromMemory(ovformat.ModeRead, corrupted, 0)
	require.NoError(t, err)
	r, err := ogg.New(leaf, nil)
	require.NoError(t, err)
	_, err = format.ReadChunk(r, 0)
	require.ErrorIs(t, err, ovformat.ErrIntegrity)
}
