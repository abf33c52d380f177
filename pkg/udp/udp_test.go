package udp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

func buildDatagram(payload []byte) []byte {
	buf := make([]byte, headerLen)
	binary.BigEndian.PutUint16(buf[0:2], 5000)
	binary.BigEndian.PutUint16(buf[2:4], 5001)
	binary.BigEndian.PutUint16(buf[4:6], uint16(headerLen+len(payload)))
	return append(buf, payload...)
}

func TestUDPParsesHeaderAndPayload(t *testing.T) {
	payload := []byte{1, 2, 3}
	raw := buildDatagram(payload)

	leaf, err := format.FromMemory(ovformat.ModeRead, raw, 0)
	require.NoError(t, err)
	f, err := New(leaf)
	require.NoError(t, err)

	got, err := format.ReadChunk(f, 0)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	h := HeaderOf(f)
	require.Equal(t, uint16(5000), h.SrcPort)
	require.Equal(t, uint16(5001), h.DstPort)
}

func TestUDPRejectsLengthMismatch(t *testing.T) {
	raw := buildDatagram([]byte{1, 2, 3})
	binary.BigEndian.PutUint16(raw[4:6], 99)

	leaf, err := format.FromMemory(ovformat.ModeRead, raw, 0)
	require.NoError(t, err)
	f, err := New(leaf)
	require.NoError(t, err)

	_, err = format.ReadChunk(f, 0)
	require.ErrorIs(t, err, ovformat.ErrIntegrity)
}
