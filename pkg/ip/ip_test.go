package ip

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

func buildIPv4(payload []byte) []byte {
	totalLen := ipv4MinHeaderLen + len(payload)
	buf := make([]byte, ipv4MinHeaderLen)
	buf[0] = (4 << 4) | 5
	binary.BigEndian.PutUint16(buf[2:4], uint16(totalLen))
	buf[8] = 64
	buf[9] = 17 // UDP
	copy(buf[12:16], []byte{10, 0, 0, 1})
	copy(buf[16:20], []byte{10, 0, 0, 2})
	return append(buf, payload...)
}

func TestIPv4ParsesHeaderAndPayload(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	raw := buildIPv4(payload)

	leaf, err := format.FromMemory(ovformat.ModeRead, raw, 0)
	require.NoError(t, err)
	f, err := NewIPv4(leaf)
	require.NoError(t, err)

	got, err := format.ReadChunk(f, 0)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	h := IPv4HeaderOf(f)
	require.Equal(t, uint8(4), h.Version)
	require.Equal(t, uint8(17), h.Protocol)
	require.Equal(t, 1, IPv4PacketCountOf(f))
}

func TestIPv4RejectsWrongVersion(t *testing.T) {
	raw := buildIPv4([]byte{1})
	raw[0] = (6 << 4) | 5

	leaf, err := format.FromMemory(ovformat.ModeRead, raw, 0)
	require.NoError(t, err)
	f, err := NewIPv4(leaf)
	require.NoError(t, err)

	_, err = format.ReadChunk(f, 0)
	require.ErrorIs(t, err, ovformat.ErrFormatMismatch)
}

func buildIPv6(nextHeader uint8, payload []byte) []byte {
	buf := make([]byte, ipv6HeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(6)<<28)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(payload)))
	buf[6] = nextHeader
	buf[7] = 64
	copy(buf[8:24], []byte{0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1})
	copy(buf[24:40], []byte{0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2})
	return append(buf, payload...)
}

func TestIPv6ParsesHeaderAndPayload(t *testing.T) {
	payload := []byte{5, 6, 7}
	raw := buildIPv6(nextHeaderUDP, payload)

	leaf, err := format.FromMemory(ovformat.ModeRead, raw, 0)
	require.NoError(t, err)
	f, err := NewIPv6(leaf)
	require.NoError(t, err)

	got, err := format.ReadChunk(f, 0)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.Equal(t, 1, IPv6PacketCountOf(f))
}

func TestIPv6RejectsUnsupportedExtensionChain(t *testing.T) {
	raw := buildIPv6(44, []byte{1, 2})

	leaf, err := format.FromMemory(ovformat.ModeRead, raw, 0)
	require.NoError(t, err)
	f, err := NewIPv6(leaf)
	require.NoError(t, err)

	_, err = format.ReadChunk(f, 0)
	require.ErrorIs(t, err, ovformat.ErrFormatMismatch)
}
