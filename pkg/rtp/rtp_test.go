package rtp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

func buildPacket(csrc []uint32, ext *ExtensionHeader, payload []byte, padLen int) []byte {
	b0 := byte(2 << 6)
	if padLen > 0 {
		b0 |= 0x20
	}
	if ext != nil {
		b0 |= 0x10
	}
	b0 |= byte(len(csrc))

	buf := []byte{b0, 96, 0, 1}
	ts := make([]byte, 4)
	binary.BigEndian.PutUint32(ts, 12345)
	buf = append(buf, ts...)
	ssrc := make([]byte, 4)
	binary.BigEndian.PutUint32(ssrc, 0xdeadbeef)
	buf = append(buf, ssrc...)

	for _, c := range csrc {
		cb := make([]byte, 4)
		binary.BigEndian.PutUint32(cb, c)
		buf = append(buf, cb...)
	}

	if ext != nil {
		idLen := make([]byte, 4)
		binary.BigEndian.PutUint16(idLen[0:2], ext.ID)
		binary.BigEndian.PutUint16(idLen[2:4], uint16(len(ext.Payload)/4))
		buf = append(buf, idLen...)
		buf = append(buf, ext.Payload...)
	}

	buf = append(buf, payload...)
	if padLen > 0 {
		pad := make([]byte, padLen)
		pad[padLen-1] = byte(padLen)
		buf = append(buf, pad...)
	}
	return buf
}

func TestRTPParsesFixedHeader(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	raw := buildPacket(nil, nil, payload, 0)

	leaf, err := format.FromMemory(ovformat.ModeRead, raw, 0)
	require.NoError(t, err)
	f, err := New(leaf)
	require.NoError(t, err)

	got, err := format.ReadChunk(f, 0)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	h := HeaderOf(f)
	require.Equal(t, uint8(2), h.Version)
	require.Equal(t, uint8(96), h.PayloadType)
	require.Equal(t, uint16(1), h.SequenceNumber)
	require.Equal(t, uint32(12345), h.Timestamp)
	require.Equal(t, uint32(0xdeadbeef), h.SSRC)
	require.Equal(t, NoPadding, GetPadding(f))
}

func TestRTPParsesCSRCAndExtension(t *testing.T) {
	ext := &ExtensionHeader{ID: 7, Payload: []byte{1, 2, 3, 4}}
	payload := []byte{9, 9}
	raw := buildPacket([]uint32{1, 2, 3}, ext, payload, 0)

	leaf, err := format.FromMemory(ovformat.ModeRead, raw, 0)
	require.NoError(t, err)
	f, err := New(leaf)
	require.NoError(t, err)

	got, err := format.ReadChunk(f, 0)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	h := HeaderOf(f)
	require.Equal(t, []uint32{1, 2, 3}, h.CSRC)
	require.True(t, h.Extension.Present)
	require.Equal(t, uint16(7), h.Extension.ID)
	require.Equal(t, ext.Payload, h.Extension.Payload)
}

func TestRTPStripsPadding(t *testing.T) {
	payload := []byte{1, 2, 3}
	raw := buildPacket(nil, nil, payload, 4)

	leaf, err := format.FromMemory(ovformat.ModeRead, raw, 0)
	require.NoError(t, err)
	f, err := New(leaf)
	require.NoError(t, err)

	got, err := format.ReadChunk(f, 0)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.Equal(t, 4, GetPadding(f))
}
