// Package ip implements IPv4 and IPv6 decoders. Each layer parses its
// header fresh on every NextChunk call, since the format stack these sit
// in is re-fed one network-layer datagram at a time (see
// pkg/linklayer's Ethernet-IP dispatcher).
package ip

import (
	"encoding/binary"

	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

// IPv4Type is the tag the IPv4 decoder registers under.
const IPv4Type = "ipv4"

const ipv4MinHeaderLen = 20

// IPv4Header is the parsed header of the datagram most recently
// delivered by NextChunk.
type IPv4Header struct {
	Version        uint8
	IHL            uint8 // header length in 32-bit words
	TotalLength    uint16
	Protocol       uint8
	TTL            uint8
	SrcAddr        [4]byte
	DstAddr        [4]byte
	HeaderChecksum uint16
}

type ipv4State struct {
	header      IPv4Header
	packetCount int
}

// IPv4Handler is the format.Handler for the IPv4 decoder.
var IPv4Handler = format.Handler{
	CreateData: ipv4CreateData,
	NextChunk:  ipv4NextChunk,
	FreeData:   ipv4FreeData,
}

func ipv4CreateData(_ *format.Format, _ any) (any, error) {
	return &ipv4State{}, nil
}

func ipv4FreeData(_ *format.Format) error { return nil }

func ipv4NextChunk(f *format.Format, _ int) ([]byte, bool, error) {
	st := f.State.(*ipv4State)
	lower := f.Lower()

	raw, err := format.ReadChunk(lower, 0)
	if err != nil {
		return nil, false, errors.Wrap(err, "ipv4: reading datagram")
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	if len(raw) < ipv4MinHeaderLen {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrShortRead,
			"ipv4: datagram too short: %d bytes", len(raw))
	}

	versionIHL := raw[0]
	version := versionIHL >> 4
	if version != 4 {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrFormatMismatch,
			"ipv4: unexpected version %d", version)
	}
	ihl := versionIHL & 0x0f
	if ihl < 5 {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrIntegrity, "ipv4: ihl too small: %d", ihl)
	}
	headerLen := int(ihl) * 4
	if len(raw) < headerLen {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrShortRead,
			"ipv4: header length %d exceeds datagram of %d bytes", headerLen, len(raw))
	}

	totalLength := binary.BigEndian.Uint16(raw[2:4])
	if int(totalLength) < headerLen {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrIntegrity,
			"ipv4: total_length %d shorter than header_length %d", totalLength, headerLen)
	}
	if int(totalLength) > len(raw) {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrShortRead,
			"ipv4: total_length %d exceeds datagram of %d bytes", totalLength, len(raw))
	}

	h := IPv4Header{
		Version:        version,
		IHL:            ihl,
		TotalLength:    totalLength,
		Protocol:       raw[9],
		TTL:            raw[8],
		HeaderChecksum: binary.BigEndian.Uint16(raw[10:12]),
	}
	copy(h.SrcAddr[:], raw[12:16])
	copy(h.DstAddr[:], raw[16:20])

	payload := raw[headerLen:totalLength]

	st.header = h
	st.packetCount++
	return payload, format.HasMoreData(lower), nil
}

// NewIPv4 constructs an IPv4 decoder stacked over lower.
func NewIPv4(lower *format.Format) (*format.Format, error) {
	return format.Wrap(lower, IPv4Type, IPv4Handler, nil)
}

// IPv4HeaderOf returns the header of the most recently decoded datagram.
func IPv4HeaderOf(f *format.Format) IPv4Header {
	return f.State.(*ipv4State).header
}

// IPv4PacketCountOf returns how many datagrams f has decoded so far.
func IPv4PacketCountOf(f *format.Format) int {
	return f.State.(*ipv4State).packetCount
}
