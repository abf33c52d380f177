package ip

import (
	"encoding/binary"

	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

// IPv6Type is the tag the IPv6 decoder registers under.
const IPv6Type = "ipv6"

const ipv6HeaderLen = 40

// Next-header values this decoder accepts directly; anything else is
// treated as an unsupported extension chain.
const (
	nextHeaderTCP  = 6
	nextHeaderUDP  = 17
	nextHeaderNone = 59 // RFC 8200 "No Next Header"
)

// IPv6Header is the parsed header of the datagram most recently
// delivered by NextChunk.
type IPv6Header struct {
	Version      uint8
	TrafficClass uint8
	FlowLabel    uint32
	PayloadLen   uint16
	NextHeader   uint8
	HopLimit     uint8
	SrcAddr      [16]byte
	DstAddr      [16]byte
}

type ipv6State struct {
	header      IPv6Header
	packetCount int
}

// IPv6Handler is the format.Handler for the IPv6 decoder.
var IPv6Handler = format.Handler{
	CreateData: ipv6CreateData,
	NextChunk:  ipv6NextChunk,
	FreeData:   ipv6FreeData,
}

func ipv6CreateData(_ *format.Format, _ any) (any, error) {
	return &ipv6State{}, nil
}

func ipv6FreeData(_ *format.Format) error { return nil }

func ipv6NextChunk(f *format.Format, _ int) ([]byte, bool, error) {
	st := f.State.(*ipv6State)
	lower := f.Lower()

	raw, err := format.ReadChunk(lower, 0)
	if err != nil {
		return nil, false, errors.Wrap(err, "ipv6: reading datagram")
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	if len(raw) < ipv6HeaderLen {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrShortRead,
			"ipv6: datagram too short: %d bytes", len(raw))
	}

	versionTC := binary.BigEndian.Uint32(raw[0:4])
	version := uint8(versionTC >> 28)
	if version != 6 {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrFormatMismatch,
			"ipv6: unexpected version %d", version)
	}

	h := IPv6Header{
		Version:      version,
		TrafficClass: uint8((versionTC >> 20) & 0xff),
		FlowLabel:    versionTC & 0x000fffff,
		PayloadLen:   binary.BigEndian.Uint16(raw[4:6]),
		NextHeader:   raw[6],
		HopLimit:     raw[7],
	}
	copy(h.SrcAddr[:], raw[8:24])
	copy(h.DstAddr[:], raw[24:40])

	switch h.NextHeader {
	case nextHeaderTCP, nextHeaderUDP, nextHeaderNone:
	default:
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrFormatMismatch,
			"ipv6: unsupported extension header chain starting at %d", h.NextHeader)
	}

	payloadEnd := ipv6HeaderLen + int(h.PayloadLen)
	if payloadEnd > len(raw) {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrShortRead,
			"ipv6: payload_length %d exceeds datagram of %d bytes", h.PayloadLen, len(raw)-ipv6HeaderLen)
	}

	st.header = h
	st.packetCount++
	return raw[ipv6HeaderLen:payloadEnd], format.HasMoreData(lower), nil
}

// NewIPv6 constructs an IPv6 decoder stacked over lower.
func NewIPv6(lower *format.Format) (*format.Format, error) {
	return format.Wrap(lower, IPv6Type, IPv6Handler, nil)
}

// IPv6HeaderOf returns the header of the most recently decoded datagram.
func IPv6HeaderOf(f *format.Format) IPv6Header {
	return f.State.(*ipv6State).header
}

// IPv6PacketCountOf returns how many datagrams f has decoded so far.
func IPv6PacketCountOf(f *format.Format) int {
	return f.State.(*ipv6State).packetCount
}
