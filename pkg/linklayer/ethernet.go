// Package linklayer implements the link-layer framings the PCAP tower
// stacks directly over a captured frame: classic Ethernet II and the
// Linux "cooked capture" (SLL) pseudo-header, plus the Ethernet-IP
// dispatcher that picks an IPv4 or IPv6 child decoder per frame.
package linklayer

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

// EthernetType is the tag Ethernet registers its handler under.
const EthernetType = "ethernet"

const ethernetHeaderLen = 14

// etherTypeThreshold is the boundary between a length field (802.3) and
// an EtherType field (Ethernet II); values >= this are EtherTypes.
const etherTypeThreshold = 1536

// Well-known EtherType values the Ethernet-IP dispatcher recognizes.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeIPv6 uint16 = 0x86dd
)

// EthernetOptions configures construction of an Ethernet decoder.
type EthernetOptions struct {
	// WithCRC indicates each frame carries a trailing 32-bit big-endian
	// CRC that must be stripped from the payload.
	WithCRC bool
}

// EthernetHeader is the parsed Ethernet II / 802.3 header of the frame
// most recently delivered by NextChunk.
type EthernetHeader struct {
	DstMAC  [6]byte
	SrcMAC  [6]byte
	TypeSet bool // true: EtherType field below is valid; false: Length is
	Type    uint16
	Length  uint16
	HasCRC  bool
	CRC     uint32
}

type ethernetState struct {
	withCRC bool
	header  EthernetHeader
}

// EthernetHandler is the format.Handler for the Ethernet decoder.
var EthernetHandler = format.Handler{
	CreateData: ethernetCreateData,
	NextChunk:  ethernetNextChunk,
	FreeData:   ethernetFreeData,
}

func ethernetCreateData(_ *format.Format, options any) (any, error) {
	opts, _ := options.(EthernetOptions)
	return &ethernetState{withCRC: opts.WithCRC}, nil
}

func ethernetFreeData(_ *format.Format) error { return nil }

func ethernetNextChunk(f *format.Format, _ int) ([]byte, bool, error) {
	st := f.State.(*ethernetState)
	lower := f.Lower()

	raw, err := format.ReadChunk(lower, 0)
	if err != nil {
		return nil, false, errors.Wrap(err, "ethernet: reading frame")
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	if len(raw) < ethernetHeaderLen {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrShortRead,
			"ethernet: frame too short: %d bytes", len(raw))
	}

	var h EthernetHeader
	copy(h.DstMAC[:], raw[0:6])
	copy(h.SrcMAC[:], raw[6:12])

	typeOrLen := binary.BigEndian.Uint16(raw[12:14])
	if typeOrLen >= etherTypeThreshold {
		h.TypeSet = true
		h.Type = typeOrLen
	} else {
		h.TypeSet = false
		h.Length = typeOrLen
	}

	rest := raw[ethernetHeaderLen:]
	if st.withCRC {
		if len(rest) < 4 {
			return nil, format.HasMoreData(lower), errors.Wrap(ovformat.ErrShortRead, "ethernet: missing trailing crc")
		}
		h.HasCRC = true
		h.CRC = binary.BigEndian.Uint32(rest[len(rest)-4:])
		rest = rest[:len(rest)-4]
	}

	st.header = h
	return rest, format.HasMoreData(lower), nil
}

// NewEthernet constructs an Ethernet decoder stacked over lower.
func NewEthernet(lower *format.Format, opts EthernetOptions) (*format.Format, error) {
	return format.Wrap(lower, EthernetType, EthernetHandler, opts)
}

// EthernetHeaderOf returns the header of the most recently decoded frame.
func EthernetHeaderOf(f *format.Format) EthernetHeader {
	return f.State.(*ethernetState).header
}

// CalculateCRC32 recomputes the trailing CRC over an Ethernet frame body
// using the zlib/Ethernet polynomial. CRC computation is explicitly an
// external collaborator per spec.md §1 ("cryptographic CRC primitives"),
// so this simply delegates to the standard library's IEEE/zlib table
// instead of hand-rolling one.
func CalculateCRC32(frameBody []byte) uint32 {
	return crc32.ChecksumIEEE(frameBody)
}
