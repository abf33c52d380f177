// Package pcap implements the PCAP capture-file container: a RIFF-like
// global header followed by a sequence of per-packet headers and raw
// link-layer frames. Byte order is autodetected from the magic number, so
// every subsequent 16/32-bit field is decoded accordingly.
//
// Grounded on the classic libpcap file format and on the field layout of
// the teacher's own pkg/pcap writer (global/packet headers, UDP/IPv4
// header marshaling), read in the opposite direction.
package pcap

import (
	"encoding/binary"

	"github.com/pion/logging"
	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
	"github.com/openvocs/ovformat/pkg/ip"
	"github.com/openvocs/ovformat/pkg/linklayer"
)

// TypeName is the tag this package registers its handler under.
const TypeName = "pcap"

// Well-known data_link_type values (spec.md §3).
const (
	LinkTypeEthernet    uint32 = 1
	LinkTypeLinuxCooked uint32 = 113
)

const (
	magicNative         = 0xa1b2c3d4
	magicNativeNanosec  = 0xa1b23c4d
	magicSwapped        = 0xd4c3b2a1
	magicSwappedNanosec = 0x4d3cb2a1

	globalHeaderLen = 24
	packetHeaderLen = 16
)

// GlobalHeader is the 24-octet PCAP file header.
type GlobalHeader struct {
	BytesSwapped bool
	VersionMajor uint16
	VersionMinor uint16
	ThisZone     int32
	SigFigs      uint32
	SnapLen      uint32
	DataLinkType uint32
}

// PacketHeader describes the currently active packet.
type PacketHeader struct {
	TimestampSec  uint32
	TimestampUsec uint32
	LengthStored  uint32
	LengthOrigin  uint32
}

type state struct {
	global  GlobalHeader
	current PacketHeader
	log     logging.LeveledLogger
}

func byteOrder(swapped bool) binary.ByteOrder {
	if swapped {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Handler is the format.Handler for the PCAP decoder.
var Handler = format.Handler{
	CreateData: createData,
	NextChunk:  nextChunk,
	FreeData:   freeData,
}

func freeData(_ *format.Format) error { return nil }

func createData(lower *format.Format, _ any) (any, error) {
	raw, err := format.ReadChunk(lower, globalHeaderLen)
	if err != nil {
		return nil, errors.Wrap(err, "pcap: reading global header")
	}
	if len(raw) != globalHeaderLen {
		return nil, errors.Wrapf(ovformat.ErrShortRead, "pcap: global header: got %d bytes", len(raw))
	}

	magic := binary.BigEndian.Uint32(raw[0:4])
	var swapped bool
	switch magic {
	case magicNative, magicNativeNanosec:
		swapped = false
	case magicSwapped, magicSwappedNanosec:
		swapped = true
	default:
		return nil, errors.Wrapf(ovformat.ErrFormatMismatch, "pcap: unrecognized magic 0x%08x", magic)
	}

	order := byteOrder(swapped)

	st := &state{
		global: GlobalHeader{
			BytesSwapped: swapped,
			VersionMajor: order.Uint16(raw[4:6]),
			VersionMinor: order.Uint16(raw[6:8]),
			ThisZone:     int32(order.Uint32(raw[8:12])),
			SigFigs:      order.Uint32(raw[12:16]),
			SnapLen:      order.Uint32(raw[16:20]),
			DataLinkType: order.Uint32(raw[20:24]),
		},
		log: logging.NewDefaultLoggerFactory().NewLogger("ovformat.pcap"),
	}
	st.log.Debugf("pcap: global header decoded (swapped=%t, data_link_type=%d)", swapped, st.global.DataLinkType)
	return st, nil
}

func nextChunk(f *format.Format, requested int) ([]byte, bool, error) {
	st := f.State.(*state)
	lower := f.Lower()

	header, err := format.ReadChunk(lower, packetHeaderLen)
	if err != nil {
		return nil, false, errors.Wrap(err, "pcap: reading packet header")
	}
	if len(header) == 0 {
		return nil, false, nil
	}
	if len(header) != packetHeaderLen {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrShortRead, "pcap: packet header: got %d bytes", len(header))
	}

	order := byteOrder(st.global.BytesSwapped)
	pkt := PacketHeader{
		TimestampSec:  order.Uint32(header[0:4]),
		TimestampUsec: order.Uint32(header[4:8]),
		LengthStored:  order.Uint32(header[8:12]),
		LengthOrigin:  order.Uint32(header[12:16]),
	}
	st.current = pkt

	payload, err := format.ReadChunk(lower, int(pkt.LengthStored))
	if err != nil {
		return nil, format.HasMoreData(lower), errors.Wrap(err, "pcap: reading packet payload")
	}
	if uint32(len(payload)) != pkt.LengthStored {
		return payload, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrShortRead,
			"pcap: packet payload: wanted %d got %d", pkt.LengthStored, len(payload))
	}

	_ = requested // PCAP delivers whole packets regardless of requested size
	return payload, format.HasMoreData(lower), nil
}

// New constructs a PCAP decoder stacked over lower, which must be a
// ModeRead format.
func New(lower *format.Format) (*format.Format, error) {
	return format.Wrap(lower, TypeName, Handler, nil)
}

// GlobalHeaderOf returns the parsed global header of a PCAP-typed Format.
func GlobalHeaderOf(f *format.Format) GlobalHeader {
	return f.State.(*state).global
}

// CurrentPacketHeaderOf returns the header of the most recently read
// packet.
func CurrentPacketHeaderOf(f *format.Format) PacketHeader {
	return f.State.(*state).current
}

// CreateNetworkLayerFormat is a convenience that stacks the link-layer
// and network-layer decoders appropriate for pcapFormat's data_link_type
// directly on top of it: Ethernet + the Ethernet-IP dispatcher for
// LinkTypeEthernet, or Linux-cooked + IPv4 for LinkTypeLinuxCooked.
func CreateNetworkLayerFormat(pcapFormat *format.Format) (*format.Format, error) {
	st, ok := pcapFormat.State.(*state)
	if !ok || pcapFormat.TypeTag() != TypeName {
		return nil, errors.Wrap(ovformat.ErrInvalidArgument, "pcap: not a pcap format")
	}

	switch st.global.DataLinkType {
	case LinkTypeEthernet:
		eth, err := linklayer.NewEthernet(pcapFormat, linklayer.EthernetOptions{})
		if err != nil {
			return nil, err
		}
		return linklayer.NewEthernetIP(eth)
	case LinkTypeLinuxCooked:
		sll, err := linklayer.NewLinuxSLL(pcapFormat)
		if err != nil {
			return nil, err
		}
		return ip.NewIPv4(sll)
	default:
		return nil, errors.Wrapf(ovformat.ErrFormatMismatch, "pcap: unsupported data_link_type %d", st.global.DataLinkType)
	}
}
