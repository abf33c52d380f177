// Package rtp implements a decode-only RTP header parser (RFC 3550):
// the fixed 12-octet header, 0-15 CSRC identifiers, an optional
// extension header, and optional trailing padding. Grounded on the
// field layout of the teacher's rtp/marshal.go and unmarshal.go, but
// written from scratch rather than importing pion/rtp, since this
// package only ever needs to peel the header off to hand payload
// upward — not build or mutate RTP packets for transmission.
package rtp

import (
	"encoding/binary"

	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

// TypeName is the tag this package registers its handler under.
const TypeName = "rtp"

const fixedHeaderLen = 12

// NoPadding is the sentinel Header.Padding holds when a packet carries
// no padding octets at all (as opposed to a zero-length but present
// padding field, which RTP does not allow).
const NoPadding = -1

// ExtensionHeader is the optional RTP header extension.
type ExtensionHeader struct {
	Present bool
	ID      uint16
	Payload []byte // length is a multiple of 4 octets
}

// Header is the parsed header of the packet most recently delivered by
// NextChunk.
type Header struct {
	Version        uint8
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRC           []uint32
	Extension      ExtensionHeader

	// Padding is the number of trailing padding octets (including the
	// count octet itself) or NoPadding if the packet has none.
	Padding int
}

type stateT struct {
	header Header
}

// Handler is the format.Handler for the RTP decoder.
var Handler = format.Handler{
	CreateData: createData,
	NextChunk:  nextChunk,
	FreeData:   freeData,
}

func createData(_ *format.Format, _ any) (any, error) {
	return &stateT{}, nil
}

func freeData(_ *format.Format) error { return nil }

func nextChunk(f *format.Format, _ int) ([]byte, bool, error) {
	st := f.State.(*stateT)
	lower := f.Lower()

	raw, err := format.ReadChunk(lower, 0)
	if err != nil {
		return nil, false, errors.Wrap(err, "rtp: reading packet")
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	if len(raw) < fixedHeaderLen {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrShortRead,
			"rtp: packet too short: %d bytes", len(raw))
	}

	b0 := raw[0]
	version := b0 >> 6
	if version != 2 {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrFormatMismatch,
			"rtp: unexpected version %d", version)
	}
	hasPadding := b0&0x20 != 0
	hasExtension := b0&0x10 != 0
	csrcCount := int(b0 & 0x0f)

	b1 := raw[1]
	h := Header{
		Version:        version,
		Marker:         b1&0x80 != 0,
		PayloadType:    b1 & 0x7f,
		SequenceNumber: binary.BigEndian.Uint16(raw[2:4]),
		Timestamp:      binary.BigEndian.Uint32(raw[4:8]),
		SSRC:           binary.BigEndian.Uint32(raw[8:12]),
		Padding:        NoPadding,
	}

	offset := fixedHeaderLen
	csrcEnd := offset + csrcCount*4
	if csrcEnd > len(raw) {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrShortRead,
			"rtp: csrc list of %d entries exceeds packet of %d bytes", csrcCount, len(raw))
	}
	if csrcCount > 0 {
		h.CSRC = make([]uint32, csrcCount)
		for i := 0; i < csrcCount; i++ {
			h.CSRC[i] = binary.BigEndian.Uint32(raw[offset : offset+4])
			offset += 4
		}
	}

	if hasExtension {
		if offset+4 > len(raw) {
			return nil, format.HasMoreData(lower), errors.Wrap(ovformat.ErrShortRead, "rtp: truncated extension header")
		}
		id := binary.BigEndian.Uint16(raw[offset : offset+2])
		lengthWords := binary.BigEndian.Uint16(raw[offset+2 : offset+4])
		offset += 4
		extLen := int(lengthWords) * 4
		if offset+extLen > len(raw) {
			return nil, format.HasMoreData(lower), errors.Wrap(ovformat.ErrShortRead, "rtp: truncated extension payload")
		}
		h.Extension = ExtensionHeader{Present: true, ID: id, Payload: raw[offset : offset+extLen]}
		offset += extLen
	}

	payload := raw[offset:]
	if hasPadding {
		if len(payload) == 0 {
			return nil, format.HasMoreData(lower), errors.Wrap(ovformat.ErrIntegrity, "rtp: padding bit set on empty payload")
		}
		padLen := int(payload[len(payload)-1])
		if padLen == 0 || padLen > len(payload) {
			return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrIntegrity, "rtp: invalid padding length %d", padLen)
		}
		h.Padding = padLen
		payload = payload[:len(payload)-padLen]
	}

	st.header = h
	return payload, format.HasMoreData(lower), nil
}

// New constructs an RTP decoder stacked over lower.
func New(lower *format.Format) (*format.Format, error) {
	return format.Wrap(lower, TypeName, Handler, nil)
}

// HeaderOf returns the header of the most recently decoded packet.
func HeaderOf(f *format.Format) Header {
	return f.State.(*stateT).header
}

// GetPadding reports the trailing padding octet count of the most
// recently decoded packet, or NoPadding if it carried none.
func GetPadding(f *format.Format) int {
	return f.State.(*stateT).header.Padding
}
