// Package udp implements the UDP datagram decoder: an 8-octet header
// (source port, destination port, length, checksum) followed by payload.
package udp

import (
	"encoding/binary"

	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

// TypeName is the tag this package registers its handler under.
const TypeName = "udp"

const headerLen = 8

// Header is the parsed header of the datagram most recently delivered
// by NextChunk.
type Header struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}

type state struct {
	header Header
}

// Handler is the format.Handler for the UDP decoder.
var Handler = format.Handler{
	CreateData: createData,
	NextChunk:  nextChunk,
	FreeData:   freeData,
}

func createData(_ *format.Format, _ any) (any, error) {
	return &state{}, nil
}

func freeData(_ *format.Format) error { return nil }

func nextChunk(f *format.Format, _ int) ([]byte, bool, error) {
	st := f.State.(*state)
	lower := f.Lower()

	raw, err := format.ReadChunk(lower, 0)
	if err != nil {
		return nil, false, errors.Wrap(err, "udp: reading datagram")
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	if len(raw) < headerLen {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrShortRead,
			"udp: datagram too short: %d bytes", len(raw))
	}

	h := Header{
		SrcPort:  binary.BigEndian.Uint16(raw[0:2]),
		DstPort:  binary.BigEndian.Uint16(raw[2:4]),
		Length:   binary.BigEndian.Uint16(raw[4:6]),
		Checksum: binary.BigEndian.Uint16(raw[6:8]),
	}
	if int(h.Length) != len(raw) {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrIntegrity,
			"udp: length field %d does not match datagram of %d bytes", h.Length, len(raw))
	}

	st.header = h
	return raw[headerLen:], format.HasMoreData(lower), nil
}

// New constructs a UDP decoder stacked over lower.
func New(lower *format.Format) (*format.Format, error) {
	return format.Wrap(lower, TypeName, Handler, nil)
}

// HeaderOf returns the header of the most recently decoded datagram.
func HeaderOf(f *format.Format) Header {
	return f.State.(*state).header
}
