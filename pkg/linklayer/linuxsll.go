package linklayer

import (
	"encoding/binary"

	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

// LinuxSLLType is the tag the Linux "cooked capture" decoder registers
// under (PCAP link type 113).
const LinuxSLLType = "linux_sll"

const linuxSLLHeaderLen = 16

// LinuxSLLHeader is the parsed 16-octet SLL pseudo-header of the frame
// most recently delivered by NextChunk.
type LinuxSLLHeader struct {
	PacketType   uint16
	ARPHRDType   uint16
	AddressLen   uint16
	Address      [8]byte
	Protocol     uint16
}

type linuxSLLState struct {
	header LinuxSLLHeader
}

// LinuxSLLHandler is the format.Handler for the Linux cooked-capture
// decoder.
var LinuxSLLHandler = format.Handler{
	CreateData: linuxSLLCreateData,
	NextChunk:  linuxSLLNextChunk,
	FreeData:   linuxSLLFreeData,
}

func linuxSLLCreateData(_ *format.Format, _ any) (any, error) {
	return &linuxSLLState{}, nil
}

func linuxSLLFreeData(_ *format.Format) error { return nil }

func linuxSLLNextChunk(f *format.Format, _ int) ([]byte, bool, error) {
	st := f.State.(*linuxSLLState)
	lower := f.Lower()

	raw, err := format.ReadChunk(lower, 0)
	if err != nil {
		return nil, false, errors.Wrap(err, "linux_sll: reading frame")
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	if len(raw) < linuxSLLHeaderLen {
		return nil, format.HasMoreData(lower), errors.Wrapf(ovformat.ErrShortRead,
			"linux_sll: frame too short: %d bytes", len(raw))
	}

	var h LinuxSLLHeader
	h.PacketType = binary.BigEndian.Uint16(raw[0:2])
	h.ARPHRDType = binary.BigEndian.Uint16(raw[2:4])
	h.AddressLen = binary.BigEndian.Uint16(raw[4:6])
	copy(h.Address[:], raw[6:14])
	h.Protocol = binary.BigEndian.Uint16(raw[14:16])

	st.header = h
	return raw[linuxSLLHeaderLen:], format.HasMoreData(lower), nil
}

// NewLinuxSLL constructs a Linux cooked-capture decoder stacked over
// lower.
func NewLinuxSLL(lower *format.Format) (*format.Format, error) {
	return format.Wrap(lower, LinuxSLLType, LinuxSLLHandler, nil)
}

// LinuxSLLHeaderOf returns the header of the most recently decoded frame.
func LinuxSLLHeaderOf(f *format.Format) LinuxSLLHeader {
	return f.State.(*linuxSLLState).header
}
