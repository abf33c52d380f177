package linklayer

import (
	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
	"github.com/openvocs/ovformat/pkg/ip"
)

// EthernetIPType is the tag the Ethernet-IP dispatcher registers under.
// It sits directly over an "ethernet" node and owns a child IPv4 and a
// child IPv6 decoder, picking between them per frame by EtherType.
const EthernetIPType = "ethernet_ip"

type dispatcherState struct {
	ipv4   *format.Format
	ipv6   *format.Format
	active *format.Format
}

// EthernetIPHandler is the format.Handler for the dispatcher.
var EthernetIPHandler = format.Handler{
	CreateData:     dispatcherCreateData,
	NextChunk:      dispatcherNextChunk,
	ResponsibleFor: dispatcherResponsibleFor,
	FreeData:       dispatcherFreeData,
}

func dispatcherCreateData(lower *format.Format, _ any) (any, error) {
	if lower.TypeTag() != EthernetType {
		return nil, errors.Wrap(ovformat.ErrInvalidArgument, "ethernet_ip: lower must be an ethernet format")
	}
	return &dispatcherState{}, nil
}

// dispatcherFreeData closes the cached child decoders, which root a
// separate stack over their own Buffered leaf rather than over f.lower,
// so format.Close's normal downward recursion never reaches them.
func dispatcherFreeData(f *format.Format) error {
	st := f.State.(*dispatcherState)
	if st.ipv4 != nil {
		if err := format.Close(st.ipv4); err != nil {
			return err
		}
	}
	if st.ipv6 != nil {
		if err := format.Close(st.ipv6); err != nil {
			return err
		}
	}
	return nil
}

func dispatcherNextChunk(f *format.Format, _ int) ([]byte, bool, error) {
	st := f.State.(*dispatcherState)
	eth := f.Lower()

	payload, err := format.ReadChunk(eth, 0)
	if err != nil {
		return nil, false, errors.Wrap(err, "ethernet_ip: reading frame")
	}
	if len(payload) == 0 {
		st.active = nil
		return nil, false, nil
	}

	header := EthernetHeaderOf(eth)
	if !header.TypeSet {
		return nil, format.HasMoreData(eth), errors.Wrap(ovformat.ErrFormatMismatch,
			"ethernet_ip: frame carries a length field, not an EtherType")
	}

	var child *format.Format
	switch header.Type {
	case EtherTypeIPv4:
		if st.ipv4 == nil {
			leaf := format.Buffered(payload)
			created, err := ip.NewIPv4(leaf)
			if err != nil {
				return nil, format.HasMoreData(eth), err
			}
			st.ipv4 = created
		} else if !format.BufferedUpdate(st.ipv4, payload) {
			return nil, format.HasMoreData(eth), errors.Wrap(ovformat.ErrInvalidArgument, "ethernet_ip: ipv4 child has no buffered leaf")
		}
		child = st.ipv4
	case EtherTypeIPv6:
		if st.ipv6 == nil {
			leaf := format.Buffered(payload)
			created, err := ip.NewIPv6(leaf)
			if err != nil {
				return nil, format.HasMoreData(eth), err
			}
			st.ipv6 = created
		} else if !format.BufferedUpdate(st.ipv6, payload) {
			return nil, format.HasMoreData(eth), errors.Wrap(ovformat.ErrInvalidArgument, "ethernet_ip: ipv6 child has no buffered leaf")
		}
		child = st.ipv6
	default:
		st.active = nil
		return nil, format.HasMoreData(eth), errors.Wrapf(ovformat.ErrFormatMismatch,
			"ethernet_ip: unsupported ethertype 0x%04x", header.Type)
	}

	st.active = child
	out, err := format.ReadChunk(child, 0)
	if err != nil {
		return nil, format.HasMoreData(eth), err
	}
	return out, format.HasMoreData(eth), nil
}

func dispatcherResponsibleFor(f *format.Format, typeName string) *format.Format {
	st := f.State.(*dispatcherState)
	switch typeName {
	case ip.IPv4Type:
		return st.ipv4
	case ip.IPv6Type:
		return st.ipv6
	}
	return nil
}

// NewEthernetIP constructs the Ethernet-IP dispatcher stacked directly
// over an Ethernet decoder.
func NewEthernetIP(ethernet *format.Format) (*format.Format, error) {
	return format.Wrap(ethernet, EthernetIPType, EthernetIPHandler, nil)
}
