// Package formats is the single place that knows about every concrete
// wire format this module ships, registering them into a pkg/format
// Registry. It exists purely to avoid the import cycle a RegisterDefault
// function would otherwise create: pkg/pcap, pkg/linklayer, pkg/ip,
// pkg/udp, pkg/rtp, pkg/wav, pkg/ogg and pkg/oggopus all import
// pkg/format (for the Format and Handler types they plug into), so
// pkg/format itself cannot import them back.
//
// Grounded on the teacher's own top-level wiring package
// (github.com/pion/webrtc, which composes pkg/ice, pkg/dtls, pkg/sctp
// etc. behind a single PeerConnection without any of those subpackages
// knowing about each other) — here the composition root is a registry
// population function instead of a connection object.
package formats

import (
	"github.com/openvocs/ovformat/pkg/codecadapter"
	"github.com/openvocs/ovformat/pkg/format"
	"github.com/openvocs/ovformat/pkg/ip"
	"github.com/openvocs/ovformat/pkg/linklayer"
	"github.com/openvocs/ovformat/pkg/ogg"
	"github.com/openvocs/ovformat/pkg/oggopus"
	"github.com/openvocs/ovformat/pkg/pcap"
	"github.com/openvocs/ovformat/pkg/rtp"
	"github.com/openvocs/ovformat/pkg/udp"
	"github.com/openvocs/ovformat/pkg/wav"
)

// RegisterDefault registers every format this module ships into reg, in
// the protocol-tower order spec.md §4.3 names for the capture path
// (pcap, ethernet, ethernet_ip, linux_sll, ipv4, ipv6, udp, rtp),
// followed by the standalone container/profile formats.
func RegisterDefault(reg *format.Registry) error {
	type entry struct {
		name    string
		handler format.Handler
	}
	entries := []entry{
		{pcap.TypeName, pcap.Handler},
		{linklayer.EthernetType, linklayer.EthernetHandler},
		{linklayer.EthernetIPType, linklayer.EthernetIPHandler},
		{linklayer.LinuxSLLType, linklayer.LinuxSLLHandler},
		{ip.IPv4Type, ip.IPv4Handler},
		{ip.IPv6Type, ip.IPv6Handler},
		{udp.TypeName, udp.Handler},
		{rtp.TypeName, rtp.Handler},
		{wav.TypeName, wav.Handler},
		{ogg.TypeName, ogg.Handler},
		{oggopus.TypeName, oggopus.Handler},
		{codecadapter.TypeName, codecadapter.Handler},
	}
	for _, e := range entries {
		if err := reg.Register(e.name, e.handler); err != nil {
			return err
		}
	}
	return nil
}
