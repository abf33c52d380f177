package ovformat_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
	"github.com/openvocs/ovformat/pkg/ip"
	"github.com/openvocs/ovformat/pkg/pcap"
	"github.com/openvocs/ovformat/pkg/rtp"
	"github.com/openvocs/ovformat/pkg/udp"
)

func pcapGlobalHeader(linkType uint32) []byte {
	buf := make([]byte, 24)
	binary.BigEndian.PutUint32(buf[0:4], 0xa1b2c3d4)
	binary.BigEndian.PutUint16(buf[4:6], 2)
	binary.BigEndian.PutUint16(buf[6:8], 4)
	binary.BigEndian.PutUint32(buf[16:20], 65535)
	binary.BigEndian.PutUint32(buf[20:24], linkType)
	return buf
}

func pcapPacketRecord(payload []byte) []byte {
	hdr := make([]byte, 16)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(payload)))
	binary.BigEndian.PutUint32(hdr[12:16], uint32(len(payload)))
	return append(hdr, payload...)
}

func ethernetFrame(etherType uint16, payload []byte) []byte {
	frame := make([]byte, 14)
	binary.BigEndian.PutUint16(frame[12:14], etherType)
	return append(frame, payload...)
}

func rtpPacket(seq uint16, payload []byte) []byte {
	buf := []byte{0x80, 96, 0, 0}
	binary.BigEndian.PutUint16(buf[2:4], seq)
	buf = append(buf, 0, 0, 0, 1) // timestamp
	buf = append(buf, 0xde, 0xad, 0xbe, 0xef) // SSRC
	return append(buf, payload...)
}

func udpDatagram(srcPort, dstPort uint16, payload []byte) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint16(buf[0:2], srcPort)
	binary.BigEndian.PutUint16(buf[2:4], dstPort)
	binary.BigEndian.PutUint16(buf[4:6], uint16(8+len(payload)))
	return append(buf, payload...)
}

func ipv4Datagram(protocol uint8, payload []byte) []byte {
	buf := make([]byte, 20)
	buf[0] = (4 << 4) | 5
	binary.BigEndian.PutUint16(buf[2:4], uint16(20+len(payload)))
	buf[8] = 64
	buf[9] = protocol
	return append(buf, payload...)
}

func ipv6Datagram(nextHeader uint8, payload []byte) []byte {
	buf := make([]byte, 40)
	binary.BigEndian.PutUint32(buf[0:4], uint32(6)<<28)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(payload)))
	buf[6] = nextHeader
	buf[7] = 64
	return append(buf, payload...)
}

// TestPCAPEthernetIPv4UDPRTPTower decodes a full PCAP -> Ethernet ->
// Ethernet-IP dispatcher -> IPv4 -> UDP -> RTP stack, frame by frame.
func TestPCAPEthernetIPv4UDPRTPTower(t *testing.T) {
	rtpPayloads := [][]byte{{1, 2, 3}, {4, 5, 6, 7}}

	raw := pcapGlobalHeader(pcap.LinkTypeEthernet)
	for i, p := range rtpPayloads {
		rtpFrame := rtpPacket(uint16(i), p)
		udpFrame := udpDatagram(4000, 4001, rtpFrame)
		ipFrame := ipv4Datagram(17, udpFrame)
		ethFrame := ethernetFrame(0x0800, ipFrame)
		raw = append(raw, pcapPacketRecord(ethFrame)...)
	}

	leaf, err := format.FromMemory(ovformat.ModeRead, raw, 0)
	require.NoError(t, err)
	pcapFmt, err := pcap.New(leaf)
	require.NoError(t, err)
	dispatcher, err := pcap.CreateNetworkLayerFormat(pcapFmt)
	require.NoError(t, err)

	var rtpFmt *format.Format
	for i, want := range rtpPayloads {
		_, err := format.ReadChunk(dispatcher, 0)
		require.NoError(t, err)

		if rtpFmt == nil {
			ipv4Child := format.Get(dispatcher, ip.IPv4Type)
			require.NotNil(t, ipv4Child)
			udpFmt, err := udp.New(ipv4Child)
			require.NoError(t, err)
			rtpFmt, err = rtp.New(udpFmt)
			require.NoError(t, err)
		}

		got, err := format.ReadChunk(rtpFmt, 0)
		require.NoError(t, err)
		require.Equal(t, want, got, "packet %d", i)
		require.Equal(t, uint16(i), rtp.HeaderOf(rtpFmt).SequenceNumber)
	}
}

// TestEthernetIPDispatcherMixedTraffic feeds 6 IPv4 and 4 IPv6 Ethernet
// frames through a single dispatcher and checks both children kept an
// independent, accurate packet count.
func TestEthernetIPDispatcherMixedTraffic(t *testing.T) {
	raw := pcapGlobalHeader(pcap.LinkTypeEthernet)
	var sequence []bool // true = ipv4
	for i := 0; i < 6; i++ {
		ipFrame := ipv4Datagram(17, []byte{byte(i)})
		raw = append(raw, pcapPacketRecord(ethernetFrame(0x0800, ipFrame))...)
		sequence = append(sequence, true)
	}
	for i := 0; i < 4; i++ {
		ipFrame := ipv6Datagram(17, []byte{byte(i)})
		raw = append(raw, pcapPacketRecord(ethernetFrame(0x86dd, ipFrame))...)
		sequence = append(sequence, false)
	}

	leaf, err := format.FromMemory(ovformat.ModeRead, raw, 0)
	require.NoError(t, err)
	pcapFmt, err := pcap.New(leaf)
	require.NoError(t, err)
	dispatcher, err := pcap.CreateNetworkLayerFormat(pcapFmt)
	require.NoError(t, err)

	for range sequence {
		_, err := format.ReadChunk(dispatcher, 0)
		require.NoError(t, err)
	}

	ipv4Child := format.Get(dispatcher, ip.IPv4Type)
	ipv6Child := format.Get(dispatcher, ip.IPv6Type)
	require.NotNil(t, ipv4Child)
	require.NotNil(t, ipv6Child)
	require.Equal(t, 6, ip.IPv4PacketCountOf(ipv4Child))
	require.Equal(t, 4, ip.IPv6PacketCountOf(ipv6Child))
}
