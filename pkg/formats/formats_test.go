package formats_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openvocs/ovformat/pkg/format"
	"github.com/openvocs/ovformat/pkg/formats"
	"github.com/openvocs/ovformat/pkg/pcap"
)

func TestRegisterDefault(t *testing.T) {
	reg := format.NewRegistry()
	require.NoError(t, formats.RegisterDefault(reg))

	for _, name := range []string{
		"pcap", "ethernet", "ethernet_ip", "linux_sll",
		"ipv4", "ipv6", "udp", "rtp", "wav", "ogg", "oggopus", "codecadapter",
	} {
		_, ok := reg.Lookup(name)
		require.True(t, ok, "expected %q registered", name)
	}

	_, ok := reg.Lookup(pcap.TypeName)
	require.True(t, ok)
}

func TestRegisterDefaultRejectsDoubleCall(t *testing.T) {
	reg := format.NewRegistry()
	require.NoError(t, formats.RegisterDefault(reg))
	require.Error(t, formats.RegisterDefault(reg))
}
