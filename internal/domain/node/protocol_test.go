package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProtocol(t *testing.T) {
	p, err := ParseProtocol("wireguard")
	require.NoError(t, err)
	assert.Equal(t, ProtocolWireGuard, p)

	p, err = ParseProtocol(" Hysteria2 ")
	require.NoError(t, err)
	assert.Equal(t, ProtocolHysteria2, p)

	_, err = ParseProtocol("pptp")
	assert.Error(t, err, "retired protocols are not in the vocabulary")

	_, err = ParseProtocol("")
	assert.Error(t, err)
}

func TestDefaultPorts(t *testing.T) {
	assert.Equal(t, 51820, ProtocolWireGuard.DefaultPort())
	assert.Equal(t, 8388, ProtocolShadowsocks.DefaultPort())
	assert.Equal(t, 443, ProtocolOpenVPNTCP.DefaultPort())
	assert.Equal(t, 1194, ProtocolOpenVPNUDP.DefaultPort())
	assert.Equal(t, 500, ProtocolIKEv2.DefaultPort())
	assert.Equal(t, 32400, ProtocolHysteria2.DefaultPort())
}

func TestStealthClassification(t *testing.T) {
	assert.True(t, ProtocolShadowsocks.IsStealth())
	assert.True(t, ProtocolHysteria2.IsStealth())
	assert.False(t, ProtocolWireGuard.IsStealth())
	assert.False(t, ProtocolOpenVPNTCP.IsStealth())
}

func TestParseProtocolSet(t *testing.T) {
	set, err := ParseProtocolSet([]string{"WIREGUARD", "wireguard", "SHADOWSOCKS"})
	require.NoError(t, err)
	assert.Len(t, set, 2, "duplicates collapse")
	assert.True(t, set.Contains(ProtocolWireGuard))
	assert.True(t, set.HasStealth())

	_, err = ParseProtocolSet(nil)
	assert.Error(t, err)

	_, err = ParseProtocolSet([]string{"WIREGUARD", "bogus"})
	assert.Error(t, err)
}
