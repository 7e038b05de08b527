package vpngate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `*vpn_servers
#HostName,IP,Score,Ping,Speed,CountryLong,CountryShort,NumVpnSessions,Uptime,TotalUsers,TotalTraffic,LogType,Operator,Message,OpenVPN_ConfigData_Base64
vpn100000001,219.100.37.1,500000,12,25000000,Japan,JP,5,86400,1000,999999,2weeks,volunteer,,b64data
vpn100000002,91.207.102.2,900000,40,50000000,Germany,DE,12,172800,5000,888888,2weeks,volunteer,,b64data
badrow,,,,
vpn100000003,142.250.64.3,100000,200,1000000,United States,US,1,3600,10,777,2weeks,volunteer,,b64data
*
`

func TestParseFeed(t *testing.T) {
	entries, err := ParseFeed(strings.NewReader(sampleFeed))
	require.NoError(t, err)
	require.Len(t, entries, 3, "malformed rows are skipped")

	// Sorted by score descending.
	assert.Equal(t, "vpn100000002", entries[0].HostName)
	assert.Equal(t, "DE", entries[0].CountryCode)
	assert.Equal(t, int64(900000), entries[0].Score)
	assert.Equal(t, uint(400), entries[0].SpeedMbps())

	assert.Equal(t, "vpn100000001", entries[1].HostName)
	assert.Equal(t, "vpn100000003", entries[2].HostName)
	assert.Equal(t, "US", entries[2].CountryCode)
}

func TestParseFeedEmpty(t *testing.T) {
	_, err := ParseFeed(strings.NewReader("*vpn_servers\n#HostName,IP\n*\n"))
	assert.Error(t, err)

	_, err = ParseFeed(strings.NewReader(""))
	assert.Error(t, err)
}

func TestSeedReputations(t *testing.T) {
	entries, err := ParseFeed(strings.NewReader(sampleFeed))
	require.NoError(t, err)

	seeds := SeedReputations(entries)
	require.Len(t, seeds, 3)

	assert.InDelta(t, 90.0, seeds[0], 0.001, "best score seeds highest")
	assert.InDelta(t, 55.0, seeds[1], 0.001)
	assert.InDelta(t, 20.0, seeds[2], 0.001, "worst score seeds lowest")

	single := SeedReputations(entries[:1])
	assert.InDelta(t, 90.0, single[0], 0.001)
}
