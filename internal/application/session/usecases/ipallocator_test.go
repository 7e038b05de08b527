package usecases

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVirtualIPAllocator_RejectsBadPools(t *testing.T) {
	tests := []struct {
		name string
		cidr string
	}{
		{"not a cidr", "10.8.0.0"},
		{"ipv6 pool", "fd00::/64"},
		{"too small", "10.8.0.0/30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVirtualIPAllocator(tt.cidr)
			assert.Error(t, err)
		})
	}
}

func TestVirtualIPAllocator_AllocatesWithinPool(t *testing.T) {
	allocator, err := NewVirtualIPAllocator("10.8.0.0/24")
	require.NoError(t, err)

	prefix := netip.MustParsePrefix("10.8.0.0/24")
	for i := 0; i < 50; i++ {
		ip, err := allocator.Allocate(nil)
		require.NoError(t, err)

		addr, err := netip.ParseAddr(ip)
		require.NoError(t, err)
		assert.True(t, prefix.Contains(addr), "allocated %s outside pool", ip)

		assert.False(t, strings.HasSuffix(ip, ".0"), "network address issued")
		assert.NotEqual(t, "10.8.0.1", ip, "gateway address issued")
		assert.NotEqual(t, "10.8.0.255", ip, "broadcast address issued")
	}
}

func TestVirtualIPAllocator_SkipsTakenAddresses(t *testing.T) {
	allocator, err := NewVirtualIPAllocator("10.8.0.0/24")
	require.NoError(t, err)

	// Mark everything taken except one host address.
	taken := make([]string, 0, 254)
	free := "10.8.0.42"
	for i := 2; i < 255; i++ {
		ip := netip.AddrFrom4([4]byte{10, 8, 0, byte(i)}).String()
		if ip != free {
			taken = append(taken, ip)
		}
	}

	// Random probing may need several rounds to land on the one free slot.
	found := false
	for attempt := 0; attempt < 20 && !found; attempt++ {
		ip, err := allocator.Allocate(taken)
		if err != nil {
			continue
		}
		assert.Equal(t, free, ip)
		found = true
	}
	assert.True(t, found, "allocator never found the free address")
}

func TestVirtualIPAllocator_ReportsExhaustion(t *testing.T) {
	allocator, err := NewVirtualIPAllocator("10.8.0.0/24")
	require.NoError(t, err)

	taken := make([]string, 0, 254)
	for i := 2; i < 255; i++ {
		taken = append(taken, netip.AddrFrom4([4]byte{10, 8, 0, byte(i)}).String())
	}

	_, err = allocator.Allocate(taken)
	assert.Error(t, err)
}
