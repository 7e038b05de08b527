package usecases

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/worldvpn/broker/internal/shared/errors"
)

// maxAllocateAttempts bounds the random probing before the allocator reports
// pool exhaustion. With a /16 pool and realistic session counts collisions
// are rare; exhausting the attempts means the pool really is nearly full.
const maxAllocateAttempts = 64

// VirtualIPAllocator issues tunnel-internal addresses from the configured
// pool. Addresses are drawn randomly and checked against the IPs held by open
// sessions; the network, gateway, and broadcast addresses are never issued.
type VirtualIPAllocator struct {
	prefix netip.Prefix
}

func NewVirtualIPAllocator(cidr string) (*VirtualIPAllocator, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid virtual IP pool %q: %w", cidr, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("virtual IP pool must be IPv4, got %s", cidr)
	}
	if prefix.Bits() > 24 {
		return nil, fmt.Errorf("virtual IP pool %s is too small, need at least a /24", cidr)
	}
	return &VirtualIPAllocator{prefix: prefix.Masked()}, nil
}

// Allocate picks an unused address. taken holds the addresses currently bound
// to open sessions.
func (a *VirtualIPAllocator) Allocate(taken []string) (string, error) {
	inUse := make(map[string]struct{}, len(taken))
	for _, ip := range taken {
		inUse[ip] = struct{}{}
	}

	base := binary.BigEndian.Uint32(a.prefix.Addr().AsSlice())
	hostBits := 32 - a.prefix.Bits()
	poolSize := uint32(1) << hostBits

	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("failed to draw random address: %w", err)
		}
		offset := binary.BigEndian.Uint32(buf[:]) % poolSize

		// Skip the network address, the conventional gateway (.1), and the
		// broadcast address.
		if offset <= 1 || offset == poolSize-1 {
			continue
		}

		var addrBytes [4]byte
		binary.BigEndian.PutUint32(addrBytes[:], base+offset)
		candidate := netip.AddrFrom4(addrBytes).String()

		if _, used := inUse[candidate]; !used {
			return candidate, nil
		}
	}

	return "", errors.NewInternalError("virtual IP pool exhausted")
}
