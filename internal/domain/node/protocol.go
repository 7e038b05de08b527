package node

import (
	"fmt"
	"strings"
)

// Protocol is the closed set of tunnel protocols a node can terminate. The
// broker never speaks these protocols itself; the tag only drives matching
// and the advertised endpoint port.
type Protocol string

const (
	ProtocolWireGuard   Protocol = "WIREGUARD"
	ProtocolShadowsocks Protocol = "SHADOWSOCKS"
	ProtocolOpenVPNTCP  Protocol = "OPENVPN_TCP"
	ProtocolOpenVPNUDP  Protocol = "OPENVPN_UDP"
	ProtocolIKEv2       Protocol = "IKEV2"
	ProtocolHysteria2   Protocol = "HYSTERIA2"
)

// AllProtocols lists the closed vocabulary in a stable order.
func AllProtocols() []Protocol {
	return []Protocol{
		ProtocolWireGuard,
		ProtocolShadowsocks,
		ProtocolOpenVPNTCP,
		ProtocolOpenVPNUDP,
		ProtocolIKEv2,
		ProtocolHysteria2,
	}
}

// ParseProtocol validates a protocol tag at the boundary.
func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown protocol: %s", s)
	}
	return p, nil
}

// IsValid reports whether the protocol is part of the closed vocabulary.
func (p Protocol) IsValid() bool {
	switch p {
	case ProtocolWireGuard, ProtocolShadowsocks, ProtocolOpenVPNTCP,
		ProtocolOpenVPNUDP, ProtocolIKEv2, ProtocolHysteria2:
		return true
	}
	return false
}

// String returns the protocol tag.
func (p Protocol) String() string { return string(p) }

// DefaultPort returns the conventional endpoint port for the protocol.
func (p Protocol) DefaultPort() int {
	switch p {
	case ProtocolWireGuard:
		return 51820
	case ProtocolShadowsocks:
		return 8388
	case ProtocolOpenVPNTCP:
		return 443
	case ProtocolOpenVPNUDP:
		return 1194
	case ProtocolIKEv2:
		return 500
	case ProtocolHysteria2:
		return 32400
	}
	return 0
}

// IsStealth reports whether the protocol resists traffic classification.
// Clients in censored countries are steered toward stealth-capable nodes.
func (p Protocol) IsStealth() bool {
	return p == ProtocolShadowsocks || p == ProtocolHysteria2
}

// ProtocolSet is an unordered set of supported protocols.
type ProtocolSet []Protocol

// ParseProtocolSet validates a list of protocol tags, rejecting duplicates.
func ParseProtocolSet(tags []string) (ProtocolSet, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("at least one protocol is required")
	}
	seen := make(map[Protocol]struct{}, len(tags))
	set := make(ProtocolSet, 0, len(tags))
	for _, tag := range tags {
		p, err := ParseProtocol(tag)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		set = append(set, p)
	}
	return set, nil
}

// Contains reports whether the set includes the protocol.
func (s ProtocolSet) Contains(p Protocol) bool {
	for _, member := range s {
		if member == p {
			return true
		}
	}
	return false
}

// HasStealth reports whether any member protocol is stealth-capable.
func (s ProtocolSet) HasStealth() bool {
	for _, member := range s {
		if member.IsStealth() {
			return true
		}
	}
	return false
}

// Strings returns the tags for persistence and transport.
func (s ProtocolSet) Strings() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = string(p)
	}
	return out
}
