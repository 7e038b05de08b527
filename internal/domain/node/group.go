package node

import (
	"fmt"
	"strings"
)

// Group classifies who operates a node. COMMUNITY nodes are peer-operated,
// registered by local accounts and paid through the ledger; PUBLIC nodes are
// operator-imported gateways with no local owner and no earnings.
type Group string

const (
	GroupCommunity Group = "COMMUNITY"
	GroupPublic    Group = "PUBLIC"
)

// ParseGroup validates a group tag at the boundary.
func ParseGroup(s string) (Group, error) {
	g := Group(strings.ToUpper(strings.TrimSpace(s)))
	if !g.IsValid() {
		return "", fmt.Errorf("unknown node group: %s", s)
	}
	return g, nil
}

// IsValid reports whether the group is part of the closed vocabulary.
func (g Group) IsValid() bool {
	return g == GroupCommunity || g == GroupPublic
}

// String returns the group tag.
func (g Group) String() string { return string(g) }
