package node

import (
	"fmt"
	"strings"
)

// CountryWildcard in the allow-list admits clients from any country.
const CountryWildcard = "*"

// TrafficPolicy is the operator-declared constraint set for a node: which
// client countries it serves, which traffic classes it tolerates, and its
// daily relay budget.
type TrafficPolicy struct {
	allowedCountries []string
	blockedCountries []string
	allowStreaming   bool
	allowTorrents    bool
	dailyByteCap     uint64
}

// NewTrafficPolicy builds a policy. Country lists hold ISO alpha-2 codes
// (validated at the boundary); an empty or wildcard allow-list admits every
// country not explicitly blocked. A dailyByteCap of zero means unlimited.
func NewTrafficPolicy(allowed, blocked []string, allowStreaming, allowTorrents bool, dailyByteCap uint64) TrafficPolicy {
	return TrafficPolicy{
		allowedCountries: normalizeCountries(allowed),
		blockedCountries: normalizeCountries(blocked),
		allowStreaming:   allowStreaming,
		allowTorrents:    allowTorrents,
		dailyByteCap:     dailyByteCap,
	}
}

func normalizeCountries(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// AllowedCountries returns the allow-list.
func (p TrafficPolicy) AllowedCountries() []string { return p.allowedCountries }

// BlockedCountries returns the block-list.
func (p TrafficPolicy) BlockedCountries() []string { return p.blockedCountries }

// AllowStreaming reports whether streaming-classified traffic is permitted.
func (p TrafficPolicy) AllowStreaming() bool { return p.allowStreaming }

// AllowTorrents reports whether torrent-classified traffic is permitted.
func (p TrafficPolicy) AllowTorrents() bool { return p.allowTorrents }

// DailyByteCap returns the daily relay budget in bytes; zero means unlimited.
func (p TrafficPolicy) DailyByteCap() uint64 { return p.dailyByteCap }

// AllowsCountry reports whether a client from the given country may use the
// node: blocked codes always lose, then a non-wildcard allow-list must
// include the code.
func (p TrafficPolicy) AllowsCountry(countryCode string) bool {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))

	for _, blocked := range p.blockedCountries {
		if blocked == countryCode {
			return false
		}
	}

	if len(p.allowedCountries) == 0 {
		return true
	}
	for _, allowed := range p.allowedCountries {
		if allowed == CountryWildcard || allowed == countryCode {
			return true
		}
	}
	return false
}

// AllowsClass reports whether the traffic class tag is permitted. Unknown
// tags are rejected rather than defaulted.
func (p TrafficPolicy) AllowsClass(class string) (bool, error) {
	switch strings.ToUpper(class) {
	case "STANDARD":
		return true, nil
	case "STREAMING":
		return p.allowStreaming, nil
	case "TORRENT":
		return p.allowTorrents, nil
	}
	return false, fmt.Errorf("unknown traffic class: %s", class)
}
