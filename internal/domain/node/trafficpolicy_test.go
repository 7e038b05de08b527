package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowsCountry(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		blocked []string
		country string
		want    bool
	}{
		{"empty lists admit everyone", nil, nil, "FR", true},
		{"wildcard admits everyone", []string{"*"}, nil, "US", true},
		{"blocked always loses", []string{"*"}, []string{"US"}, "US", false},
		{"block beats allow", []string{"US"}, []string{"US"}, "US", false},
		{"non-wildcard allow includes", []string{"FR", "DE"}, nil, "DE", true},
		{"non-wildcard allow excludes", []string{"FR", "DE"}, nil, "JP", false},
		{"case insensitive", []string{"fr"}, nil, "fr", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTrafficPolicy(tt.allowed, tt.blocked, true, true, 0)
			assert.Equal(t, tt.want, p.AllowsCountry(tt.country))
		})
	}
}

func TestAllowsClass(t *testing.T) {
	p := NewTrafficPolicy(nil, nil, true, false, 0)

	ok, err := p.AllowsClass("STANDARD")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.AllowsClass("STREAMING")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.AllowsClass("TORRENT")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.AllowsClass("MYSTERY")
	assert.Error(t, err, "unknown classes are rejected, not defaulted")
}
