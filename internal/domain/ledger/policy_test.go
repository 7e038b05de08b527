package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validPolicy = `
bytes_per_credit: 1048576
share_multiplier: 1.2
traffic_classes:
  STANDARD: 1.0
  STREAMING: 1.5
  TORRENT: 2.0
reputation_bonus:
  - min_reputation: 70
    multiplier: 1.05
  - min_reputation: 90
    multiplier: 1.10
`

func TestLoadPolicy(t *testing.T) {
	policy, err := LoadPolicy(writePolicy(t, validPolicy))
	require.NoError(t, err)

	assert.Equal(t, int64(1048576), policy.BytesPerCredit)
	assert.InDelta(t, 1.2, policy.ShareMultiplier, 1e-9)

	// Tiers are sorted highest threshold first regardless of file order.
	require.Len(t, policy.ReputationBonus, 2)
	assert.InDelta(t, 90.0, policy.ReputationBonus[0].MinReputation, 1e-9)
}

func TestLoadPolicyRejectsNegativeMultiplier(t *testing.T) {
	_, err := LoadPolicy(writePolicy(t, `
bytes_per_credit: 1048576
share_multiplier: -0.5
traffic_classes:
  STANDARD: 1.0
`))
	assert.Error(t, err)

	_, err = LoadPolicy(writePolicy(t, `
bytes_per_credit: 1048576
share_multiplier: 1.0
traffic_classes:
  STANDARD: -1.0
`))
	assert.Error(t, err)
}

func TestLoadPolicyRejectsNonPositiveRate(t *testing.T) {
	_, err := LoadPolicy(writePolicy(t, `
bytes_per_credit: 0
share_multiplier: 1.0
traffic_classes:
  STANDARD: 1.0
`))
	assert.Error(t, err)
}

func TestSpend(t *testing.T) {
	policy, err := LoadPolicy(writePolicy(t, validPolicy))
	require.NoError(t, err)

	// 10 MiB of STANDARD traffic at 1 MiB per credit.
	spend, err := policy.Spend(10*1048576, "STANDARD")
	require.NoError(t, err)
	assert.Equal(t, int64(10), spend)

	// STREAMING carries a 1.5x multiplier.
	spend, err = policy.Spend(10*1048576, "STREAMING")
	require.NoError(t, err)
	assert.Equal(t, int64(15), spend)

	// Sub-credit amounts floor to zero.
	spend, err = policy.Spend(1024, "STANDARD")
	require.NoError(t, err)
	assert.Equal(t, int64(0), spend)

	_, err = policy.Spend(1048576, "CARRIER_PIGEON")
	assert.Error(t, err, "unknown traffic classes must be rejected")
}

func TestEarn(t *testing.T) {
	policy, err := LoadPolicy(writePolicy(t, validPolicy))
	require.NoError(t, err)

	// Base share multiplier only.
	assert.Equal(t, int64(12), policy.Earn(10, 50))

	// 70+ reputation tier adds 5%.
	assert.Equal(t, int64(12), policy.Earn(10, 75))

	// 90+ tier adds 10%: floor(10 * 1.2 * 1.1) = 13.
	assert.Equal(t, int64(13), policy.Earn(10, 95))

	assert.Equal(t, int64(0), policy.Earn(0, 95))
	assert.Equal(t, int64(0), policy.Earn(-5, 95))
}
