package ledger

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ReputationTier grants an earn multiplier to nodes at or above a reputation
// threshold. Tiers are matched highest threshold first.
type ReputationTier struct {
	MinReputation float64 `yaml:"min_reputation"`
	Multiplier    float64 `yaml:"multiplier"`
}

// SettlementPolicy is the bytes-to-credits rate table. It is configuration,
// not code: the broker loads it from configs/policy.yaml at boot and rejects
// tables that could mint negative or runaway amounts.
type SettlementPolicy struct {
	BytesPerCredit  int64              `yaml:"bytes_per_credit"`
	ShareMultiplier float64            `yaml:"share_multiplier"`
	TrafficClasses  map[string]float64 `yaml:"traffic_classes"`
	ReputationBonus []ReputationTier   `yaml:"reputation_bonus"`
}

// LoadPolicy reads and validates a settlement policy file.
func LoadPolicy(path string) (*SettlementPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settlement policy: %w", err)
	}

	var policy SettlementPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse settlement policy: %w", err)
	}

	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settlement policy: %w", err)
	}

	// Highest threshold first so the first match wins.
	sort.Slice(policy.ReputationBonus, func(i, j int) bool {
		return policy.ReputationBonus[i].MinReputation > policy.ReputationBonus[j].MinReputation
	})

	return &policy, nil
}

// Validate rejects rate tables that would break ledger invariants.
func (p *SettlementPolicy) Validate() error {
	if p.BytesPerCredit <= 0 {
		return fmt.Errorf("bytes_per_credit must be positive, got %d", p.BytesPerCredit)
	}
	if p.ShareMultiplier < 0 {
		return fmt.Errorf("share_multiplier must not be negative, got %f", p.ShareMultiplier)
	}
	if len(p.TrafficClasses) == 0 {
		return fmt.Errorf("at least one traffic class multiplier is required")
	}
	for class, mult := range p.TrafficClasses {
		if mult < 0 {
			return fmt.Errorf("traffic class %s multiplier must not be negative, got %f", class, mult)
		}
	}
	for _, tier := range p.ReputationBonus {
		if tier.Multiplier < 0 {
			return fmt.Errorf("reputation bonus multiplier must not be negative, got %f", tier.Multiplier)
		}
		if tier.MinReputation < 0 || tier.MinReputation > 100 {
			return fmt.Errorf("reputation bonus threshold must be within [0,100], got %f", tier.MinReputation)
		}
	}
	return nil
}

// ClassMultiplier returns the spend multiplier for a traffic class, or an
// error for classes absent from the table.
func (p *SettlementPolicy) ClassMultiplier(class string) (float64, error) {
	mult, ok := p.TrafficClasses[class]
	if !ok {
		return 0, fmt.Errorf("traffic class %s is not in the settlement policy", class)
	}
	return mult, nil
}

// Spend computes the client-side credit cost for relayed bytes of the given
// traffic class. The result is never negative.
func (p *SettlementPolicy) Spend(bytes uint64, class string) (int64, error) {
	mult, err := p.ClassMultiplier(class)
	if err != nil {
		return 0, err
	}
	spend := math.Floor(float64(bytes) / float64(p.BytesPerCredit) * mult)
	if spend < 0 {
		return 0, nil
	}
	return int64(spend), nil
}

// Earn computes the node-operator credit for a given client spend, applying
// the share multiplier and the node's reputation bonus tier. EARNED is
// deliberately non-zero-sum against SPENT: the share multiplier mints the
// sharing incentive.
func (p *SettlementPolicy) Earn(spend int64, reputation float64) int64 {
	if spend <= 0 {
		return 0
	}
	bonus := 1.0
	for _, tier := range p.ReputationBonus {
		if reputation >= tier.MinReputation {
			bonus = tier.Multiplier
			break
		}
	}
	return int64(math.Floor(float64(spend) * p.ShareMultiplier * bonus))
}
