package node

import (
	"context"
	"time"
)

// EligibilityFilter narrows the directory to nodes that can serve a connect
// request. Every field is ANDed; the country check additionally honors each
// node's allow/block lists, which live in the node row itself.
type EligibilityFilter struct {
	Group         *Group
	Protocol      *Protocol
	ClientCountry string
	// NodeCountry pins the node's own country (client country preference).
	NodeCountry *string
}

// GroupCount summarizes directory membership for transparency stats.
type GroupCount struct {
	Group  Group
	Total  int64
	Online int64
}

type NodeRepository interface {
	Create(ctx context.Context, node *Node) error
	GetByID(ctx context.Context, id uint) (*Node, error)
	GetBySID(ctx context.Context, sid string) (*Node, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*Node, error)
	GetByIdentityHash(ctx context.Context, identityHash string) (*Node, error)
	Update(ctx context.Context, node *Node) error

	ListByOwner(ctx context.Context, ownerID uint) ([]*Node, error)

	// ListEligible returns online, enabled nodes with free capacity and
	// unexhausted daily quota matching the filter, honoring per-node country
	// allow/block lists against the client country.
	ListEligible(ctx context.Context, filter EligibilityFilter) ([]*Node, error)

	// ReserveSlot atomically claims one capacity slot. It returns false when
	// the node is full, offline, or disabled by the time the conditional
	// update runs: the caller lost the reservation race.
	ReserveSlot(ctx context.Context, nodeID uint) (bool, error)

	// ReleaseSlot atomically returns one capacity slot, never driving the
	// counter below zero. Idempotence is guaranteed by the caller holding the
	// session close flip, not by this call.
	ReleaseSlot(ctx context.Context, nodeID uint) error

	// ListStaleOnline returns online nodes of the group whose last heartbeat
	// predates the cutoff; the liveness sweep demotes them.
	ListStaleOnline(ctx context.Context, group Group, cutoff time.Time) ([]*Node, error)

	// ListOfflineSince returns offline community nodes seen within the
	// horizon, for continued reputation decay while they stay silent.
	ListOfflineSince(ctx context.Context, horizon time.Time) ([]*Node, error)

	// AddDailyTraffic atomically adds flushed relay bytes to the node's
	// daily counter.
	AddDailyTraffic(ctx context.Context, nodeID uint, bytes uint64) error

	// ResetDailyTraffic zeroes every node's daily counter at UTC midnight.
	ResetDailyTraffic(ctx context.Context) (int64, error)

	// CountByGroup aggregates directory totals for transparency stats.
	CountByGroup(ctx context.Context) ([]GroupCount, error)
}
