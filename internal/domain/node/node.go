// Package node holds the relay node aggregate: the directory entry the
// matcher selects from, the liveness state the heartbeat monitor reconciles,
// and the quality metrics that feed ranking and settlement bonuses.
package node

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/worldvpn/broker/internal/shared/id"
)

// Reputation bounds. New community nodes start in the middle so neither a
// perfect nor a ruined record is assumed.
const (
	InitialReputation = 50.0
	MaxReputation     = 100.0
)

// Node represents the relay node aggregate root. The broker owns the
// currentConnections counter exclusively; agents report their own view as a
// diagnostic but can never overwrite the broker's accounting.
type Node struct {
	id                  uint
	sid                 string
	userID              *uint
	name                string
	pubIdentityHash     string
	countryCode         string
	city                string
	bandwidthMbps       uint
	maxConnections      uint
	currentConnections  uint
	reportedConnections uint
	protocols           ProtocolSet
	policy              TrafficPolicy
	trafficUsedToday    uint64
	uptimePercent       float64
	avgLatencyMs        float64
	reputation          float64
	online              bool
	lastHeartbeatAt     *time.Time
	group               Group
	apiToken            string
	apiTokenHash        string
	disabled            bool
	version             int
	createdAt           time.Time
	updatedAt           time.Time
}

// NewCommunityNode registers a peer-operated node. A fresh API token is
// generated for agent authentication; only its hash survives persistence, the
// plain token is returned to the owner exactly once.
func NewCommunityNode(
	ownerID uint,
	name string,
	pubIdentityHash string,
	countryCode string,
	city string,
	bandwidthMbps uint,
	maxConnections uint,
	protocols ProtocolSet,
	policy TrafficPolicy,
) (*Node, error) {
	if ownerID == 0 {
		return nil, fmt.Errorf("community nodes require an owner")
	}
	if err := validateNodeBasics(name, pubIdentityHash, countryCode, maxConnections, protocols); err != nil {
		return nil, err
	}

	plainToken, tokenHash, err := generateAPIToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate API token: %w", err)
	}

	sid, err := id.NewNodeSID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate node SID: %w", err)
	}

	now := time.Now().UTC()
	return &Node{
		sid:             sid,
		userID:          &ownerID,
		name:            name,
		pubIdentityHash: pubIdentityHash,
		countryCode:     countryCode,
		city:            city,
		bandwidthMbps:   bandwidthMbps,
		maxConnections:  maxConnections,
		protocols:       protocols,
		policy:          policy,
		uptimePercent:   0,
		reputation:      InitialReputation,
		online:          false,
		group:           GroupCommunity,
		apiToken:        plainToken,
		apiTokenHash:    tokenHash,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// NewPublicNode imports an operator-provided gateway. Public gateways have no
// local owner, no API token, and are marked online at import time: the
// importer, not agent heartbeats, vouches for their liveness.
func NewPublicNode(
	name string,
	pubIdentityHash string,
	countryCode string,
	city string,
	bandwidthMbps uint,
	maxConnections uint,
	protocols ProtocolSet,
	reputation float64,
) (*Node, error) {
	if err := validateNodeBasics(name, pubIdentityHash, countryCode, maxConnections, protocols); err != nil {
		return nil, err
	}
	if reputation < 0 || reputation > MaxReputation {
		return nil, fmt.Errorf("reputation must be within [0,%v], got %v", MaxReputation, reputation)
	}

	sid, err := id.NewNodeSID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate node SID: %w", err)
	}

	now := time.Now().UTC()
	heartbeat := now
	return &Node{
		sid:             sid,
		name:            name,
		pubIdentityHash: pubIdentityHash,
		countryCode:     countryCode,
		city:            city,
		bandwidthMbps:   bandwidthMbps,
		maxConnections:  maxConnections,
		protocols:       protocols,
		policy:          NewTrafficPolicy(nil, nil, true, false, 0),
		reputation:      reputation,
		online:          true,
		lastHeartbeatAt: &heartbeat,
		group:           GroupPublic,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

func validateNodeBasics(name, pubIdentityHash, countryCode string, maxConnections uint, protocols ProtocolSet) error {
	if name == "" {
		return fmt.Errorf("node name is required")
	}
	if pubIdentityHash == "" {
		return fmt.Errorf("public identity hash is required")
	}
	if len(countryCode) != 2 {
		return fmt.Errorf("country code must be ISO 3166-1 alpha-2, got %q", countryCode)
	}
	if maxConnections == 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if len(protocols) == 0 {
		return fmt.Errorf("at least one protocol is required")
	}
	return nil
}

// ReconstructNode rebuilds a node from persistence.
func ReconstructNode(
	nodeID uint,
	sid string,
	userID *uint,
	name string,
	pubIdentityHash string,
	countryCode string,
	city string,
	bandwidthMbps uint,
	maxConnections uint,
	currentConnections uint,
	reportedConnections uint,
	protocols ProtocolSet,
	policy TrafficPolicy,
	trafficUsedToday uint64,
	uptimePercent float64,
	avgLatencyMs float64,
	reputation float64,
	online bool,
	lastHeartbeatAt *time.Time,
	group Group,
	apiTokenHash string,
	disabled bool,
	version int,
	createdAt, updatedAt time.Time,
) (*Node, error) {
	if nodeID == 0 {
		return nil, fmt.Errorf("node ID cannot be zero")
	}
	if !group.IsValid() {
		return nil, fmt.Errorf("invalid node group: %s", group)
	}
	if group == GroupCommunity && apiTokenHash == "" {
		return nil, fmt.Errorf("community nodes require an API token hash")
	}
	if currentConnections > maxConnections {
		return nil, fmt.Errorf("current connections %d exceed max %d", currentConnections, maxConnections)
	}

	return &Node{
		id:                  nodeID,
		sid:                 sid,
		userID:              userID,
		name:                name,
		pubIdentityHash:     pubIdentityHash,
		countryCode:         countryCode,
		city:                city,
		bandwidthMbps:       bandwidthMbps,
		maxConnections:      maxConnections,
		currentConnections:  currentConnections,
		reportedConnections: reportedConnections,
		protocols:           protocols,
		policy:              policy,
		trafficUsedToday:    trafficUsedToday,
		uptimePercent:       uptimePercent,
		avgLatencyMs:        avgLatencyMs,
		reputation:          reputation,
		online:              online,
		lastHeartbeatAt:     lastHeartbeatAt,
		group:               group,
		apiTokenHash:        apiTokenHash,
		disabled:            disabled,
		version:             version,
		createdAt:           createdAt,
		updatedAt:           updatedAt,
	}, nil
}

// ID returns the internal numeric ID.
func (n *Node) ID() uint { return n.id }

// SID returns the external node identifier.
func (n *Node) SID() string { return n.sid }

// OwnerID returns the owning user's ID, nil for public gateways.
func (n *Node) OwnerID() *uint { return n.userID }

// Name returns the operator-chosen display name.
func (n *Node) Name() string { return n.name }

// PubIdentityHash returns the sha256 of the node's public identity. Raw
// addresses are never stored.
func (n *Node) PubIdentityHash() string { return n.pubIdentityHash }

// CountryCode returns the node's ISO 3166-1 alpha-2 country.
func (n *Node) CountryCode() string { return n.countryCode }

// City returns the optional city label.
func (n *Node) City() string { return n.city }

// BandwidthMbps returns the declared bandwidth capability.
func (n *Node) BandwidthMbps() uint { return n.bandwidthMbps }

// MaxConnections returns the concurrent session capacity.
func (n *Node) MaxConnections() uint { return n.maxConnections }

// CurrentConnections returns the broker-owned reservation counter.
func (n *Node) CurrentConnections() uint { return n.currentConnections }

// ReportedConnections returns the agent's own connection count, diagnostic only.
func (n *Node) ReportedConnections() uint { return n.reportedConnections }

// Protocols returns the supported protocol set.
func (n *Node) Protocols() ProtocolSet { return n.protocols }

// Policy returns the operator traffic policy.
func (n *Node) Policy() TrafficPolicy { return n.policy }

// TrafficUsedToday returns bytes relayed since the last UTC midnight reset.
func (n *Node) TrafficUsedToday() uint64 { return n.trafficUsedToday }

// UptimePercent returns the smoothed uptime estimate.
func (n *Node) UptimePercent() float64 { return n.uptimePercent }

// AvgLatencyMs returns the smoothed latency estimate.
func (n *Node) AvgLatencyMs() float64 { return n.avgLatencyMs }

// Reputation returns the smoothed quality score (0-100).
func (n *Node) Reputation() float64 { return n.reputation }

// Online reports the liveness flag.
func (n *Node) Online() bool { return n.online }

// LastHeartbeatAt returns the last accepted heartbeat time.
func (n *Node) LastHeartbeatAt() *time.Time { return n.lastHeartbeatAt }

// GroupTag returns COMMUNITY or PUBLIC.
func (n *Node) GroupTag() Group { return n.group }

// APITokenHash returns the stored token hash.
func (n *Node) APITokenHash() string { return n.apiTokenHash }

// Disabled reports the operator soft-disable flag.
func (n *Node) Disabled() bool { return n.disabled }

// Version returns the aggregate version for optimistic locking.
func (n *Node) Version() int { return n.version }

// CreatedAt returns when the node was registered.
func (n *Node) CreatedAt() time.Time { return n.createdAt }

// UpdatedAt returns when the node was last updated.
func (n *Node) UpdatedAt() time.Time { return n.updatedAt }

// SetID sets the node ID after insertion (persistence layer use only).
func (n *Node) SetID(nodeID uint) error {
	if n.id != 0 {
		return fmt.Errorf("node ID is already set")
	}
	if nodeID == 0 {
		return fmt.Errorf("node ID cannot be zero")
	}
	n.id = nodeID
	return nil
}

// APIToken returns the plain API token, only populated right after creation.
func (n *Node) APIToken() string { return n.apiToken }

// ClearAPIToken drops the plain token from memory.
func (n *Node) ClearAPIToken() { n.apiToken = "" }

// VerifyAPIToken checks an agent-presented token in constant time.
func (n *Node) VerifyAPIToken(plainToken string) bool {
	if n.apiTokenHash == "" {
		return false
	}
	hash := sha256.Sum256([]byte(plainToken))
	tokenHash := hex.EncodeToString(hash[:])
	return subtle.ConstantTimeCompare([]byte(n.apiTokenHash), []byte(tokenHash)) == 1
}

// Heartbeat applies an accepted agent heartbeat: refreshes the liveness
// timestamp, flips online, records the agent's diagnostic counters, and
// nudges the quality EMAs toward the new samples. recoverBeta is the smoothed
// recovery rate; reputation climbs toward 100 slowly so one beat after an
// outage cannot whitewash a bad record.
func (n *Node) Heartbeat(reportedConnections uint, uptimeSample float64, latencyMs, bandwidthMbps *float64, recoverBeta float64, now time.Time) (recovered bool) {
	recovered = !n.online

	now = now.UTC()
	n.online = true
	n.lastHeartbeatAt = &now
	n.reportedConnections = reportedConnections

	if uptimeSample < 0 {
		uptimeSample = 0
	}
	if uptimeSample > 100 {
		uptimeSample = 100
	}
	n.uptimePercent += (uptimeSample - n.uptimePercent) * recoverBeta
	n.reputation += (MaxReputation - n.reputation) * recoverBeta
	if n.reputation > MaxReputation {
		n.reputation = MaxReputation
	}

	if latencyMs != nil && *latencyMs >= 0 {
		if n.avgLatencyMs == 0 {
			n.avgLatencyMs = *latencyMs
		} else {
			n.avgLatencyMs += (*latencyMs - n.avgLatencyMs) * recoverBeta
		}
	}
	if bandwidthMbps != nil && *bandwidthMbps > 0 {
		n.bandwidthMbps = uint(*bandwidthMbps)
	}

	n.updatedAt = now
	n.version++
	return recovered
}

// RefreshFromImport re-confirms a public gateway from an importer pass. The
// importer vouches for liveness and owns the reputation seed outright, so no
// EMA smoothing applies.
func (n *Node) RefreshFromImport(reputation float64, bandwidthMbps uint, now time.Time) {
	if reputation < 0 {
		reputation = 0
	}
	if reputation > MaxReputation {
		reputation = MaxReputation
	}

	now = now.UTC()
	n.online = true
	n.lastHeartbeatAt = &now
	n.reputation = reputation
	if bandwidthMbps > 0 {
		n.bandwidthMbps = bandwidthMbps
	}
	n.updatedAt = now
	n.version++
}

// MarkOffline demotes the node after a missed liveness window or a graceful
// shutdown, decaying reputation by decayAlpha. The decay is proportional, not
// a reset, so a transient blip does not erase a long good record.
func (n *Node) MarkOffline(decayAlpha float64) {
	n.online = false
	n.DecayReputation(decayAlpha)
}

// DecayReputation applies one missed-heartbeat decay step.
func (n *Node) DecayReputation(decayAlpha float64) {
	n.reputation -= n.reputation * decayAlpha
	if n.reputation < 0 {
		n.reputation = 0
	}
	n.uptimePercent -= n.uptimePercent * decayAlpha
	if n.uptimePercent < 0 {
		n.uptimePercent = 0
	}
	n.updatedAt = time.Now().UTC()
	n.version++
}

// Disable soft-disables the node; historical sessions keep referencing it.
func (n *Node) Disable() {
	n.disabled = true
	n.updatedAt = time.Now().UTC()
	n.version++
}

// Enable lifts an operator soft-disable.
func (n *Node) Enable() {
	n.disabled = false
	n.updatedAt = time.Now().UTC()
	n.version++
}

// HasFreeCapacity reports whether at least one session slot is free.
func (n *Node) HasFreeCapacity() bool {
	return n.currentConnections < n.maxConnections
}

// SpareCapacityRatio returns the fraction of free slots (0 when full).
func (n *Node) SpareCapacityRatio() float64 {
	if n.maxConnections == 0 {
		return 0
	}
	return 1 - float64(n.currentConnections)/float64(n.maxConnections)
}

// QuotaExhausted reports whether today's relay budget is spent.
func (n *Node) QuotaExhausted() bool {
	cap := n.policy.DailyByteCap()
	if cap == 0 {
		return false
	}
	return n.trafficUsedToday >= cap
}

// IsStale reports whether the node has not heartbeated within the window.
func (n *Node) IsStale(window time.Duration, now time.Time) bool {
	if n.lastHeartbeatAt == nil {
		return true
	}
	return now.Sub(*n.lastHeartbeatAt) > window
}

// Endpoint renders the advertised server endpoint for a protocol. The
// identity hash doubles as the hostname under the relay domain so raw
// addresses never leave the directory.
func (n *Node) Endpoint(p Protocol) string {
	host := n.pubIdentityHash
	if len(host) > 16 {
		host = host[:16]
	}
	return fmt.Sprintf("%s.relay.worldvpn.net:%d", host, p.DefaultPort())
}

// generateAPIToken generates a new agent API token and its hash.
func generateAPIToken() (plainToken string, tokenHash string, err error) {
	tokenBytes := make([]byte, 32)
	_, err = rand.Read(tokenBytes)
	if err != nil {
		return "", "", err
	}

	plainToken = "node_" + base64.RawURLEncoding.EncodeToString(tokenBytes)

	hash := sha256.Sum256([]byte(plainToken))
	tokenHash = hex.EncodeToString(hash[:])

	return plainToken, tokenHash, nil
}

// HashIdentity derives the stored identity hash from a node's public
// identity material (public key or address), keeping raw values out of the
// directory.
func HashIdentity(publicIdentity string) string {
	sum := sha256.Sum256([]byte(publicIdentity))
	return hex.EncodeToString(sum[:])
}
