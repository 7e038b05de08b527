package vpngate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/shared/biztime"
	"github.com/worldvpn/broker/internal/shared/config"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

const (
	// maxFeedBytes caps the feed response; the real document is ~1-2 MB.
	maxFeedBytes = 10 << 20
	fetchTimeout = 30 * time.Second

	// publicMaxConnections is the assumed capacity of an imported gateway.
	// VPN Gate does not publish limits; this keeps the matcher from piling
	// every client onto one popular host.
	publicMaxConnections = 64
)

// Importer maintains the PUBLIC segment of the node directory from the VPN
// Gate feed. Feed gateways speak OpenVPN only.
type Importer struct {
	cfg      config.VPNGateConfig
	nodeRepo node.NodeRepository
	client   *http.Client
	logger   logger.Interface
}

func NewImporter(cfg config.VPNGateConfig, nodeRepo node.NodeRepository, log logger.Interface) *Importer {
	return &Importer{
		cfg:      cfg,
		nodeRepo: nodeRepo,
		client:   &http.Client{Timeout: fetchTimeout},
		logger:   log,
	}
}

// Run executes one import pass: fetch, parse, upsert, then demote PUBLIC
// nodes the feed stopped listing. A fetch failure keeps the previous pool
// untouched; the liveness demotion only applies after two missed passes.
func (i *Importer) Run(ctx context.Context) error {
	entries, err := i.fetch(ctx)
	if err != nil {
		i.logger.Warnw("vpngate feed fetch failed, keeping previous pool", "error", err)
		return err
	}

	if len(entries) > i.cfg.MaxNodes && i.cfg.MaxNodes > 0 {
		entries = entries[:i.cfg.MaxNodes]
	}
	seeds := SeedReputations(entries)

	now := biztime.NowUTC()
	created, refreshed, failed := 0, 0, 0
	for idx, entry := range entries {
		wasCreated, err := i.upsert(ctx, entry, seeds[idx], now)
		if err != nil {
			i.logger.Warnw("failed to import gateway", "host", entry.HostName, "error", err)
			failed++
			continue
		}
		if wasCreated {
			created++
		} else {
			refreshed++
		}
	}

	demoted, err := i.demoteMissing(ctx, now)
	if err != nil {
		return err
	}

	i.logger.Infow("vpngate import completed",
		"created", created, "refreshed", refreshed, "failed", failed, "demoted", demoted)
	return nil
}

func (i *Importer) fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.cfg.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	return ParseFeed(io.LimitReader(resp.Body, maxFeedBytes))
}

func (i *Importer) upsert(ctx context.Context, entry Entry, reputation float64, now time.Time) (created bool, err error) {
	identityHash := node.HashIdentity(entry.HostName)

	existing, err := i.nodeRepo.GetByIdentityHash(ctx, identityHash)
	if err == nil {
		existing.RefreshFromImport(reputation, entry.SpeedMbps(), now)
		return false, i.nodeRepo.Update(ctx, existing)
	}
	if !errors.IsNotFoundError(err) {
		return false, err
	}

	protocols, err := node.ParseProtocolSet([]string{"OPENVPN_TCP", "OPENVPN_UDP"})
	if err != nil {
		return false, err
	}

	gateway, err := node.NewPublicNode(
		entry.HostName,
		identityHash,
		entry.CountryCode,
		"",
		entry.SpeedMbps(),
		publicMaxConnections,
		protocols,
		reputation,
	)
	if err != nil {
		return false, fmt.Errorf("failed to build public node: %w", err)
	}
	return true, i.nodeRepo.Create(ctx, gateway)
}

// demoteMissing marks online PUBLIC nodes offline once they have been absent
// from two consecutive import passes.
func (i *Importer) demoteMissing(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-2 * i.cfg.Interval)
	stale, err := i.nodeRepo.ListStaleOnline(ctx, node.GroupPublic, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale public nodes: %w", err)
	}

	demoted := 0
	for _, gateway := range stale {
		gateway.MarkOffline(0)
		if err := i.nodeRepo.Update(ctx, gateway); err != nil {
			i.logger.Warnw("failed to demote public node", "sid", gateway.SID(), "error", err)
			continue
		}
		demoted++
	}
	return demoted, nil
}
