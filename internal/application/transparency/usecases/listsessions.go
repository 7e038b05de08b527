package usecases

import (
	"context"
	"time"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/logger"
	"github.com/worldvpn/broker/internal/shared/utils"
)

// PublicSessionView is a session as the world may see it: relay geography and
// volume, no user identity, no virtual IPs, no endpoints.
type PublicSessionView struct {
	NodeSID         string
	NodeCountry     string
	NodeCountryName string
	ClientCountry   string
	TrafficClass    string
	Protocol        string
	Bytes           uint64
	StartedAt       string
	EndedAt         string
	CloseReason     string
}

type ListPublicSessionsResult struct {
	Sessions []PublicSessionView
}

type ListPublicSessionsUseCase struct {
	sessionRepo session.SessionRepository
	nodeRepo    node.NodeRepository
	logger      logger.Interface
}

func NewListPublicSessionsUseCase(
	sessionRepo session.SessionRepository,
	nodeRepo node.NodeRepository,
	logger logger.Interface,
) *ListPublicSessionsUseCase {
	return &ListPublicSessionsUseCase{
		sessionRepo: sessionRepo,
		nodeRepo:    nodeRepo,
		logger:      logger,
	}
}

// Active lists currently open sessions, anonymized.
func (uc *ListPublicSessionsUseCase) Active(ctx context.Context) (*ListPublicSessionsResult, error) {
	sessions, err := uc.sessionRepo.ListActive(ctx, constants.TransparencyMaxRows)
	if err != nil {
		return nil, err
	}
	return uc.render(ctx, sessions), nil
}

// History lists sessions closed within the last days, anonymized. Days is
// clamped to the transparency window.
func (uc *ListPublicSessionsUseCase) History(ctx context.Context, days int) (*ListPublicSessionsResult, error) {
	if days <= 0 {
		days = constants.TransparencyDefaultDays
	}
	if days > constants.TransparencyMaxDays {
		days = constants.TransparencyMaxDays
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	sessions, err := uc.sessionRepo.ListClosedSince(ctx, since, constants.TransparencyMaxRows)
	if err != nil {
		return nil, err
	}
	return uc.render(ctx, sessions), nil
}

func (uc *ListPublicSessionsUseCase) render(ctx context.Context, sessions []*session.Session) *ListPublicSessionsResult {
	// Node lookups are cached per render; listings cluster on few nodes.
	relays := make(map[uint]*node.Node)

	views := make([]PublicSessionView, 0, len(sessions))
	for _, sess := range sessions {
		view := PublicSessionView{
			ClientCountry: sess.ClientCountry(),
			TrafficClass:  sess.TrafficClass().String(),
			Protocol:      sess.Protocol(),
			Bytes:         sess.BytesTransferred(),
			StartedAt:     sess.StartedAt().UTC().Format(time.RFC3339),
		}
		if ended := sess.EndedAt(); ended != nil {
			view.EndedAt = ended.UTC().Format(time.RFC3339)
		}
		if reason := sess.CloseReason(); reason != nil {
			view.CloseReason = reason.String()
		}

		if nodeID := sess.NodeID(); nodeID != 0 {
			relay, ok := relays[nodeID]
			if !ok {
				loaded, err := uc.nodeRepo.GetByID(ctx, nodeID)
				if err != nil {
					uc.logger.Warnw("failed to load node for transparency view",
						"node_id", nodeID, "error", err)
				} else {
					relay = loaded
					relays[nodeID] = loaded
				}
			}
			if relay != nil {
				view.NodeSID = relay.SID()
				view.NodeCountry = relay.CountryCode()
				view.NodeCountryName = utils.CountryName(relay.CountryCode())
			}
		}

		views = append(views, view)
	}
	return &ListPublicSessionsResult{Sessions: views}
}
