package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
	"github.com/worldvpn/broker/internal/shared/utils"
)

type ConnectCommand struct {
	UserSID        string
	ClientCountry  string
	ClientIdentity string
	Protocol       string
	TrafficClass   string
	NodeCountry    *string
	Group          *string
}

type ConnectResult struct {
	SessionSID     string
	NodeSID        string
	NodeCountry    string
	Protocol       string
	AssignedIP     string
	ServerEndpoint string
}

// ConnectUseCase brokers a relay session: pre-flight checks, eligibility
// filtering, match-and-reserve, and session creation. The reserved slot is
// returned on any failure after the reservation, so capacity can never leak
// from a failed connect.
type ConnectUseCase struct {
	userRepo          user.UserRepository
	nodeRepo          node.NodeRepository
	sessionRepo       session.SessionRepository
	ledgerRepo        ledger.TransactionRepository
	matcher           *Matcher
	ipAllocator       *VirtualIPAllocator
	abuse             AbuseGuard
	minConnectCredits int64
	logger            logger.Interface
}

func NewConnectUseCase(
	userRepo user.UserRepository,
	nodeRepo node.NodeRepository,
	sessionRepo session.SessionRepository,
	ledgerRepo ledger.TransactionRepository,
	matcher *Matcher,
	ipAllocator *VirtualIPAllocator,
	abuse AbuseGuard,
	minConnectCredits int64,
	logger logger.Interface,
) *ConnectUseCase {
	return &ConnectUseCase{
		userRepo:          userRepo,
		nodeRepo:          nodeRepo,
		sessionRepo:       sessionRepo,
		ledgerRepo:        ledgerRepo,
		matcher:           matcher,
		ipAllocator:       ipAllocator,
		abuse:             abuse,
		minConnectCredits: minConnectCredits,
		logger:            logger,
	}
}

func (uc *ConnectUseCase) Execute(ctx context.Context, cmd ConnectCommand) (*ConnectResult, error) {
	account, err := uc.userRepo.GetBySID(ctx, cmd.UserSID)
	if err != nil {
		return nil, err
	}

	if err := uc.abuse.CheckConnect(ctx, account.ID()); err != nil {
		return nil, err
	}

	balance, err := uc.ledgerRepo.Balance(ctx, account.ID())
	if err != nil {
		return nil, err
	}
	if balance < uc.minConnectCredits {
		return nil, errors.NewInsufficientCreditsError("balance too low to start a session")
	}

	protocol, trafficClass, filter, err := uc.buildFilter(cmd)
	if err != nil {
		return nil, err
	}

	candidates, err := uc.nodeRepo.ListEligible(ctx, filter)
	if err != nil {
		return nil, err
	}
	candidates = filterByTrafficClass(candidates, trafficClass)

	matched, err := uc.matcher.MatchAndReserve(ctx, candidates, filter.ClientCountry)
	if err != nil {
		return nil, err
	}

	result, err := uc.createSession(ctx, account, matched, protocol, trafficClass, filter.ClientCountry, cmd.ClientIdentity)
	if err != nil {
		// The slot was reserved but no session holds it; hand it back.
		if releaseErr := uc.nodeRepo.ReleaseSlot(ctx, matched.ID()); releaseErr != nil {
			uc.logger.Errorw("failed to release slot after failed connect",
				"node_sid", matched.SID(), "error", releaseErr)
		}
		return nil, err
	}

	uc.logger.Infow("session brokered",
		"session_sid", result.SessionSID,
		"user_sid", account.SID(),
		"node_sid", matched.SID(),
		"protocol", protocol.String(),
	)
	return result, nil
}

func (uc *ConnectUseCase) buildFilter(cmd ConnectCommand) (node.Protocol, session.TrafficClass, node.EligibilityFilter, error) {
	var filter node.EligibilityFilter

	protocol, err := node.ParseProtocol(cmd.Protocol)
	if err != nil {
		return "", "", filter, errors.NewValidationError(err.Error())
	}
	filter.Protocol = &protocol

	trafficClass, err := session.ParseTrafficClass(cmd.TrafficClass)
	if err != nil {
		return "", "", filter, errors.NewValidationError(err.Error())
	}

	if cmd.ClientCountry != "" {
		if !utils.IsValidCountryCode(cmd.ClientCountry) {
			return "", "", filter, errors.NewValidationError("client country must be ISO 3166-1 alpha-2")
		}
		filter.ClientCountry = utils.NormalizeCountryCode(cmd.ClientCountry)
	}
	if cmd.NodeCountry != nil {
		if !utils.IsValidCountryCode(*cmd.NodeCountry) {
			return "", "", filter, errors.NewValidationError("node country must be ISO 3166-1 alpha-2")
		}
		code := utils.NormalizeCountryCode(*cmd.NodeCountry)
		filter.NodeCountry = &code
	}
	if cmd.Group != nil {
		group, err := node.ParseGroup(*cmd.Group)
		if err != nil {
			return "", "", filter, errors.NewValidationError(err.Error())
		}
		filter.Group = &group
	}

	return protocol, trafficClass, filter, nil
}

func filterByTrafficClass(candidates []*node.Node, class session.TrafficClass) []*node.Node {
	out := candidates[:0]
	for _, candidate := range candidates {
		allowed, err := candidate.Policy().AllowsClass(class.String())
		if err != nil || !allowed {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

// ipAssignAttempts bounds the re-allocation loop when concurrent connects
// draw the same virtual IP and the unique index rejects the insert.
const ipAssignAttempts = 3

func (uc *ConnectUseCase) createSession(
	ctx context.Context,
	account *user.User,
	matched *node.Node,
	protocol node.Protocol,
	trafficClass session.TrafficClass,
	clientCountry string,
	clientIdentity string,
) (*ConnectResult, error) {
	identityHash := ""
	if clientIdentity != "" {
		identityHash = node.HashIdentity(clientIdentity)
	}

	// The taken-set read and the insert are not atomic, so two concurrent
	// connects can allocate the same address. The unique index over active
	// assigned IPs rejects the loser, who re-reads and re-allocates.
	var lastErr error
	for attempt := 0; attempt < ipAssignAttempts; attempt++ {
		sess, err := session.NewSession(account.ID(), clientCountry, identityHash, trafficClass, protocol.String())
		if err != nil {
			return nil, errors.NewValidationError(err.Error())
		}

		taken, err := uc.sessionRepo.ListActiveAssignedIPs(ctx)
		if err != nil {
			return nil, err
		}
		assignedIP, err := uc.ipAllocator.Allocate(taken)
		if err != nil {
			return nil, err
		}

		if err := sess.Match(matched.ID(), matched.OwnerID(), assignedIP, matched.Endpoint(protocol)); err != nil {
			return nil, errors.NewInternalError(err.Error())
		}

		if err := uc.sessionRepo.Create(ctx, sess); err != nil {
			if errors.IsConflictError(err) {
				uc.logger.Warnw("virtual IP collided with a concurrent connect, re-allocating",
					"assigned_ip", assignedIP, "attempt", attempt+1)
				lastErr = err
				continue
			}
			return nil, err
		}

		return &ConnectResult{
			SessionSID:     sess.SID(),
			NodeSID:        matched.SID(),
			NodeCountry:    matched.CountryCode(),
			Protocol:       protocol.String(),
			AssignedIP:     assignedIP,
			ServerEndpoint: sess.ServerEndpoint(),
		}, nil
	}

	return nil, lastErr
}
