package usecases

import (
	"context"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
	"github.com/worldvpn/broker/internal/shared/utils"
)

type RegisterNodeCommand struct {
	OwnerSID         string
	Name             string
	PublicIdentity   string
	CountryCode      string
	City             string
	BandwidthMbps    uint
	MaxConnections   uint
	Protocols        []string
	AllowedCountries []string
	BlockedCountries []string
	AllowStreaming   bool
	AllowTorrents    bool
	DailyByteCap     uint64
}

type RegisterNodeResult struct {
	NodeSID  string
	Name     string
	Country  string
	APIToken string
}

// RegisterNodeUseCase adds a community node to the directory. The plain API
// token appears in the result exactly once; only its hash is stored. The raw
// public identity is hashed before it touches the directory.
type RegisterNodeUseCase struct {
	nodeRepo  node.NodeRepository
	userRepo  user.UserRepository
	sanitizer *bluemonday.Policy
	logger    logger.Interface
}

func NewRegisterNodeUseCase(
	nodeRepo node.NodeRepository,
	userRepo user.UserRepository,
	logger logger.Interface,
) *RegisterNodeUseCase {
	return &RegisterNodeUseCase{
		nodeRepo:  nodeRepo,
		userRepo:  userRepo,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

func (uc *RegisterNodeUseCase) Execute(ctx context.Context, cmd RegisterNodeCommand) (*RegisterNodeResult, error) {
	owner, err := uc.userRepo.GetBySID(ctx, cmd.OwnerSID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(uc.sanitizer.Sanitize(cmd.Name))
	city := strings.TrimSpace(uc.sanitizer.Sanitize(cmd.City))

	if err := uc.validateCommand(cmd, name); err != nil {
		return nil, err
	}

	protocols, err := node.ParseProtocolSet(cmd.Protocols)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	identityHash := node.HashIdentity(cmd.PublicIdentity)
	if _, err := uc.nodeRepo.GetByIdentityHash(ctx, identityHash); err == nil {
		return nil, errors.NewConflictError("a node with this public identity is already registered")
	} else if !errors.IsNotFoundError(err) {
		return nil, err
	}

	policy := node.NewTrafficPolicy(
		cmd.AllowedCountries,
		cmd.BlockedCountries,
		cmd.AllowStreaming,
		cmd.AllowTorrents,
		cmd.DailyByteCap,
	)

	relay, err := node.NewCommunityNode(
		owner.ID(),
		name,
		identityHash,
		utils.NormalizeCountryCode(cmd.CountryCode),
		city,
		cmd.BandwidthMbps,
		cmd.MaxConnections,
		protocols,
		policy,
	)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	if err := uc.nodeRepo.Create(ctx, relay); err != nil {
		return nil, err
	}

	uc.logger.Infow("community node registered",
		"node_sid", relay.SID(),
		"owner_sid", owner.SID(),
		"country", relay.CountryCode(),
	)

	result := &RegisterNodeResult{
		NodeSID:  relay.SID(),
		Name:     relay.Name(),
		Country:  relay.CountryCode(),
		APIToken: relay.APIToken(),
	}
	relay.ClearAPIToken()
	return result, nil
}

func (uc *RegisterNodeUseCase) validateCommand(cmd RegisterNodeCommand, sanitizedName string) error {
	if sanitizedName == "" {
		return errors.NewValidationError("node name is required")
	}
	if len(sanitizedName) > 100 {
		return errors.NewValidationError("node name must be at most 100 characters")
	}
	if cmd.PublicIdentity == "" {
		return errors.NewValidationError("public identity is required")
	}
	if !utils.IsValidCountryCode(cmd.CountryCode) {
		return errors.NewValidationError("country code must be ISO 3166-1 alpha-2")
	}
	if cmd.MaxConnections == 0 {
		return errors.NewValidationError("max connections must be positive")
	}
	for _, code := range append(append([]string{}, cmd.AllowedCountries...), cmd.BlockedCountries...) {
		if code == node.CountryWildcard {
			continue
		}
		if !utils.IsValidCountryCode(code) {
			return errors.NewValidationError("country list entries must be ISO 3166-1 alpha-2", code)
		}
	}
	return nil
}
