package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/authorization"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

func testOwner(t *testing.T) *user.User {
	t.Helper()
	now := time.Now().UTC()
	owner, err := user.ReconstructUser(
		3, "u_owner99", "carol", "hash", authorization.RoleUser, 100, 0, 1, now, now,
	)
	require.NoError(t, err)
	return owner
}

func validRegisterNodeCommand() RegisterNodeCommand {
	return RegisterNodeCommand{
		OwnerSID:       "u_owner99",
		Name:           "berlin-relay-1",
		PublicIdentity: "wg-pubkey-abc123",
		CountryCode:    "DE",
		City:           "Berlin",
		BandwidthMbps:  500,
		MaxConnections: 20,
		Protocols:      []string{"WIREGUARD", "SHADOWSOCKS"},
	}
}

func TestRegisterNodeUseCase_Execute_Success(t *testing.T) {
	nodeRepo := new(mockNodeRepository)
	userRepo := new(mockUserRepository)

	userRepo.On("GetBySID", mock.Anything, "u_owner99").Return(testOwner(t), nil)
	nodeRepo.On("GetByIdentityHash", mock.Anything, node.HashIdentity("wg-pubkey-abc123")).
		Return(nil, errors.NewNotFoundError("node not found"))
	nodeRepo.On("Create", mock.Anything, mock.AnythingOfType("*node.Node")).Return(nil)

	uc := NewRegisterNodeUseCase(nodeRepo, userRepo, logger.NewLogger())

	result, err := uc.Execute(context.Background(), validRegisterNodeCommand())

	require.NoError(t, err)
	assert.NotEmpty(t, result.NodeSID)
	assert.Equal(t, "berlin-relay-1", result.Name)
	assert.Equal(t, "DE", result.Country)
	assert.Contains(t, result.APIToken, "node_", "plain token is handed out exactly once")

	nodeRepo.AssertExpectations(t)
}

func TestRegisterNodeUseCase_Execute_DuplicateIdentity(t *testing.T) {
	nodeRepo := new(mockNodeRepository)
	userRepo := new(mockUserRepository)

	existing, err := node.NewCommunityNode(
		3, "existing", node.HashIdentity("wg-pubkey-abc123"), "DE", "",
		100, 10, node.ProtocolSet{node.ProtocolWireGuard},
		node.NewTrafficPolicy(nil, nil, true, false, 0),
	)
	require.NoError(t, err)

	userRepo.On("GetBySID", mock.Anything, "u_owner99").Return(testOwner(t), nil)
	nodeRepo.On("GetByIdentityHash", mock.Anything, node.HashIdentity("wg-pubkey-abc123")).
		Return(existing, nil)

	uc := NewRegisterNodeUseCase(nodeRepo, userRepo, logger.NewLogger())

	_, err = uc.Execute(context.Background(), validRegisterNodeCommand())
	assert.True(t, errors.IsConflictError(err))
	nodeRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegisterNodeUseCase_Execute_SanitizesName(t *testing.T) {
	nodeRepo := new(mockNodeRepository)
	userRepo := new(mockUserRepository)

	userRepo.On("GetBySID", mock.Anything, "u_owner99").Return(testOwner(t), nil)
	nodeRepo.On("GetByIdentityHash", mock.Anything, mock.Anything).
		Return(nil, errors.NewNotFoundError("node not found"))

	var created *node.Node
	nodeRepo.On("Create", mock.Anything, mock.AnythingOfType("*node.Node")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*node.Node)
		}).
		Return(nil)

	cmd := validRegisterNodeCommand()
	cmd.Name = `<script>alert(1)</script>berlin-relay-1`

	uc := NewRegisterNodeUseCase(nodeRepo, userRepo, logger.NewLogger())
	_, err := uc.Execute(context.Background(), cmd)

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "berlin-relay-1", created.Name())
}

func TestRegisterNodeUseCase_Execute_ValidationErrors(t *testing.T) {
	nodeRepo := new(mockNodeRepository)
	userRepo := new(mockUserRepository)
	userRepo.On("GetBySID", mock.Anything, "u_owner99").Return(testOwner(t), nil)

	uc := NewRegisterNodeUseCase(nodeRepo, userRepo, logger.NewLogger())

	tests := []struct {
		name   string
		mutate func(*RegisterNodeCommand)
	}{
		{"bad country", func(c *RegisterNodeCommand) { c.CountryCode = "ZZ" }},
		{"no identity", func(c *RegisterNodeCommand) { c.PublicIdentity = "" }},
		{"zero capacity", func(c *RegisterNodeCommand) { c.MaxConnections = 0 }},
		{"unknown protocol", func(c *RegisterNodeCommand) { c.Protocols = []string{"SMTP"} }},
		{"bad blocked country", func(c *RegisterNodeCommand) { c.BlockedCountries = []string{"ZZZ"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := validRegisterNodeCommand()
			tt.mutate(&cmd)
			_, err := uc.Execute(context.Background(), cmd)
			assert.True(t, errors.IsValidationError(err), "expected validation error, got %v", err)
		})
	}
}
