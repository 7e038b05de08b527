package usecases

import (
	"context"
	"strings"

	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type LoginCommand struct {
	Username string
	Password string
}

type LoginResult struct {
	UserSID      string
	Username     string
	Role         string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// LoginUseCase authenticates credentials and issues a token pair. Unknown
// usernames and wrong passwords produce the same error so the endpoint does
// not leak which accounts exist.
type LoginUseCase struct {
	userRepo user.UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	logger   logger.Interface
}

func NewLoginUseCase(
	userRepo user.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	logger logger.Interface,
) *LoginUseCase {
	return &LoginUseCase{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger,
	}
}

func (uc *LoginUseCase) Execute(ctx context.Context, cmd LoginCommand) (*LoginResult, error) {
	username := strings.ToLower(strings.TrimSpace(cmd.Username))
	if username == "" || cmd.Password == "" {
		return nil, errors.NewValidationError("username and password are required")
	}

	account, err := uc.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return nil, errors.NewUnauthorizedError("invalid credentials")
		}
		return nil, err
	}

	if err := uc.hasher.Verify(cmd.Password, account.PasswordHash()); err != nil {
		uc.logger.Warnw("failed login attempt", "username", username)
		return nil, errors.NewUnauthorizedError("invalid credentials")
	}

	pair, err := uc.tokens.Generate(account.SID(), account.Role())
	if err != nil {
		return nil, errors.NewInternalError("failed to issue tokens")
	}

	uc.logger.Infow("user logged in", "user_sid", account.SID())

	return &LoginResult{
		UserSID:      account.SID(),
		Username:     account.Username(),
		Role:         account.Role().String(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}
