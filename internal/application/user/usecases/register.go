package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/authorization"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type RegisterCommand struct {
	Username string
	Password string
}

type RegisterResult struct {
	UserSID  string
	Username string
	Credits  int64
}

// RegisterUseCase creates an account and posts the signup bonus. The account
// insert and the BONUS ledger entry commit in one transaction: no account
// exists without its opening balance entry.
type RegisterUseCase struct {
	userRepo    user.UserRepository
	ledgerRepo  ledger.TransactionRepository
	hasher      PasswordHasher
	txManager   TransactionManager
	signupBonus int64
	logger      logger.Interface
}

func NewRegisterUseCase(
	userRepo user.UserRepository,
	ledgerRepo ledger.TransactionRepository,
	hasher PasswordHasher,
	txManager TransactionManager,
	signupBonus int64,
	logger logger.Interface,
) *RegisterUseCase {
	return &RegisterUseCase{
		userRepo:    userRepo,
		ledgerRepo:  ledgerRepo,
		hasher:      hasher,
		txManager:   txManager,
		signupBonus: signupBonus,
		logger:      logger,
	}
}

func (uc *RegisterUseCase) Execute(ctx context.Context, cmd RegisterCommand) (*RegisterResult, error) {
	username := strings.ToLower(strings.TrimSpace(cmd.Username))

	if err := uc.validateCommand(username, cmd.Password); err != nil {
		return nil, err
	}

	exists, err := uc.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username availability: %w", err)
	}
	if exists {
		return nil, errors.NewConflictError("username already taken")
	}

	passwordHash, err := uc.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account, err := user.NewUser(username, passwordHash, authorization.RoleUser)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	err = uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.userRepo.Create(txCtx, account); err != nil {
			return err
		}
		if uc.signupBonus <= 0 {
			return nil
		}
		bonus, err := ledger.NewTransaction(account.ID(), nil, uc.signupBonus, ledger.TransactionBonus, "signup bonus")
		if err != nil {
			return fmt.Errorf("failed to build signup bonus entry: %w", err)
		}
		return uc.ledgerRepo.Record(txCtx, bonus)
	})
	if err != nil {
		uc.logger.Errorw("failed to register user", "username", username, "error", err)
		return nil, err
	}

	uc.logger.Infow("user registered", "user_sid", account.SID(), "username", username)

	return &RegisterResult{
		UserSID:  account.SID(),
		Username: account.Username(),
		Credits:  uc.signupBonus,
	}, nil
}

func (uc *RegisterUseCase) validateCommand(username, password string) error {
	if username == "" {
		return errors.NewValidationError("username is required")
	}
	if len(password) < 8 {
		return errors.NewValidationError("password must be at least 8 characters")
	}
	if len(password) > 72 {
		// bcrypt truncates beyond 72 bytes
		return errors.NewValidationError("password must be at most 72 characters")
	}
	return nil
}
