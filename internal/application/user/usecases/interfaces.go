package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/infrastructure/auth"
	"github.com/worldvpn/broker/internal/shared/authorization"
)

// PasswordHasher abstracts the credential hashing scheme.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

// TokenIssuer abstracts JWT issuance and rotation.
type TokenIssuer interface {
	Generate(userSID string, role authorization.UserRole) (*auth.TokenPair, error)
	Refresh(refreshTokenString string) (*auth.TokenPair, error)
}

// TransactionManager runs a function inside one database transaction.
type TransactionManager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
