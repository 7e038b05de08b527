// Package user holds the account aggregate. Accounts are never deleted:
// closed sessions and ledger history soft-reference them forever.
package user

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/worldvpn/broker/internal/shared/authorization"
	"github.com/worldvpn/broker/internal/shared/id"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{2,31}$`)

// User represents an account that can consume relay bandwidth and operate
// nodes. The credits field is the cached running total of the user's ledger;
// it is mutated only inside ledger repository transactions, never here.
type User struct {
	id           uint
	sid          string
	username     string
	passwordHash string
	role         authorization.UserRole
	credits      int64
	riskScore    int
	version      int
	createdAt    time.Time
	updatedAt    time.Time
}

// NewUser creates an account. The username is normalized to lowercase; the
// password hash comes from the infrastructure hasher.
func NewUser(username, passwordHash string, role authorization.UserRole) (*User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("username must be 3-32 characters of lowercase letters, digits, '_', '.', '-'")
	}
	if passwordHash == "" {
		return nil, fmt.Errorf("password hash is required")
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role: %s", role)
	}

	sid, err := id.NewUserSID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user SID: %w", err)
	}

	now := time.Now().UTC()
	return &User{
		sid:          sid,
		username:     username,
		passwordHash: passwordHash,
		role:         role,
		credits:      0,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructUser rebuilds an account from persistence.
func ReconstructUser(
	userID uint,
	sid string,
	username string,
	passwordHash string,
	role authorization.UserRole,
	credits int64,
	riskScore int,
	version int,
	createdAt, updatedAt time.Time,
) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user ID cannot be zero")
	}
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role: %s", role)
	}

	return &User{
		id:           userID,
		sid:          sid,
		username:     username,
		passwordHash: passwordHash,
		role:         role,
		credits:      credits,
		riskScore:    riskScore,
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}, nil
}

// ID returns the internal numeric ID.
func (u *User) ID() uint { return u.id }

// SID returns the external user identifier.
func (u *User) SID() string { return u.sid }

// Username returns the normalized username.
func (u *User) Username() string { return u.username }

// PasswordHash returns the stored credential hash.
func (u *User) PasswordHash() string { return u.passwordHash }

// Role returns the account role.
func (u *User) Role() authorization.UserRole { return u.role }

// Credits returns the cached ledger balance at load time.
func (u *User) Credits() int64 { return u.credits }

// RiskScore returns the persisted abuse risk snapshot (0-100).
func (u *User) RiskScore() int { return u.riskScore }

// Version returns the aggregate version for optimistic locking.
func (u *User) Version() int { return u.version }

// CreatedAt returns when the account was registered.
func (u *User) CreatedAt() time.Time { return u.createdAt }

// UpdatedAt returns when the account was last updated.
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// IsAdmin reports whether the account carries the admin role.
func (u *User) IsAdmin() bool { return u.role == authorization.RoleAdmin }

// SetID sets the user ID after insertion (persistence layer use only).
func (u *User) SetID(userID uint) error {
	if u.id != 0 {
		return fmt.Errorf("user ID is already set")
	}
	if userID == 0 {
		return fmt.Errorf("user ID cannot be zero")
	}
	u.id = userID
	return nil
}

// RecordRiskScore stores the latest abuse risk snapshot, clamped to [0,100].
func (u *User) RecordRiskScore(score int) {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	u.riskScore = score
	u.updatedAt = time.Now().UTC()
	u.version++
}

// ChangePassword replaces the credential hash.
func (u *User) ChangePassword(passwordHash string) error {
	if passwordHash == "" {
		return fmt.Errorf("password hash is required")
	}
	u.passwordHash = passwordHash
	u.updatedAt = time.Now().UTC()
	u.version++
	return nil
}
