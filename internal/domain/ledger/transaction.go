// Package ledger holds the append-only credit transaction log. Every credit
// movement in the system is a Transaction; a user's balance is the fold of
// their transactions, with the cached users.credits column kept consistent in
// the same database transaction that appends entries.
package ledger

import (
	"fmt"
	"time"

	"github.com/worldvpn/broker/internal/shared/id"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionEarned  TransactionType = "EARNED"
	TransactionSpent   TransactionType = "SPENT"
	TransactionBonus   TransactionType = "BONUS"
	TransactionPenalty TransactionType = "PENALTY"
)

// IsValid reports whether the type is part of the closed vocabulary.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionEarned, TransactionSpent, TransactionBonus, TransactionPenalty:
		return true
	}
	return false
}

// String returns the type name.
func (t TransactionType) String() string {
	return string(t)
}

// Transaction is one immutable ledger entry. Amounts are signed: SPENT and
// deducting PENALTY entries carry negative amounts, EARNED and BONUS positive.
type Transaction struct {
	id        uint
	sid       string
	userID    uint
	sessionID *uint
	amount    int64
	txType    TransactionType
	desc      string
	createdAt time.Time
}

// NewTransaction creates a ledger entry ready for appending. The sign of the
// amount must agree with the type: SPENT never positive, EARNED/BONUS never
// negative. PENALTY may be zero (informational) or negative (deduction).
func NewTransaction(userID uint, sessionID *uint, amount int64, txType TransactionType, desc string) (*Transaction, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user ID is required")
	}
	if !txType.IsValid() {
		return nil, fmt.Errorf("invalid transaction type: %s", txType)
	}

	switch txType {
	case TransactionSpent:
		if amount > 0 {
			return nil, fmt.Errorf("SPENT amount must not be positive, got %d", amount)
		}
	case TransactionEarned, TransactionBonus:
		if amount < 0 {
			return nil, fmt.Errorf("%s amount must not be negative, got %d", txType, amount)
		}
	case TransactionPenalty:
		if amount > 0 {
			return nil, fmt.Errorf("PENALTY amount must not be positive, got %d", amount)
		}
	}

	sid, err := id.NewTransactionSID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate transaction SID: %w", err)
	}

	return &Transaction{
		sid:       sid,
		userID:    userID,
		sessionID: sessionID,
		amount:    amount,
		txType:    txType,
		desc:      desc,
		createdAt: time.Now().UTC(),
	}, nil
}

// ReconstructTransaction rebuilds a ledger entry from persistence.
func ReconstructTransaction(
	entryID uint,
	sid string,
	userID uint,
	sessionID *uint,
	amount int64,
	txType TransactionType,
	desc string,
	createdAt time.Time,
) (*Transaction, error) {
	if entryID == 0 {
		return nil, fmt.Errorf("transaction ID cannot be zero")
	}
	if !txType.IsValid() {
		return nil, fmt.Errorf("invalid transaction type: %s", txType)
	}

	return &Transaction{
		id:        entryID,
		sid:       sid,
		userID:    userID,
		sessionID: sessionID,
		amount:    amount,
		txType:    txType,
		desc:      desc,
		createdAt: createdAt,
	}, nil
}

// ID returns the internal numeric ID.
func (t *Transaction) ID() uint { return t.id }

// SID returns the external transaction identifier.
func (t *Transaction) SID() string { return t.sid }

// UserID returns the owning user's internal ID.
func (t *Transaction) UserID() uint { return t.userID }

// SessionID returns the settling session's ID, if any.
func (t *Transaction) SessionID() *uint { return t.sessionID }

// Amount returns the signed credit amount.
func (t *Transaction) Amount() int64 { return t.amount }

// Type returns the transaction type.
func (t *Transaction) Type() TransactionType { return t.txType }

// Description returns the human-readable reason for the entry.
func (t *Transaction) Description() string { return t.desc }

// CreatedAt returns when the entry was appended.
func (t *Transaction) CreatedAt() time.Time { return t.createdAt }

// SetID sets the entry ID after insertion (persistence layer use only).
func (t *Transaction) SetID(entryID uint) error {
	if t.id != 0 {
		return fmt.Errorf("transaction ID is already set")
	}
	if entryID == 0 {
		return fmt.Errorf("transaction ID cannot be zero")
	}
	t.id = entryID
	return nil
}
