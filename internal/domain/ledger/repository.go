package ledger

import "context"

// Discrepancy reports a user whose cached balance disagrees with the fold of
// their ledger entries. Any discrepancy is an integrity fault.
type Discrepancy struct {
	UserID   uint
	UserSID  string
	Cached   int64
	Computed int64
}

// TransactionRepository owns all credit mutation. Record appends the entry
// and adjusts the user's cached balance in the same database transaction; a
// SPENT that would drive the balance negative fails with InsufficientCredits
// and leaves both the log and the balance untouched.
type TransactionRepository interface {
	Record(ctx context.Context, tx *Transaction) error
	Balance(ctx context.Context, userID uint) (int64, error)
	History(ctx context.Context, userID uint, limit int) ([]*Transaction, error)

	// SumByUser folds the user's entries; used by ledger verification.
	SumByUser(ctx context.Context, userID uint) (int64, error)

	// VerifyBalances recomputes every user's fold and returns the mismatches.
	// It never repairs.
	VerifyBalances(ctx context.Context) ([]Discrepancy, error)

	// CreditsInCirculation sums all positive balances for transparency stats.
	CreditsInCirculation(ctx context.Context) (int64, error)

	// ExistsForSession reports whether a settlement entry of the given type
	// was already posted for the session. Backstops exactly-once settlement.
	ExistsForSession(ctx context.Context, sessionID uint, txType TransactionType) (bool, error)
}
