package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction(t *testing.T) {
	sessionID := uint(7)
	tx, err := NewTransaction(3, &sessionID, -15, TransactionSpent, "relay usage")
	require.NoError(t, err)

	assert.Equal(t, uint(3), tx.UserID())
	assert.Equal(t, int64(-15), tx.Amount())
	assert.Equal(t, TransactionSpent, tx.Type())
	assert.Equal(t, &sessionID, tx.SessionID())
	assert.NotEmpty(t, tx.SID())
	assert.False(t, tx.CreatedAt().IsZero())
}

func TestNewTransactionSignDiscipline(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		txType  TransactionType
		wantErr bool
	}{
		{"spent negative ok", -10, TransactionSpent, false},
		{"spent zero ok", 0, TransactionSpent, false},
		{"spent positive rejected", 10, TransactionSpent, true},
		{"earned positive ok", 12, TransactionEarned, false},
		{"earned negative rejected", -12, TransactionEarned, true},
		{"bonus positive ok", 100, TransactionBonus, false},
		{"bonus negative rejected", -1, TransactionBonus, true},
		{"penalty zero ok", 0, TransactionPenalty, false},
		{"penalty negative ok", -50, TransactionPenalty, false},
		{"penalty positive rejected", 5, TransactionPenalty, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransaction(1, nil, tt.amount, tt.txType, "test")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewTransactionRejectsInvalidInput(t *testing.T) {
	_, err := NewTransaction(0, nil, 5, TransactionBonus, "no user")
	assert.Error(t, err)

	_, err = NewTransaction(1, nil, 5, TransactionType("REFUND"), "unknown type")
	assert.Error(t, err)
}

func TestSetID(t *testing.T) {
	tx, err := NewTransaction(1, nil, 5, TransactionBonus, "signup")
	require.NoError(t, err)

	require.NoError(t, tx.SetID(42))
	assert.Equal(t, uint(42), tx.ID())

	assert.Error(t, tx.SetID(43), "ID must be immutable once set")
	assert.Error(t, tx.SetID(0))
}
