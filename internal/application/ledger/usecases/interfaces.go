package usecases

import (
	"github.com/worldvpn/broker/internal/domain/ledger"
)

// AlertMailer is the slice of the operator mailer the ledger verifier needs.
type AlertMailer interface {
	SendLedgerAlert(discrepancies []ledger.Discrepancy) error
}
