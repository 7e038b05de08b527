// Package email sends operator alert mail. Alerts fire for conditions that
// need a human: ledger discrepancies and abuse bans. When no SMTP host or
// operator address is configured the mailer degrades to logging.
package email

import (
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/shared/config"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// AlertMailer delivers operator alerts.
type AlertMailer interface {
	SendLedgerAlert(discrepancies []ledger.Discrepancy) error
	SendAbuseAlert(userSID string, riskScore int, reason string) error
}

type SMTPAlertMailer struct {
	config config.EmailConfig
	dialer *gomail.Dialer
	logger logger.Interface
}

func NewSMTPAlertMailer(cfg config.EmailConfig, log logger.Interface) AlertMailer {
	return &SMTPAlertMailer{
		config: cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		logger: log,
	}
}

// SendLedgerAlert reports cached-balance mismatches found by the daily
// verification run.
func (s *SMTPAlertMailer) SendLedgerAlert(discrepancies []ledger.Discrepancy) error {
	if len(discrepancies) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ledger verification found %d account(s) whose cached balance disagrees with the transaction log.\n\n", len(discrepancies))
	for _, d := range discrepancies {
		fmt.Fprintf(&b, "  user %s: cached %d, computed %d (drift %+d)\n",
			d.UserSID, d.Cached, d.Computed, d.Cached-d.Computed)
	}
	b.WriteString("\nNo automatic repair was performed. Inspect the credit_transactions table before correcting.\n")

	subject := fmt.Sprintf("[broker] ledger discrepancy: %d account(s)", len(discrepancies))
	return s.send(subject, b.String())
}

// SendAbuseAlert reports a user crossing the abuse ban threshold.
func (s *SMTPAlertMailer) SendAbuseAlert(userSID string, riskScore int, reason string) error {
	body := fmt.Sprintf(
		"User %s was banned by the abuse guard.\n\nRisk score: %d\nReason: %s\n\nThe ban lifts automatically; review the account if this repeats.\n",
		userSID, riskScore, reason)
	subject := fmt.Sprintf("[broker] abuse ban: %s", userSID)
	return s.send(subject, body)
}

func (s *SMTPAlertMailer) send(subject, body string) error {
	if !s.config.Configured() {
		s.logger.Warnw("operator alert not sent, mailer unconfigured", "subject", subject)
		return nil
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.config.FromAddress, s.config.FromName)
	m.SetHeader("To", s.config.OperatorAddress)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	s.logger.Infow("operator alert sent", "subject", subject)
	return nil
}
