package permission

import (
	"fmt"

	"github.com/worldvpn/broker/internal/shared/logger"
)

// InitBrokerPermissions seeds the role policies for the broker's resources.
// Idempotent: AddPolicy is a no-op for rows that already exist.
func InitBrokerPermissions(e *Enforcer, log logger.Interface) error {
	policies := [][]string{
		// Admin permissions - directory and ledger oversight
		{"admin", "node", "read"},
		{"admin", "node", "update"},
		{"admin", "node", "disable"},
		{"admin", "node", "import"},
		{"admin", "session", "read"},
		{"admin", "session", "close"},
		{"admin", "ledger", "read"},
		{"admin", "ledger", "adjust"},
		{"admin", "ledger", "verify"},
		{"admin", "user", "read"},
		{"admin", "user", "update"},

		// User permissions - own nodes, own sessions, own ledger
		{"user", "node", "register"},
		{"user", "node", "read"},
		{"user", "session", "connect"},
		{"user", "session", "read"},
		{"user", "session", "close"},
		{"user", "ledger", "read"},
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, policy := range policies {
		if _, err := e.enforcer.AddPolicy(policy); err != nil {
			log.Errorw("failed to add permission policy",
				"error", err, "role", policy[0], "resource", policy[1], "action", policy[2])
			return fmt.Errorf("failed to add policy [%s, %s, %s]: %w",
				policy[0], policy[1], policy[2], err)
		}
	}

	if err := e.enforcer.SavePolicy(); err != nil {
		log.Error("failed to save broker permissions", "error", err)
		return fmt.Errorf("failed to save broker permissions: %w", err)
	}

	log.Info("broker permissions initialized")
	return nil
}
