//go:build !windows

// Package osutils holds the platform chores around running the service:
// privilege checks and opening the control port in the firewall.
package osutils

import (
	"log/slog"
	"os"
)

// FirewallRuleName is the inbound rule created for the control API.
const FirewallRuleName = "Replay control API"

// IsAdmin reports whether the process runs as root.
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// EnsureFirewallRule only manages rules on Windows.
func EnsureFirewallRule(port int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("firewall: rule management is only supported on Windows", slog.Int("port", port))
	return nil
}
