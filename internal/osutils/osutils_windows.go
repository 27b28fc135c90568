//go:build windows

// Package osutils holds the platform chores around running the service:
// privilege checks and opening the control port in the firewall.
package osutils

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// FirewallRuleName is the inbound rule created for the control API.
const FirewallRuleName = "Replay control API"

// IsAdmin checks if the current process has administrative privileges.
// Windows blocks injected input into elevated windows unless the
// injecting process is elevated too.
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token)
	if err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err = windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}
	return member
}

// EnsureFirewallRule makes sure an inbound rule allows TCP on port, asking
// for elevation through UAC when the process is not elevated.
func EnsureFirewallRule(port int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("rule", FirewallRuleName), slog.Int("port", port))

	output, err := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+FirewallRuleName).CombinedOutput()
	if err == nil && ruleMatches(string(output), port) {
		logger.Debug("firewall: rule up to date")
		return nil
	}
	logger.Info("firewall: creating rule")

	psCommand := fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%s' -ErrorAction SilentlyContinue; New-NetFirewallRule -DisplayName '%s' -Direction Inbound -LocalPort %d -Protocol TCP -Action Allow -Profile Any",
		FirewallRuleName, FirewallRuleName, port,
	)

	if !IsAdmin() {
		verbPtr, _ := syscall.UTF16PtrFromString("runas")
		exePtr, _ := syscall.UTF16PtrFromString("powershell.exe")
		argPtr, _ := syscall.UTF16PtrFromString(fmt.Sprintf("-NoProfile -WindowStyle Hidden -Command \"%s\"", psCommand))

		if err := windows.ShellExecute(0, verbPtr, exePtr, argPtr, nil, windows.SW_HIDE); err != nil {
			return fmt.Errorf("failed to launch elevated powershell: %w", err)
		}
		logger.Info("firewall: elevation requested, confirm the UAC prompt")
		return nil
	}

	if output, err := exec.Command("powershell", "-NoProfile", "-Command", psCommand).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to create firewall rule: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	logger.Info("firewall: rule created")
	return nil
}
