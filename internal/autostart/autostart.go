// Package autostart registers the replay service to start on login.
package autostart

import (
	"errors"
	"fmt"
	"os"
)

// Name identifies the login entry on every platform.
const Name = "replay"

// Entry is the command started on login.
type Entry struct {
	Exec string
	Args []string
}

// Command returns an entry that runs the current executable with args.
func Command(args ...string) (Entry, error) {
	exe, err := os.Executable()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get executable path: %w", err)
	}
	return Entry{Exec: exe, Args: args}, nil
}

// Enable registers e to run on login, replacing an existing entry.
func Enable(e Entry) error {
	if e.Exec == "" {
		return errors.New("autostart: empty command")
	}
	return enable(e)
}

// Disable removes the login entry. It is not an error if none exists.
func Disable() error {
	return disable()
}

// IsEnabled reports whether a login entry exists.
func IsEnabled() bool {
	return isEnabled()
}
