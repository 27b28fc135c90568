package osutils

import (
	"strconv"
	"strings"
)

// ruleMatches reports whether netsh output describes an allow rule for port.
func ruleMatches(output string, port int) bool {
	if !strings.Contains(output, FirewallRuleName) {
		return false
	}
	var portOK, allow bool
	for line := range strings.Lines(output) {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "LocalPort":
			portOK = value == strconv.Itoa(port)
		case "Action":
			allow = value == "Allow"
		}
	}
	return portOK && allow
}
