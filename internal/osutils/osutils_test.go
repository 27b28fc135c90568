package osutils

import (
	"strings"
	"testing"
)

func TestRuleMatches(t *testing.T) {
	const shown = `
Rule Name:                            Replay control API
----------------------------------------------------------------------
Enabled:                              Yes
Direction:                            In
Profiles:                             Domain,Private,Public
LocalIP:                              Any
RemoteIP:                             Any
Protocol:                             TCP
LocalPort:                            18090
RemotePort:                           Any
Action:                               Allow
Ok.
`
	tests := []struct {
		name   string
		output string
		port   int
		want   bool
	}{
		{"match", shown, 18090, true},
		{"other port", shown, 18091, false},
		{"port as substring", shown, 1809, false},
		{"blocked", strings.Replace(shown, "Allow", "Block", 1), 18090, false},
		{"missing", "No rules match the specified criteria.\n", 18090, false},
	}
	for _, tt := range tests {
		if got := ruleMatches(tt.output, tt.port); got != tt.want {
			t.Errorf("%s: ruleMatches = %v, want %v", tt.name, got, tt.want)
		}
	}
}
