//go:build !windows

package autostart

import (
	"encoding/xml"
	"os"
	"runtime"
	"strings"
	"testing"
)

func TestRenderLaunchAgent(t *testing.T) {
	data, err := render("darwin", Entry{Exec: "/Apps/Re&play/replay", Args: []string{"serve", "--tray"}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var plist struct {
		Dict struct {
			Strings []string `xml:"string"`
			Arrays  []struct {
				Strings []string `xml:"string"`
			} `xml:"array"`
		} `xml:"dict"`
	}
	if err := xml.Unmarshal(data, &plist); err != nil {
		t.Fatalf("plist is not valid XML: %v\n%s", err, data)
	}
	if got := plist.Dict.Strings; len(got) != 1 || got[0] != macLabel {
		t.Errorf("label = %v", got)
	}
	if len(plist.Dict.Arrays) != 1 {
		t.Fatalf("arrays = %d, want 1", len(plist.Dict.Arrays))
	}
	args := plist.Dict.Arrays[0].Strings
	want := []string{"/Apps/Re&play/replay", "serve", "--tray"}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Errorf("ProgramArguments = %q, want %q", args, want)
	}
}

func TestDesktopCommandLine(t *testing.T) {
	tests := []struct {
		entry Entry
		want  string
	}{
		{Entry{Exec: "/usr/bin/replay", Args: []string{"serve", "--tray"}}, "/usr/bin/replay serve --tray"},
		{Entry{Exec: "/opt/my apps/replay", Args: []string{"--config", "/home/u/100%.json"}},
			`"/opt/my apps/replay" --config "/home/u/100%%.json"`},
		{Entry{Exec: "/bin/replay", Args: []string{`say "hi"`, ""}}, `/bin/replay "say \"hi\"" ""`},
	}
	for _, tt := range tests {
		if got := desktopCommandLine(tt.entry); got != tt.want {
			t.Errorf("desktopCommandLine(%+v) = %s, want %s", tt.entry, got, tt.want)
		}
	}
}

func TestEnableDisable(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home+"/.config")

	if IsEnabled() {
		t.Fatal("enabled before Enable")
	}
	if err := Enable(Entry{}); err == nil {
		t.Error("empty entry accepted")
	}
	if err := Enable(Entry{Exec: "/usr/bin/replay", Args: []string{"serve", "--tray"}}); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !IsEnabled() {
		t.Fatal("not enabled after Enable")
	}

	path, err := entryPath(runtime.GOOS)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(path, home) {
		t.Errorf("entry written outside the test home: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "serve") {
		t.Errorf("entry does not run serve:\n%s", data)
	}

	if err := Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if IsEnabled() {
		t.Error("still enabled after Disable")
	}
	if err := Disable(); err != nil {
		t.Errorf("second Disable: %v", err)
	}
}
