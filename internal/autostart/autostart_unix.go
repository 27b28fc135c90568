//go:build !windows

package autostart

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.Exec}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=Replay
Comment=Macro playback service
Exec={{.CommandLine}}
X-GNOME-Autostart-enabled=true
`

const macLabel = "com.macroreplay.serve"

var (
	plistTmpl   = template.Must(template.New("plist").Parse(macLaunchAgentPlist))
	desktopTmpl = template.Must(template.New("desktop").Parse(xdgDesktopEntry))
)

// entryPath is the launch agent on macOS and the XDG autostart entry
// elsewhere.
func entryPath(goos string) (string, error) {
	if goos == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "LaunchAgents", macLabel+".plist"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "autostart", Name+".desktop"), nil
}

func render(goos string, e Entry) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if goos == "darwin" {
		err = plistTmpl.Execute(&buf, struct {
			Label string
			Entry
		}{macLabel, escapeXML(e)})
	} else {
		err = desktopTmpl.Execute(&buf, struct{ CommandLine string }{desktopCommandLine(e)})
	}
	return buf.Bytes(), err
}

func escapeXML(e Entry) Entry {
	var b strings.Builder
	esc := func(s string) string {
		b.Reset()
		template.HTMLEscape(&b, []byte(s))
		return b.String()
	}
	out := Entry{Exec: esc(e.Exec)}
	for _, a := range e.Args {
		out.Args = append(out.Args, esc(a))
	}
	return out
}

// desktopCommandLine quotes every argument the way a desktop entry Exec key expects.
func desktopCommandLine(e Entry) string {
	quote := func(s string) string {
		if s != "" && !strings.ContainsAny(s, " \t\n\"'\\><~|&;$*?#()`%") {
			return s
		}
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`, `%`, `%%`)
		return `"` + r.Replace(s) + `"`
	}
	parts := []string{quote(e.Exec)}
	for _, a := range e.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func enable(e Entry) error {
	path, err := entryPath(runtime.GOOS)
	if err != nil {
		return err
	}
	data, err := render(runtime.GOOS, e)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func disable() error {
	path, err := entryPath(runtime.GOOS)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func isEnabled() bool {
	path, err := entryPath(runtime.GOOS)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
