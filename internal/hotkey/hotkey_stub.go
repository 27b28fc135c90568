//go:build !windows

package hotkey

type platformState struct{}

func (m *Manager) startPlatform() error {
	m.logger.Warn("hotkey: global hooks not supported on this platform")
	return nil
}

func (m *Manager) stopPlatform() {}
