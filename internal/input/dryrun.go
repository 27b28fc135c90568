package input

import (
	"log/slog"
	"sync"
)

// DryRun logs every action instead of performing it. It tracks a virtual
// pointer so smooth motion has a starting point.
type DryRun struct {
	mu     sync.Mutex
	logger *slog.Logger
	x, y   int
}

// NewDryRun creates a logging actuator. A nil logger uses slog.Default().
func NewDryRun(logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRun{logger: logger.With(slog.String("actuator", "dry-run"))}
}

func (d *DryRun) MovePointer(x, y int) error {
	d.mu.Lock()
	d.x, d.y = x, y
	d.mu.Unlock()
	d.logger.Debug("move pointer", slog.Int("x", x), slog.Int("y", y))
	return nil
}

func (d *DryRun) PointerPosition() (int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.x, d.y, nil
}

func (d *DryRun) PressButton(button string) error {
	d.logger.Info("press button", slog.String("button", button))
	return nil
}

func (d *DryRun) ReleaseButton(button string) error {
	d.logger.Info("release button", slog.String("button", button))
	return nil
}

func (d *DryRun) PressKey(key string) error {
	d.logger.Info("press key", slog.String("key", key))
	return nil
}

func (d *DryRun) ReleaseKey(key string) error {
	d.logger.Info("release key", slog.String("key", key))
	return nil
}
