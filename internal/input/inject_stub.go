//go:build !windows

package input

// Stub implementation for platforms without an injector

// Injector represents a stub input injector
type Injector struct{}

// NewInjector creates a new stub injector
func NewInjector() *Injector {
	return &Injector{}
}

// MovePointer is not supported on this platform.
func (i *Injector) MovePointer(x, y int) error {
	return ErrUnsupported
}

// PointerPosition is not supported on this platform.
func (i *Injector) PointerPosition() (int, int, error) {
	return 0, 0, ErrUnsupported
}

// PressButton is not supported on this platform.
func (i *Injector) PressButton(button string) error {
	return ErrUnsupported
}

// ReleaseButton is not supported on this platform.
func (i *Injector) ReleaseButton(button string) error {
	return ErrUnsupported
}

// PressKey is not supported on this platform.
func (i *Injector) PressKey(key string) error {
	return ErrUnsupported
}

// ReleaseKey is not supported on this platform.
func (i *Injector) ReleaseKey(key string) error {
	return ErrUnsupported
}
