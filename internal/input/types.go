// Package input provides the actuator that performs replayed pointer and
// keyboard actions on the local machine.
package input

import (
	"errors"
	"slices"
)

// ErrUnsupported is returned by the platform injector where input injection
// is not implemented.
var ErrUnsupported = errors.New("input injection not supported on this platform")

// Pointer buttons understood by every actuator.
const (
	ButtonLeft   = "left"
	ButtonRight  = "right"
	ButtonMiddle = "middle"
)

// SpecialKeys are the symbolic key names a macro may use. Any other key is a
// single literal character.
var SpecialKeys = []string{
	"enter", "space", "backspace", "delete", "tab",
	"shift", "ctrl", "alt", "caps_lock", "esc",
	"up", "down", "left", "right",
}

// IsSpecialKey reports whether name is one of SpecialKeys.
func IsSpecialKey(name string) bool {
	return slices.Contains(SpecialKeys, name)
}

// Actuator performs input actions. Calls are synchronous and expected to
// return quickly.
type Actuator interface {
	MovePointer(x, y int) error
	PressButton(button string) error
	ReleaseButton(button string) error
	PressKey(key string) error
	ReleaseKey(key string) error
	PointerPosition() (x, y int, err error)
}
