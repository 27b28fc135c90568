//go:build windows

package input

import (
	"fmt"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseLeftDown   = 0x0002
	mouseLeftUp     = 0x0004
	mouseRightDown  = 0x0008
	mouseRightUp    = 0x0010
	mouseMiddleDown = 0x0020
	mouseMiddleUp   = 0x0040

	keyEventKeyUp   = 0x0002
	keyEventUnicode = 0x0004
)

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	procSendInput    = user32.NewProc("SendInput")
	procSetCursorPos = user32.NewProc("SetCursorPos")
	procGetCursorPos = user32.NewProc("GetCursorPos")
)

var virtualKeys = map[string]uint16{
	"enter":     0x0D,
	"space":     0x20,
	"backspace": 0x08,
	"delete":    0x2E,
	"tab":       0x09,
	"shift":     0x10,
	"ctrl":      0x11,
	"alt":       0x12,
	"caps_lock": 0x14,
	"esc":       0x1B,
	"up":        0x26,
	"down":      0x28,
	"left":      0x25,
	"right":     0x27,
}

type mouseInput struct {
	Dx        int32
	Dy        int32
	MouseData uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

type keybdInput struct {
	Vk        uint16
	Scan      uint16
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// mouseINPUT and keybdINPUT mirror the Win32 INPUT union. The keyboard
// variant is padded to the size of the mouse variant.
type mouseINPUT struct {
	Type uint32
	Mi   mouseInput
}

type keybdINPUT struct {
	Type uint32
	Ki   keybdInput
	_    [8]byte
}

type point struct {
	X, Y int32
}

// Injector drives the pointer and keyboard through user32 SendInput.
type Injector struct{}

// NewInjector creates a new Windows injector
func NewInjector() *Injector {
	return &Injector{}
}

// MovePointer jumps the cursor to absolute screen coordinates.
func (i *Injector) MovePointer(x, y int) error {
	ret, _, err := procSetCursorPos.Call(uintptr(x), uintptr(y))
	if ret == 0 {
		return fmt.Errorf("SetCursorPos failed: %w", err)
	}
	return nil
}

// PointerPosition returns the current cursor position.
func (i *Injector) PointerPosition() (int, int, error) {
	var pt point
	ret, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	if ret == 0 {
		return 0, 0, fmt.Errorf("GetCursorPos failed: %w", err)
	}
	return int(pt.X), int(pt.Y), nil
}

// PressButton sends a button-down event.
func (i *Injector) PressButton(button string) error {
	down, _, err := buttonFlags(button)
	if err != nil {
		return err
	}
	return sendMouse(down)
}

// ReleaseButton sends a button-up event.
func (i *Injector) ReleaseButton(button string) error {
	_, up, err := buttonFlags(button)
	if err != nil {
		return err
	}
	return sendMouse(up)
}

// PressKey sends a key-down event.
func (i *Injector) PressKey(key string) error {
	return sendKey(key, false)
}

// ReleaseKey sends a key-up event.
func (i *Injector) ReleaseKey(key string) error {
	return sendKey(key, true)
}

func buttonFlags(button string) (uint32, uint32, error) {
	switch button {
	case ButtonLeft:
		return mouseLeftDown, mouseLeftUp, nil
	case ButtonRight:
		return mouseRightDown, mouseRightUp, nil
	case ButtonMiddle:
		return mouseMiddleDown, mouseMiddleUp, nil
	default:
		return 0, 0, fmt.Errorf("unknown button: %s", button)
	}
}

func sendMouse(flags uint32) error {
	in := mouseINPUT{Type: inputMouse, Mi: mouseInput{Flags: flags}}
	ret, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if ret == 0 {
		return fmt.Errorf("SendInput (mouse 0x%04X) failed: %w", flags, err)
	}
	return nil
}

func sendKey(key string, up bool) error {
	in := keybdINPUT{Type: inputKeyboard}
	if vk, ok := virtualKeys[key]; ok {
		in.Ki.Vk = vk
	} else {
		// literal characters go through the unicode path so layout does not matter
		units := utf16.Encode([]rune(key))
		if len(units) != 1 {
			return fmt.Errorf("unsupported key: %q", key)
		}
		in.Ki.Scan = units[0]
		in.Ki.Flags = keyEventUnicode
	}
	if up {
		in.Ki.Flags |= keyEventKeyUp
	}

	ret, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(mouseINPUT{}))
	if ret == 0 {
		return fmt.Errorf("SendInput (key %q) failed: %w", key, err)
	}
	return nil
}
