//go:build windows

package hotkey

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL = 13
	wmQuit       = 0x0012
	wmKeyDown    = 0x0100
	wmSysKeyDown = 0x0104

	// llkhfInjected marks events produced by SendInput, including our own
	// playback.
	llkhfInjected = 0x10
)

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type platformState struct {
	threadID atomic.Uint32
}

var (
	instanceManager atomic.Pointer[Manager]
	keyboardHook    uintptr
	hookCallback    = syscall.NewCallback(keyboardHookProc)
)

func (m *Manager) startPlatform() error {
	if !instanceManager.CompareAndSwap(nil, m) {
		return fmt.Errorf("hotkey: a keyboard hook is already installed")
	}

	started := make(chan error, 1)

	// Hooks must be registered in the same thread that runs the message loop
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		hMod, _, _ := procGetModuleHandle.Call(0)
		hook, _, err := procSetWindowsHookEx.Call(whKeyboardLL, hookCallback, hMod, 0)
		if hook == 0 {
			instanceManager.Store(nil)
			started <- fmt.Errorf("hotkey: failed to set keyboard hook: %w", err)
			return
		}
		keyboardHook = hook
		m.platform.threadID.Store(windows.GetCurrentThreadId())
		m.logger.Info("hotkey: keyboard hook started")
		started <- nil

		var msg struct {
			Hwnd    syscall.Handle
			Message uint32
			Wparam  uintptr
			Lparam  uintptr
			Time    uint32
			Pt      struct{ X, Y int32 }
		}
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
		}

		procUnhookWindowsHookEx.Call(hook)
		keyboardHook = 0
		instanceManager.Store(nil)
		m.logger.Info("hotkey: keyboard hook stopped")
	}()

	return <-started
}

func (m *Manager) stopPlatform() {
	if tid := m.platform.threadID.Swap(0); tid != 0 {
		procPostThreadMessage.Call(uintptr(tid), wmQuit, 0, 0)
	}
}

func keyboardHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 {
		kbd := (*kbdllHookStruct)(unsafe.Pointer(lParam))
		if m := instanceManager.Load(); m != nil && kbd.Flags&llkhfInjected == 0 {
			if keyName := vkCodeToName(kbd.VkCode); keyName != "" {
				isDown := wParam == wmKeyDown || wParam == wmSysKeyDown
				m.UpdateState(keyName, isDown)
			}
		} else if m != nil {
			m.logger.Debug("hotkey: ignoring injected key", slog.Uint64("vk", uint64(kbd.VkCode)))
		}
	}
	ret, _, _ := procCallNextHookEx.Call(keyboardHook, uintptr(nCode), wParam, lParam)
	return ret
}

func vkCodeToName(vk uint32) string {
	switch vk {
	case 0x11, 0xA2, 0xA3:
		return "CTRL"
	case 0x12, 0xA4, 0xA5:
		return "ALT"
	case 0x10, 0xA0, 0xA1:
		return "SHIFT"
	case 0x5B, 0x5C:
		return "CMD"
	case 0x20:
		return "SPACE"
	case 0x0D:
		return "ENTER"
	case 0x1B:
		return "ESC"
	case 0x08:
		return "BACKSPACE"
	case 0x09:
		return "TAB"
	case 0x14:
		return "CAPSLOCK"
	case 0x21:
		return "PAGEUP"
	case 0x22:
		return "PAGEDOWN"
	case 0x23:
		return "END"
	case 0x24:
		return "HOME"
	case 0x25:
		return "LEFT"
	case 0x26:
		return "UP"
	case 0x27:
		return "RIGHT"
	case 0x28:
		return "DOWN"
	case 0x2D:
		return "INSERT"
	case 0x2E:
		return "DELETE"
	case 0x13:
		return "PAUSE"
	case 0x91:
		return "SCROLLLOCK"
	}

	// A-Z and 0-9 share their ASCII codes
	if (vk >= 0x41 && vk <= 0x5A) || (vk >= 0x30 && vk <= 0x39) {
		return string(rune(vk))
	}

	// F1-F12
	if vk >= 0x70 && vk <= 0x7B {
		return fmt.Sprintf("F%d", vk-0x6F)
	}

	return ""
}
