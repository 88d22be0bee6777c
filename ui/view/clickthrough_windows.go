//go:build windows

package view

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	gwlExStyle       = -20
	wsExLayered      = 0x00080000
	wsExTransparent  = 0x00000020
	wsExNoActivate   = 0x08000000
	clickThroughMask = wsExLayered | wsExTransparent | wsExNoActivate
)

var (
	user32                = windows.NewLazySystemDLL("user32.dll")
	procFindWindowW       = user32.NewProc("FindWindowW")
	procGetWindowLongPtrW = user32.NewProc("GetWindowLongPtrW")
	procSetWindowLongPtrW = user32.NewProc("SetWindowLongPtrW")
)

// makeClickThrough lets mouse input pass through the top-level window with
// the given title.
func makeClickThrough(title string) error {
	p, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return err
	}
	hwnd, _, _ := procFindWindowW.Call(0, uintptr(unsafe.Pointer(p)))
	if hwnd == 0 {
		return fmt.Errorf("view: window %q not found", title)
	}
	idx := gwlExStyle
	style, _, _ := procGetWindowLongPtrW.Call(hwnd, uintptr(idx))
	if r, _, err := procSetWindowLongPtrW.Call(hwnd, uintptr(idx), style|clickThroughMask); r == 0 && err != windows.ERROR_SUCCESS {
		return fmt.Errorf("view: SetWindowLongPtrW: %w", err)
	}
	return nil
}
