//go:build windows

package capture

// GDI capture with one persistent screen DC, memory DC and top-down DIB
// section per session. Each frame BitBlt's the target into the DIB and
// converts BGRA to RGBA straight into the caller's buffer.

import (
	"errors"
	"fmt"
	"image"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Win32 constants
const (
	smCxScreen   = 0
	smCyScreen   = 1
	srccopy      = 0x00CC0020
	captureBlt   = 0x40000000
	dibRGBColors = 0
	biRgb        = 0
)

// Win32 DLL procs (lazy loaded)
var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	gdi32                  = windows.NewLazySystemDLL("gdi32.dll")
	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
	procGetSystemMetrics   = user32.NewProc("GetSystemMetrics")
	procFindWindowW        = user32.NewProc("FindWindowW")
	procIsWindow           = user32.NewProc("IsWindow")
	procGetWindowRect      = user32.NewProc("GetWindowRect")
	procCreateCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	procDeleteDC           = gdi32.NewProc("DeleteDC")
	procSelectObject       = gdi32.NewProc("SelectObject")
	procBitBlt             = gdi32.NewProc("BitBlt")
	procCreateDIBSection   = gdi32.NewProc("CreateDIBSection")
	procDeleteObject       = gdi32.NewProc("DeleteObject")
)

// BITMAPINFO structures (Win32 layout).
type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

type bitmapInfo struct {
	Header bitmapInfoHeader
	_      [4]byte // one RGBQUAD placeholder (unused for 32-bit)
}

type gdiDevice struct{}

func newGDIDevice() (Device, error) { return gdiDevice{}, nil }

func (gdiDevice) Name() string { return "gdi" }

type gdiSession struct {
	hwnd     uintptr // 0 for the whole screen
	rect     image.Rectangle
	screenDC uintptr
	memDC    uintptr
	bmp      uintptr
	prevObj  uintptr
	bits     unsafe.Pointer
}

func (gdiDevice) Open(target Target) (Session, error) {
	s := &gdiSession{}
	if target.Window != "" {
		title, err := windows.UTF16PtrFromString(target.Window)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedTarget, err)
		}
		hwnd, _, _ := procFindWindowW.Call(0, uintptr(unsafe.Pointer(title)))
		if hwnd == 0 {
			return nil, fmt.Errorf("capture: window %q not found", target.Window)
		}
		s.hwnd = hwnd
	}
	r, err := s.currentRect()
	if err != nil {
		return nil, err
	}
	s.rect = r
	if err := s.allocate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// currentRect returns the target rectangle in screen coordinates.
func (s *gdiSession) currentRect() (image.Rectangle, error) {
	if s.hwnd == 0 {
		w := int(getSystemMetric(smCxScreen))
		h := int(getSystemMetric(smCyScreen))
		if w <= 0 || h <= 0 {
			return image.Rectangle{}, fmt.Errorf("capture: invalid screen size w=%d h=%d", w, h)
		}
		return image.Rect(0, 0, w, h), nil
	}
	if ok, _, _ := procIsWindow.Call(s.hwnd); ok == 0 {
		return image.Rectangle{}, fmt.Errorf("%w: window closed", ErrDeviceLost)
	}
	var wr windows.Rect
	if ok, _, err := procGetWindowRect.Call(s.hwnd, uintptr(unsafe.Pointer(&wr))); ok == 0 {
		return image.Rectangle{}, fmt.Errorf("capture: GetWindowRect failed: %w", err)
	}
	r := image.Rect(int(wr.Left), int(wr.Top), int(wr.Right), int(wr.Bottom))
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("capture: window %v has no area", r)
	}
	return r, nil
}

func (s *gdiSession) allocate() error {
	w, h := s.rect.Dx(), s.rect.Dy()

	screenDC, _, err := procGetDC.Call(0)
	if screenDC == 0 {
		return fmt.Errorf("capture: GetDC failed: %w", err)
	}
	s.screenDC = screenDC

	memDC, _, err := procCreateCompatibleDC.Call(screenDC)
	if memDC == 0 {
		return fmt.Errorf("capture: CreateCompatibleDC failed: %w", err)
	}
	s.memDC = memDC

	var bi bitmapInfo
	bi.Header.BiSize = uint32(unsafe.Sizeof(bi.Header))
	bi.Header.BiWidth = int32(w)
	bi.Header.BiHeight = -int32(h) // top-down
	bi.Header.BiPlanes = 1
	bi.Header.BiBitCount = 32
	bi.Header.BiCompression = biRgb
	bi.Header.BiSizeImage = uint32(w * h * 4)

	bmp, _, err := procCreateDIBSection.Call(memDC, uintptr(unsafe.Pointer(&bi)), dibRGBColors, uintptr(unsafe.Pointer(&s.bits)), 0, 0)
	if bmp == 0 {
		return fmt.Errorf("capture: CreateDIBSection failed: %w", err)
	}
	s.bmp = bmp

	prev, _, err := procSelectObject.Call(memDC, bmp)
	if prev == 0 || prev == ^uintptr(0) { // failure or GDI_ERROR
		return fmt.Errorf("capture: SelectObject failed: %w", err)
	}
	s.prevObj = prev
	return nil
}

func (s *gdiSession) Size() image.Point { return s.rect.Size() }

// AcquireNextFrame copies the target into dst. GDI has no frame-ready
// signal, so timeout is unused and every call yields a frame.
func (s *gdiSession) AcquireNextFrame(_ time.Duration, dst *image.RGBA) error {
	r, err := s.currentRect()
	if err != nil {
		return err
	}
	if r.Size() != s.rect.Size() {
		return fmt.Errorf("%w: output resized %v -> %v", ErrDeviceLost, s.rect.Size(), r.Size())
	}
	s.rect = r // window may have moved

	w, h := r.Dx(), r.Dy()
	ok, _, err := procBitBlt.Call(s.memDC, 0, 0, uintptr(w), uintptr(h), s.screenDC, uintptr(r.Min.X), uintptr(r.Min.Y), srccopy|captureBlt)
	if ok == 0 {
		// Secure desktop switches and display resets revoke access to the
		// screen DC; the DCs must be recreated.
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) || errors.Is(err, windows.ERROR_INVALID_HANDLE) {
			return fmt.Errorf("%w: BitBlt: %v", ErrDeviceLost, err)
		}
		return fmt.Errorf("capture: BitBlt failed x=%d y=%d w=%d h=%d: %w", r.Min.X, r.Min.Y, w, h, err)
	}

	pixLen := w * h * 4
	src := unsafe.Slice((*byte)(s.bits), pixLen)
	pix := dst.Pix[:pixLen]
	for i := 0; i < pixLen; i += 4 {
		pix[i+0] = src[i+2]
		pix[i+1] = src[i+1]
		pix[i+2] = src[i+0]
		pix[i+3] = 0xFF // DIB alpha is undefined
	}
	return nil
}

func (s *gdiSession) Close() error {
	if s.memDC != 0 && s.prevObj != 0 {
		procSelectObject.Call(s.memDC, s.prevObj)
	}
	if s.bmp != 0 {
		procDeleteObject.Call(s.bmp)
	}
	if s.memDC != 0 {
		procDeleteDC.Call(s.memDC)
	}
	if s.screenDC != 0 {
		procReleaseDC.Call(0, s.screenDC)
	}
	*s = gdiSession{hwnd: s.hwnd, rect: s.rect}
	return nil
}

func getSystemMetric(idx int) int32 {
	v, _, _ := procGetSystemMetrics.Call(uintptr(idx))
	return int32(v)
}
