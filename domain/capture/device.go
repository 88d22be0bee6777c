package capture

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// NewDevice returns the capture backend with the given name: "gdi" (Windows
// GDI), "screenshot" (portable full-screen grab) or "display" (primary
// display bounds).
func NewDevice(backend string) (Device, error) {
	switch strings.ToLower(backend) {
	case "gdi":
		return newGDIDevice()
	case "screenshot":
		return screenshotDevice{}, nil
	case "display":
		return displayDevice{}, nil
	default:
		return nil, fmt.Errorf("capture: unknown backend %q", backend)
	}
}

// grabFunc captures rect and returns a freshly allocated image.
type grabFunc func(rect image.Rectangle) (*image.RGBA, error)

// boundsFunc reports the current capture bounds.
type boundsFunc func() (image.Rectangle, error)

// polledSession adapts libraries that return a new image per call. A change
// of output bounds since Open is reported as a lost device so the caller
// rebuilds its buffers at the new size.
type polledSession struct {
	name   string
	rect   image.Rectangle
	bounds boundsFunc
	grab   grabFunc
}

func openPolled(name string, target Target, bounds boundsFunc, grab grabFunc) (*polledSession, error) {
	if target.Window != "" {
		return nil, fmt.Errorf("%w: %s backend cannot capture window %q", ErrUnsupportedTarget, name, target.Window)
	}
	r, err := bounds()
	if err != nil {
		return nil, fmt.Errorf("capture: %s bounds: %w", name, err)
	}
	if r.Empty() {
		return nil, fmt.Errorf("capture: %s reports empty output %v", name, r)
	}
	return &polledSession{name: name, rect: r, bounds: bounds, grab: grab}, nil
}

func (s *polledSession) Size() image.Point { return s.rect.Size() }

// AcquireNextFrame ignores timeout: the underlying call is synchronous.
func (s *polledSession) AcquireNextFrame(_ time.Duration, dst *image.RGBA) error {
	r, err := s.bounds()
	if err != nil {
		return fmt.Errorf("capture: %s bounds: %w", s.name, err)
	}
	if r != s.rect {
		return fmt.Errorf("%w: %s output changed %v -> %v", ErrDeviceLost, s.name, s.rect, r)
	}
	img, err := s.grab(s.rect)
	if err != nil {
		return fmt.Errorf("capture: %s grab: %w", s.name, err)
	}
	if !copyInto(dst, img) {
		return fmt.Errorf("%w: %s frame %v does not match session %v", ErrDeviceLost, s.name, img.Rect.Size(), s.rect.Size())
	}
	return nil
}

func (s *polledSession) Close() error { return nil }
