package capture

import (
	"errors"
	"image"

	kscreen "github.com/kbinani/screenshot"
)

// primaryDisplay is the display index captured by the display backend.
const primaryDisplay = 0

// displayDevice captures the primary display through kbinani/screenshot.
type displayDevice struct{}

func (displayDevice) Name() string { return "display" }

func (displayDevice) Open(target Target) (Session, error) {
	return openPolled("display", target, primaryBounds, kscreen.CaptureRect)
}

func primaryBounds() (image.Rectangle, error) {
	if kscreen.NumActiveDisplays() <= primaryDisplay {
		return image.Rectangle{}, errors.New("no active display")
	}
	return kscreen.GetDisplayBounds(primaryDisplay), nil
}
