package capture

import (
	vscreen "github.com/vova616/screenshot"
)

// screenshotDevice captures the whole screen through vova616/screenshot.
type screenshotDevice struct{}

func (screenshotDevice) Name() string { return "screenshot" }

func (screenshotDevice) Open(target Target) (Session, error) {
	return openPolled("screenshot", target, vscreen.ScreenRect, vscreen.CaptureRect)
}
