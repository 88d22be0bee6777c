package capture

import (
	"image"
	"time"
)

// FrameSnapshot is one captured frame handed to a consumer. Image is an
// independent copy; later captures never write into it.
type FrameSnapshot struct {
	Image      *image.RGBA
	CapturedAt time.Time
	Sequence   uint64
}

// CaptureStats summarises capture behaviour for instrumentation.
type CaptureStats struct {
	Captures         uint64
	Timeouts         uint64
	Skipped          uint64
	Recoveries       uint64
	AvgCapture       time.Duration
	AvgCaptureMicros float64
	LastCapture      time.Time
	LatestFrameAge   time.Duration
	Sequence         uint64
}

// Target selects what a session captures. The zero value is the primary
// screen; Window names a top-level window by title.
type Target struct {
	Window string
}

// Device opens capture sessions for one backend.
type Device interface {
	Name() string
	Open(target Target) (Session, error)
}

// Session is an open duplication of the target's output. AcquireNextFrame
// writes the next frame into dst, which is sized to Size(). It returns
// ErrTimeout when no frame arrives in time and an error wrapping
// ErrDeviceLost when the session must be rebuilt.
type Session interface {
	Size() image.Point
	AcquireNextFrame(timeout time.Duration, dst *image.RGBA) error
	Close() error
}
