package capture

import "errors"

var (
	// ErrTimeout means no new frame arrived within the acquire timeout.
	ErrTimeout = errors.New("capture: acquire timeout")
	// ErrDeviceLost means the output was invalidated (mode change, access
	// lost, device removed or reset) and the session must be rebuilt.
	ErrDeviceLost = errors.New("capture: device lost")
	// ErrCaptureUnavailable is reported once repeated recovery attempts fail.
	ErrCaptureUnavailable = errors.New("capture: unavailable")
	// ErrUnsupportedTarget means the backend cannot capture the requested target.
	ErrUnsupportedTarget = errors.New("capture: unsupported target")
)
