//go:build !windows

package capture

import "errors"

func newGDIDevice() (Device, error) {
	return nil, errors.New("capture: gdi backend requires windows")
}
