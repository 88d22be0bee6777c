//go:build !windows

package capture

import "fmt"

// ListWindows is only supported by the gdi backend.
func ListWindows() ([]string, error) {
	return nil, fmt.Errorf("%w: window enumeration requires windows", ErrUnsupportedTarget)
}
