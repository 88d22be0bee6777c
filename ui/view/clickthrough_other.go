//go:build !windows

package view

// makeClickThrough is a no-op; other window managers keep the overlay
// clickable.
func makeClickThrough(string) error { return nil }
