//go:build !windows

package hotkey

import (
	"errors"
	"log/slog"
)

func install(*slog.Logger) (<-chan KeyEvent, func(), error) {
	return nil, nil, errors.New("hotkey: global hotkeys require windows")
}
