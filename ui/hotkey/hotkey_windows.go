//go:build windows

package hotkey

import (
	"log/slog"

	"github.com/moutend/go-hook/pkg/keyboard"
	"github.com/moutend/go-hook/pkg/types"
)

func install(logger *slog.Logger) (<-chan KeyEvent, func(), error) {
	raw := make(chan types.KeyboardEvent, 100)
	go func() {
		if err := keyboard.Install(nil, raw); err != nil && logger != nil {
			logger.Error("hotkey.install", "error", err)
		}
	}()

	events := make(chan KeyEvent, 100)
	done := make(chan struct{})
	go func() {
		defer close(events)
		for {
			select {
			case <-done:
				return
			case ev := <-raw:
				var down bool
				switch ev.Message {
				case types.WM_KEYDOWN:
					down = true
				case types.WM_KEYUP:
				default:
					continue
				}
				select {
				case events <- KeyEvent{Code: uint32(ev.VKCode), Down: down}:
				case <-done:
					return
				}
			}
		}
	}()

	uninstall := func() {
		close(done)
		if err := keyboard.Uninstall(); err != nil && logger != nil {
			logger.Debug("hotkey.uninstall", "error", err)
		}
	}
	return events, uninstall, nil
}
