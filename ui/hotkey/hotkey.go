// Package hotkey watches global key presses and turns the bound keys into
// overlay actions. The overlay window never takes focus, so Tk bindings on it
// do not fire; a low-level keyboard hook is used instead.
package hotkey

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Action is what a bound key asks the application to do.
type Action int

const (
	ActionNone Action = iota
	ActionToggleOverlay
	ActionRecalibrate
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionToggleOverlay:
		return "toggle_overlay"
	case ActionRecalibrate:
		return "recalibrate"
	case ActionQuit:
		return "quit"
	default:
		return "none"
	}
}

// Virtual-key codes of the bound keys.
const (
	KeyEscape uint32 = 0x1B
	KeyF2     uint32 = 0x71
	KeyF9     uint32 = 0x78
)

// KeyEvent is a single key transition reported by the platform hook.
type KeyEvent struct {
	Code uint32
	Down bool
}

// Map returns the action bound to a key press. Releases map to ActionNone.
func Map(ev KeyEvent) Action {
	if !ev.Down {
		return ActionNone
	}
	switch ev.Code {
	case KeyF9:
		return ActionToggleOverlay
	case KeyF2:
		return ActionRecalibrate
	case KeyEscape:
		return ActionQuit
	}
	return ActionNone
}

// Watcher forwards bound key presses to Actions. Auto-repeat is folded: a
// held key fires once until it is released.
type Watcher struct {
	logger  *slog.Logger
	actions chan Action
	dropped atomic.Uint64
}

func NewWatcher(logger *slog.Logger) *Watcher {
	return &Watcher{logger: logger, actions: make(chan Action, 8)}
}

// Actions is closed once the watcher stops.
func (w *Watcher) Actions() <-chan Action { return w.actions }

// Dropped counts actions discarded because nobody was reading.
func (w *Watcher) Dropped() uint64 { return w.dropped.Load() }

// Start installs the keyboard hook and watches it until ctx is done. It
// fails on platforms without global hooks.
func (w *Watcher) Start(ctx context.Context) error {
	events, uninstall, err := install(w.logger)
	if err != nil {
		return err
	}
	if w.logger != nil {
		w.logger.Info("hotkey.start", "toggle", "F9", "recalibrate", "F2", "quit", "Esc")
	}
	go func() {
		defer uninstall()
		w.run(ctx, events)
	}()
	return nil
}

func (w *Watcher) run(ctx context.Context, events <-chan KeyEvent) {
	defer close(w.actions)
	held := make(map[uint32]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !ev.Down {
				delete(held, ev.Code)
				continue
			}
			if held[ev.Code] {
				continue
			}
			held[ev.Code] = true
			action := Map(ev)
			if action == ActionNone {
				continue
			}
			select {
			case w.actions <- action:
				if w.logger != nil {
					w.logger.Debug("hotkey.action", "action", action.String())
				}
			default:
				w.dropped.Add(1)
				if w.logger != nil {
					w.logger.Warn("hotkey.dropped", "action", action.String())
				}
			}
		}
	}
}
