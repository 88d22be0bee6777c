package app

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"

	"github.com/soocke/tetris-overlay-go/config"
	"github.com/soocke/tetris-overlay-go/ui/hotkey"
)

// hotkeyHandler applies hotkey actions. Quit and recalibration are handled on
// the hotkey goroutine; overlay state is published through atomics for the
// Tk thread to pick up.
type hotkeyHandler struct {
	logger *slog.Logger
	quit   func()
	// calibrate runs the calibration UI and returns once it is closed.
	calibrate func(ctx context.Context) error
	load      func() (config.Calibration, error)
	apply     func(config.Calibration)

	hidden       atomic.Bool
	calibrating  atomic.Bool
	pending      atomic.Pointer[config.Calibration]
	recalibrated chan struct{} // signalled after each finished recalibration, may be nil
}

func (h *hotkeyHandler) run(ctx context.Context, actions <-chan hotkey.Action) {
	for a := range actions {
		h.handle(ctx, a)
	}
}

func (h *hotkeyHandler) handle(ctx context.Context, a hotkey.Action) {
	switch a {
	case hotkey.ActionQuit:
		// Esc belongs to the calibration window while it is open.
		if h.calibrating.Load() {
			return
		}
		h.logger.Info("hotkey.quit")
		h.quit()
	case hotkey.ActionToggleOverlay:
		hidden := !h.hidden.Load()
		h.hidden.Store(hidden)
		h.logger.Info("hotkey.toggle_overlay", "visible", !hidden)
	case hotkey.ActionRecalibrate:
		if !h.calibrating.CompareAndSwap(false, true) {
			return
		}
		go func() {
			defer h.calibrating.Store(false)
			h.recalibrate(ctx)
		}()
	}
}

func (h *hotkeyHandler) recalibrate(ctx context.Context) {
	defer func() {
		if h.recalibrated != nil {
			h.recalibrated <- struct{}{}
		}
	}()
	h.logger.Info("hotkey.recalibrate")
	if err := h.calibrate(ctx); err != nil {
		h.logger.Warn("hotkey.recalibrate", "error", err)
		return
	}
	cal, err := h.load()
	if err != nil {
		h.logger.Warn("hotkey.recalibrate", "error", err)
		return
	}
	h.apply(cal)
	h.pending.Store(&cal)
	h.logger.Info("calibration.applied", "rect", cal.Geometry())
}

// Hidden reports whether the overlay should be hidden.
func (h *hotkeyHandler) Hidden() bool { return h.hidden.Load() }

// TakeCalibration returns a calibration applied since the last call.
func (h *hotkeyHandler) TakeCalibration() (config.Calibration, bool) {
	p := h.pending.Swap(nil)
	if p == nil {
		return config.Calibration{}, false
	}
	return *p, true
}

// calibrationCommand re-runs this binary in calibration mode. Tk owns the
// main thread of this process, so the calibration window needs its own.
func (a *App) calibrationCommand(ctx context.Context) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, exe, "-calibrate", "-config", a.cfgPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// startHotkeys installs the global hotkeys when enabled. It returns nil when
// hotkeys are disabled or unavailable on this platform.
func (a *App) startHotkeys(ctx context.Context, cancel context.CancelFunc, c *AppContainer) *hotkeyHandler {
	if !a.cfg.Hotkeys {
		return nil
	}
	w := hotkey.NewWatcher(a.logger)
	if err := w.Start(ctx); err != nil {
		a.logger.Warn("hotkey.unavailable", "error", err)
		return nil
	}
	h := &hotkeyHandler{
		logger:    a.logger,
		quit:      cancel,
		calibrate: a.calibrationCommand,
		load:      func() (config.Calibration, error) { return config.LoadCalibration(a.cfg.CalibrationPath) },
		apply:     c.Recalibrate,
	}
	go h.run(ctx, w.Actions())
	return h
}
