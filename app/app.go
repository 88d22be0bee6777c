package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	tk "modernc.org/tk9.0"

	"github.com/soocke/tetris-overlay-go/config"
	"github.com/soocke/tetris-overlay-go/debug"
	"github.com/soocke/tetris-overlay-go/ui/dashboard"
	"github.com/soocke/tetris-overlay-go/ui/presenter"
	"github.com/soocke/tetris-overlay-go/ui/view"
)

const runtimeLogInterval = 5 * time.Second

// ErrCalibrationCancelled is returned by Calibrate when the user closes the
// window without confirming.
var ErrCalibrationCancelled = errors.New("app: calibration cancelled")

// App owns the process lifecycle: it builds the container, runs the assist
// loop and drives either the Tk overlay or the headless renderer.
type App struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
}

func NewApp(cfg *config.Config, cfgPath string, logger *slog.Logger) *App {
	return &App{cfg: cfg, cfgPath: cfgPath, logger: logger}
}

// Run blocks until ctx is cancelled, the overlay is closed or capture is
// lost. The overlay variant must be called from the main goroutine.
func (a *App) Run(ctx context.Context, headless bool) error {
	c, err := BuildContainer(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			a.logger.Error("app.close", "error", cerr)
		}
	}()
	if err := c.Frames.Initialize(); err != nil {
		return fmt.Errorf("app: capture init: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Debug {
		debug.StartRuntimeLogger(ctx, runtimeLogInterval, a.logger, func() []slog.Attr {
			cs, as := c.Frames.Stats(), c.Assist.Stats()
			return []slog.Attr{
				slog.Uint64("captures", cs.Captures),
				slog.Uint64("timeouts", cs.Timeouts),
				slog.Uint64("recoveries", cs.Recoveries),
				slog.Float64("avg_capture_us", cs.AvgCaptureMicros),
				slog.Uint64("evaluated", as.Evaluated),
				slog.Uint64("stuck", as.Stuck),
			}
		})
	}

	keys := a.startHotkeys(ctx, cancel, c)
	if dash := a.startDashboard(c); dash != nil {
		defer func() {
			if err := dash.Shutdown(); err != nil {
				a.logger.Error("dashboard.shutdown", "error", err)
			}
		}()
	}

	a.logger.Info("app.start",
		"config", a.cfgPath,
		"backend", a.cfg.CaptureBackend,
		"evaluator", c.Evaluator.Name(),
		"board", c.Calibration.Geometry(),
		"headless", headless || !a.cfg.Overlay,
	)
	assistErr := make(chan error, 1)
	go func() { assistErr <- c.Assist.Run(ctx) }()

	renderInterval := time.Duration(a.cfg.RenderIntervalMS) * time.Millisecond
	if headless || !a.cfg.Overlay {
		r := presenter.NewLogRenderer(c.Slot, a.logger)
		go func() {
			r.Run(ctx, renderInterval)
		}()
		var err error
		select {
		case <-ctx.Done():
			err = <-assistErr
		case err = <-assistErr:
			cancel()
		}
		a.logger.Info("app.stop", "logged", r.Logged(), "evaluated", c.Assist.Stats().Evaluated)
		return err
	}
	return a.runOverlay(ctx, cancel, c, keys, assistErr, renderInterval)
}

// startDashboard serves the stats dashboard when an address is configured.
func (a *App) startDashboard(c *AppContainer) *dashboard.Server {
	if a.cfg.DashboardAddr == "" {
		return nil
	}
	var store dashboard.StatsReader
	if c.Store != nil {
		store = c.Store
	}
	srv := dashboard.NewServer(a.cfg.DashboardAddr, store, c.Slot.Latest, 0, a.logger)
	srv.StartAsync()
	return srv
}

// runOverlay drives the Tk event loop until the window closes or the assist
// loop ends. keys may be nil when hotkeys are off.
func (a *App) runOverlay(ctx context.Context, cancel context.CancelFunc, c *AppContainer, keys *hotkeyHandler, assistErr <-chan error, interval time.Duration) error {
	var (
		result   error
		finished bool
		afterID  string
	)
	stop := func() {
		if afterID != "" {
			tk.TclAfterCancel(afterID)
			afterID = ""
		}
		tk.Destroy(tk.App)
	}
	overlay := view.NewGhostOverlay(c.Calibration, a.logger, stop)
	pres := presenter.NewOverlayPresenter(c.Slot, overlay, c.Catalog, image.Pt(c.Calibration.W, c.Calibration.H), a.logger)

	var loop *presenter.Loop
	loop = presenter.NewLoop(pres,
		func() bool {
			if ctx.Err() != nil {
				return true
			}
			select {
			case result = <-assistErr:
				finished = true
				return true
			default:
				return false
			}
		},
		stop,
		func() { afterID = tk.TclAfter(interval, loop.Tick) },
	)
	if keys != nil {
		loop.Hidden = keys.Hidden
		loop.Show = overlay.SetVisible
		loop.Sync = func() {
			if cal, ok := keys.TakeCalibration(); ok {
				overlay.Move(cal)
				pres.Size = image.Pt(cal.W, cal.H)
			}
		}
	}
	afterID = tk.TclAfter(interval, loop.Tick)
	tk.App.Wait()

	cancel()
	if !finished {
		result = <-assistErr
	}
	a.logger.Info("app.stop", "rendered", pres.Rendered(), "evaluated", c.Assist.Stats().Evaluated)
	return result
}

// Calibrate opens the calibration overlay and blocks until the user confirms
// or cancels. Must be called from the main goroutine.
func (a *App) Calibrate() error {
	initial, err := config.LoadCalibration(a.cfg.CalibrationPath)
	if err != nil {
		a.logger.Info("calibration.none", "path", a.cfg.CalibrationPath, "error", err)
	}
	saved := false
	overlay := view.NewCalibrationOverlay(a.cfg.CalibrationPath, initial, a.logger, func(_ config.Calibration, ok bool) {
		saved = ok
		tk.Destroy(tk.App)
	})
	overlay.Open()
	tk.App.Wait()
	if !saved {
		return ErrCalibrationCancelled
	}
	return nil
}
