package view

import (
	"log/slog"
	"runtime"

	"github.com/soocke/tetris-overlay-go/config"
	"github.com/soocke/tetris-overlay-go/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders
	. "modernc.org/tk9.0"
)

// defaultCalibration centres a 300x600 frame on a 1920x1080 screen when no
// previous calibration exists.
var defaultCalibration = config.Calibration{X: 810, Y: 240, W: 300, H: 600}

// CalibrationOverlay shows a resizable see-through frame that the user drags
// over the board. Confirm persists the frame geometry as the calibration.
type CalibrationOverlay struct {
	logger  *slog.Logger
	path    string
	initial config.Calibration
	onDone  func(cal config.Calibration, ok bool)
	win     *ToplevelWidget
	status  *TLabelWidget
}

// NewCalibrationOverlay creates the overlay manager. initial may be the zero
// value. onDone runs once, after the window is gone.
func NewCalibrationOverlay(path string, initial config.Calibration, logger *slog.Logger, onDone func(cal config.Calibration, ok bool)) *CalibrationOverlay {
	if initial.Validate() != nil {
		initial = defaultCalibration
	}
	return &CalibrationOverlay{logger: logger, path: path, initial: initial, onDone: onDone}
}

// Open builds the frame window and the controls in the root window.
func (v *CalibrationOverlay) Open() {
	if v.win != nil {
		return
	}
	theme.InitStyles()
	App.WmTitle("Calibrate board")
	WmAttributes(App, "-topmost", 1)
	WmProtocol(App, "WM_DELETE_WINDOW", v.cancel)

	hint := TLabel(Txt("Drag and resize the frame to cover the 10x20 board."))
	Grid(hint, Row(0), Column(0), Columnspan(2), Sticky("we"), Padx("1m"), Pady("1m"))
	confirm := TButton(Txt("Confirm [Enter]"), Style(theme.StylePrimaryButton), Command(v.confirm))
	Grid(confirm, Row(1), Column(0), Sticky("we"), Padx("0.4m"), Pady("0.4m"))
	cancel := TButton(Txt("Cancel [Esc]"), Style(theme.StyleDangerButton), Command(v.cancel))
	Grid(cancel, Row(1), Column(1), Sticky("we"), Padx("0.4m"), Pady("0.4m"))
	v.status = TLabel(Txt(v.path), Style(theme.StyleStatusLabel))
	Grid(v.status, Row(2), Column(0), Columnspan(2), Sticky("we"))

	win := App.Toplevel(Borderwidth(0), Background(theme.ColorKey))
	win.WmTitle("Board")
	v.win = win
	WmGeometry(win.Window, v.initial.Geometry())
	WmAttributes(win.Window, "-topmost", 1)
	if runtime.GOOS == "windows" {
		WmAttributes(win.Window, "-toolwindow", true)
		WmAttributes(win.Window, "-transparentcolor", theme.ColorKey)
	} else {
		WmAttributes(win.Window, "-alpha", 0.5)
	}
	GridRowConfigure(win.Window, 1, Weight(1))
	GridColumnConfigure(win.Window, 1, Weight(1))
	edge := func(row, col int, sticky string) {
		f := win.Frame(Width(3), Height(3), Background(theme.ColorFrame))
		Grid(f, Row(row), Column(col), Sticky(sticky))
	}
	edge(0, 0, "nsew")
	edge(0, 1, "we")
	edge(0, 2, "nsew")
	edge(1, 0, "ns")
	center := win.Frame(Background(theme.ColorKey))
	Grid(center, Row(1), Column(1), Sticky("nsew"))
	edge(1, 2, "ns")
	edge(2, 0, "nsew")
	edge(2, 1, "we")
	edge(2, 2, "nsew")

	for _, w := range []*Window{App, win.Window} {
		Bind(w, "<Return>", Command(v.confirm))
		Bind(w, "<Escape>", Command(v.cancel))
	}
}

func (v *CalibrationOverlay) confirm() {
	if v.win == nil {
		return
	}
	geom := WmGeometry(v.win.Window)
	cal, err := config.ParseGeometry(geom)
	if err == nil {
		err = config.SaveCalibration(v.path, cal)
	}
	if err != nil {
		if v.logger != nil {
			v.logger.Warn("calibration.invalid", "geometry", geom, "error", err)
		}
		v.status.Configure(Txt(err.Error()), Style(theme.StyleStuckLabel))
		return
	}
	if v.logger != nil {
		v.logger.Info("calibration.saved", "path", v.path, "x", cal.X, "y", cal.Y, "w", cal.W, "h", cal.H)
	}
	v.finish(cal, true)
}

func (v *CalibrationOverlay) cancel() { v.finish(config.Calibration{}, false) }

func (v *CalibrationOverlay) finish(cal config.Calibration, ok bool) {
	if v.win != nil {
		Destroy(v.win)
		v.win = nil
	}
	if v.onDone != nil {
		done := v.onDone
		v.onDone = nil
		done(cal, ok)
	}
}
