package view

import (
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"time"

	"github.com/soocke/tetris-overlay-go/config"
	"github.com/soocke/tetris-overlay-go/ui/images"
	"github.com/soocke/tetris-overlay-go/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const (
	overlayTitle      = "Tetris Overlay"
	clickThroughDelay = 200 * time.Millisecond
)

// GhostOverlay turns the root window into a topmost click-through layer placed
// over the calibrated board. Key-coloured pixels are transparent on Windows;
// other platforms fall back to a translucent window.
type GhostOverlay struct {
	logger    *slog.Logger
	ghost     *LabelWidget
	status    *TLabelWidget
	prevPhoto *Img // disposed before each replacement
	stuck     bool
}

// NewGhostOverlay builds the overlay layout. onClose runs on Escape or when
// the window manager closes the window. The window never takes focus, so the
// Escape binding only helps on platforms without global hotkeys.
func NewGhostOverlay(cal config.Calibration, logger *slog.Logger, onClose func()) *GhostOverlay {
	theme.InitStyles()
	App.WmTitle(overlayTitle)
	App.Configure(Background(theme.ColorKey))
	WmAttributes(App, "-topmost", 1)
	if runtime.GOOS == "windows" {
		WmAttributes(App, "-toolwindow", true)
		WmAttributes(App, "-transparentcolor", theme.ColorKey)
	} else {
		WmAttributes(App, "-alpha", visibleAlpha())
	}
	WmProtocol(App, "WM_DELETE_WINDOW", onClose)
	Bind(App, "<Escape>", Command(onClose))

	photo := NewPhoto(Data(images.EncodePNG(images.Blank(image.Pt(cal.W, cal.H)))))
	ghost := Label(Image(photo), Borderwidth(0), Background(theme.ColorKey))
	Grid(ghost, Row(0), Column(0), Sticky("nw"))
	status := TLabel(Txt("waiting for board"), Style(theme.StyleStatusLabel))
	Grid(status, Row(1), Column(0), Sticky("we"))

	// Only the position is forced; the size follows the ghost image.
	WmGeometry(App, fmt.Sprintf("+%d+%d", cal.X, cal.Y))
	// the native window only exists once Tk has mapped it
	TclAfter(clickThroughDelay, func() {
		if err := makeClickThrough(overlayTitle); err != nil && logger != nil {
			logger.Warn("overlay.clickthrough", "error", err)
		}
	})
	if logger != nil {
		logger.Info("overlay.open", "rect", cal.Geometry(), "os", runtime.GOOS)
	}
	return &GhostOverlay{logger: logger, ghost: ghost, status: status, prevPhoto: photo}
}

// SetVisible fades the whole window out or back in. The window stays mapped
// so its click-through style survives.
func (v *GhostOverlay) SetVisible(visible bool) {
	alpha := 0.0
	if visible {
		alpha = visibleAlpha()
	}
	WmAttributes(App, "-alpha", alpha)
	if v != nil && v.logger != nil {
		v.logger.Info("overlay.visible", "visible", visible)
	}
}

// Move places the window over a new board rectangle.
func (v *GhostOverlay) Move(cal config.Calibration) {
	WmGeometry(App, fmt.Sprintf("+%d+%d", cal.X, cal.Y))
	if v != nil && v.logger != nil {
		v.logger.Info("overlay.move", "rect", cal.Geometry())
	}
}

func visibleAlpha() float64 {
	if runtime.GOOS == "windows" {
		return 1.0
	}
	return 0.6
}

// ShowGhost replaces the ghost image.
func (v *GhostOverlay) ShowGhost(img image.Image) {
	if v == nil || v.ghost == nil || img == nil {
		return
	}
	if v.prevPhoto != nil {
		v.prevPhoto.Delete()
	}
	v.prevPhoto = NewPhoto(Data(images.EncodePNG(img)))
	v.ghost.Configure(Image(v.prevPhoto))
}

// SetStatus updates the status line and switches its style when stuck
// changes.
func (v *GhostOverlay) SetStatus(text string, stuck bool) {
	if v == nil || v.status == nil {
		return
	}
	if stuck != v.stuck {
		style := theme.StyleStatusLabel
		if stuck {
			style = theme.StyleStuckLabel
		}
		v.status.Configure(Style(style))
		v.stuck = stuck
	}
	v.status.Configure(Txt(text))
}
