package presenter

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/soocke/tetris-overlay-go/domain/tetris"
	"github.com/soocke/tetris-overlay-go/ui/images"
)

// PredictionSource yields the newest unseen prediction, if any.
type PredictionSource interface {
	Take() (tetris.Prediction, bool)
}

// OverlayView describes the UI surface updated by the presenter.
type OverlayView interface {
	ShowGhost(img image.Image)
	SetStatus(text string, stuck bool)
}

// OverlayPresenter moves predictions from the assist loop onto the overlay.
// Tick runs on the Tk thread.
type OverlayPresenter struct {
	Source  PredictionSource
	View    OverlayView
	Catalog *tetris.Catalog
	Size    image.Point
	logger  *slog.Logger

	last     tetris.Prediction
	hasLast  bool
	rendered uint64
}

// NewOverlayPresenter constructs an overlay presenter drawing at size.
func NewOverlayPresenter(source PredictionSource, view OverlayView, cat *tetris.Catalog, size image.Point, logger *slog.Logger) *OverlayPresenter {
	if cat == nil {
		cat = tetris.DefaultCatalog()
	}
	return &OverlayPresenter{Source: source, View: view, Catalog: cat, Size: size, logger: logger}
}

// Tick redraws when a different prediction is available.
func (p *OverlayPresenter) Tick() {
	if p == nil || p.Source == nil || p.View == nil {
		return
	}
	pred, ok := p.Source.Take()
	if !ok {
		return
	}
	if p.hasLast && pred == p.last {
		return
	}
	p.last, p.hasLast = pred, true
	p.View.ShowGhost(images.RenderGhost(pred, p.Catalog, p.Size))
	p.View.SetStatus(StatusText(pred), pred.IsNoMove())
	p.rendered++
	if p.logger != nil {
		p.logger.Debug("overlay.render", "prediction", pred.String(), "rendered", p.rendered)
	}
}

// Rendered reports how many distinct predictions were drawn.
func (p *OverlayPresenter) Rendered() uint64 { return p.rendered }

// StatusText is the one-line summary shown under the ghost.
func StatusText(pred tetris.Prediction) string {
	if pred.IsNoMove() {
		return fmt.Sprintf("%s  stuck", pred.Piece)
	}
	s := fmt.Sprintf("%s  rot %d  col %d  score %.2f", pred.Piece, pred.Rotation, pred.Column, pred.Score)
	if pred.LinesCleared > 0 {
		s += fmt.Sprintf("  +%d", pred.LinesCleared)
	}
	return s
}
