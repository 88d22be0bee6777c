package presenter

import (
	"context"
	"log/slog"
	"time"

	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// LogRenderer is the headless replacement for the overlay: it logs every
// distinct prediction instead of drawing it.
type LogRenderer struct {
	Source PredictionSource
	logger *slog.Logger

	last    tetris.Prediction
	hasLast bool
	logged  uint64
}

// NewLogRenderer returns a renderer writing to logger.
func NewLogRenderer(source PredictionSource, logger *slog.Logger) *LogRenderer {
	return &LogRenderer{Source: source, logger: logger}
}

// Run polls the source every interval until ctx is done.
func (r *LogRenderer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Tick()
		}
	}
}

// Tick logs the pending prediction if it differs from the last one.
func (r *LogRenderer) Tick() {
	if r == nil || r.Source == nil || r.logger == nil {
		return
	}
	pred, ok := r.Source.Take()
	if !ok || (r.hasLast && pred == r.last) {
		return
	}
	r.last, r.hasLast = pred, true
	r.logged++
	if pred.IsNoMove() {
		r.logger.Warn("prediction", "piece", pred.Piece.String(), "stuck", true)
		return
	}
	r.logger.Info("prediction",
		"piece", pred.Piece.String(),
		"rotation", pred.Rotation,
		"column", pred.Column,
		"row", pred.Row,
		"lines", pred.LinesCleared,
		"score", pred.Score,
	)
}

// Logged reports how many predictions were written.
func (r *LogRenderer) Logged() uint64 { return r.logged }
