package search

import (
	"fmt"

	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// Weights are the heuristic coefficients. Lines rewards cleared rows; the
// remaining terms penalise the resulting surface.
type Weights struct {
	Lines     float64 `json:"lines" mapstructure:"lines"`
	Height    float64 `json:"height" mapstructure:"height"`
	Holes     float64 `json:"holes" mapstructure:"holes"`
	Bumpiness float64 `json:"bumpiness" mapstructure:"bumpiness"`
}

// DefaultWeights returns the tuned coefficients of the reference agent.
func DefaultWeights() Weights {
	return Weights{
		Lines:     0.760666,
		Height:    -0.510066,
		Holes:     -0.35663,
		Bumpiness: -0.184483,
	}
}

// Validate checks the sign constraints: lines strictly positive, penalties
// strictly negative.
func (w Weights) Validate() error {
	if w.Lines <= 0 {
		return fmt.Errorf("search: lines weight %v must be > 0", w.Lines)
	}
	if w.Height >= 0 || w.Holes >= 0 || w.Bumpiness >= 0 {
		return fmt.Errorf("search: height/holes/bumpiness weights must be < 0 (got %v/%v/%v)", w.Height, w.Holes, w.Bumpiness)
	}
	return nil
}

// Metrics are the surface features of a board after placement and clearing.
type Metrics struct {
	AggregateHeight int
	Holes           int
	Bumpiness       int
}

// Analyze computes the surface features of b.
func Analyze(b *tetris.Board) Metrics {
	heights := b.Heights()
	var m Metrics
	for c := 0; c < tetris.Cols; c++ {
		m.AggregateHeight += heights[c]
		if c > 0 {
			d := heights[c] - heights[c-1]
			if d < 0 {
				d = -d
			}
			m.Bumpiness += d
		}
		seen := false
		for r := 0; r < tetris.Rows; r++ {
			if b[r][c] {
				seen = true
			} else if seen {
				m.Holes++
			}
		}
	}
	return m
}

// Score combines cleared lines and surface metrics.
func (w Weights) Score(lines int, m Metrics) float64 {
	return w.Lines*float64(lines) +
		w.Height*float64(m.AggregateHeight) +
		w.Holes*float64(m.Holes) +
		w.Bumpiness*float64(m.Bumpiness)
}
