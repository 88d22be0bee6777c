package app

import (
	"sync/atomic"

	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// PredictionSlot hands the newest prediction from the decision goroutine to
// the renderer. It holds at most one undelivered value; publishing replaces
// whatever the renderer has not picked up yet.
type PredictionSlot struct {
	ch     chan tetris.Prediction
	latest atomic.Pointer[tetris.Prediction]
}

// NewPredictionSlot returns an empty slot.
func NewPredictionSlot() *PredictionSlot {
	return &PredictionSlot{ch: make(chan tetris.Prediction, 1)}
}

// Publish stores p, dropping an undelivered older value. It must be called
// from a single goroutine.
func (s *PredictionSlot) Publish(p tetris.Prediction) {
	s.latest.Store(&p)
	select {
	case s.ch <- p:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- p:
		default:
		}
	}
}

// Take returns the undelivered prediction, if any, without blocking.
func (s *PredictionSlot) Take() (tetris.Prediction, bool) {
	select {
	case p := <-s.ch:
		return p, true
	default:
		return tetris.Prediction{}, false
	}
}

// C exposes the delivery channel for select loops.
func (s *PredictionSlot) C() <-chan tetris.Prediction { return s.ch }

// Latest returns the most recently published prediction, delivered or not.
func (s *PredictionSlot) Latest() (tetris.Prediction, bool) {
	p := s.latest.Load()
	if p == nil {
		return tetris.Prediction{}, false
	}
	return *p, true
}
