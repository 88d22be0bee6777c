package search

import "github.com/soocke/tetris-overlay-go/domain/tetris"

// Evaluator chooses a placement for the active piece. Implementations must
// not mutate their inputs and must be safe to call from any goroutine.
type Evaluator interface {
	Evaluate(b tetris.Board, piece tetris.PieceID) tetris.Prediction
	Name() string
}

var _ Evaluator = (*Engine)(nil)
