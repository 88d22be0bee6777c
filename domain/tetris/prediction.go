package tetris

import (
	"fmt"
	"math"
)

// NoMoveScore is the score carried by a prediction when no legal placement
// exists. It is the minimum representable score.
const NoMoveScore = -math.MaxFloat64

// Prediction is the chosen placement for the active piece.
type Prediction struct {
	Piece        PieceID
	Rotation     int
	Column       int
	Row          int // landing row of the shape's top edge
	Score        float64
	LinesCleared int
}

// NoMove returns the sentinel prediction for piece.
func NoMove(piece PieceID) Prediction {
	return Prediction{Piece: piece, Score: NoMoveScore}
}

// IsNoMove reports whether p is the no-legal-placement sentinel.
func (p Prediction) IsNoMove() bool { return p.Score == NoMoveScore }

func (p Prediction) String() string {
	if p.IsNoMove() {
		return fmt.Sprintf("%s: no legal placement", p.Piece)
	}
	return fmt.Sprintf("%s rot=%d col=%d row=%d score=%.4f lines=%d",
		p.Piece, p.Rotation, p.Column, p.Row, p.Score, p.LinesCleared)
}
