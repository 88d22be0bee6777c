package search

import (
	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// Candidate is one feasible placement with its simulated outcome.
type Candidate struct {
	Rotation int
	Column   int
	Row      int
	Lines    int
	Metrics  Metrics
	Score    float64
	Result   tetris.Board
}

// Engine exhaustively evaluates every rotation and column of the active piece
// and picks the placement with the best heuristic score. It holds only
// immutable configuration and is safe for concurrent use.
type Engine struct {
	weights Weights
	catalog *tetris.Catalog
}

// NewEngine returns an engine using the embedded piece catalog.
func NewEngine(w Weights) *Engine {
	return &Engine{weights: w, catalog: tetris.DefaultCatalog()}
}

// NewEngineWithCatalog is NewEngine with an explicit catalog.
func NewEngineWithCatalog(w Weights, cat *tetris.Catalog) *Engine {
	return &Engine{weights: w, catalog: cat}
}

func (e *Engine) Name() string { return "heuristic" }

// Weights returns the engine's coefficients.
func (e *Engine) Weights() Weights { return e.weights }

// Evaluate returns the best placement of piece on b. Candidates are visited
// rotation-major then column ascending, and only a strictly better score
// replaces the current best, so ties keep the earliest candidate. When no
// placement is feasible the result is tetris.NoMove(piece).
func (e *Engine) Evaluate(b tetris.Board, piece tetris.PieceID) tetris.Prediction {
	best := tetris.NoMove(piece)
	found := false
	e.each(&b, piece, func(c Candidate) {
		if !found || c.Score > best.Score {
			found = true
			best = tetris.Prediction{
				Piece:        piece,
				Rotation:     c.Rotation,
				Column:       c.Column,
				Row:          c.Row,
				Score:        c.Score,
				LinesCleared: c.Lines,
			}
		}
	})
	return best
}

// Candidates returns every feasible placement in evaluation order.
func (e *Engine) Candidates(b tetris.Board, piece tetris.PieceID) []Candidate {
	var out []Candidate
	e.each(&b, piece, func(c Candidate) { out = append(out, c) })
	return out
}

// Simulate places rotation/column of piece on b, clears lines and scores the
// result. ok is false when the placement is infeasible.
func (e *Engine) Simulate(b tetris.Board, piece tetris.PieceID, rotation, column int) (Candidate, bool) {
	shape, ok := e.catalog.Shape(piece, rotation)
	if !ok {
		return Candidate{}, false
	}
	return e.simulate(&b, shape, rotation, column)
}

func (e *Engine) each(b *tetris.Board, piece tetris.PieceID, fn func(Candidate)) {
	for rot, shape := range e.catalog.Rotations(piece) {
		for col := 0; col < tetris.Cols; col++ {
			if c, ok := e.simulate(b, shape, rot, col); ok {
				fn(c)
			}
		}
	}
}

func (e *Engine) simulate(b *tetris.Board, shape tetris.Shape, rot, col int) (Candidate, bool) {
	row, ok := DropRow(b, shape, col)
	if !ok {
		return Candidate{}, false
	}
	next := Place(*b, shape, col, row)
	lines := ClearLines(&next)
	m := Analyze(&next)
	return Candidate{
		Rotation: rot,
		Column:   col,
		Row:      row,
		Lines:    lines,
		Metrics:  m,
		Score:    e.weights.Score(lines, m),
		Result:   next,
	}, true
}

// passable reports whether shape can occupy (row, col) while falling: cells
// above the board are free, every other cell must be on the board and empty.
func passable(b *tetris.Board, s tetris.Shape, col, row int) bool {
	for r := 0; r < s.Height(); r++ {
		for c := 0; c < s.Width(); c++ {
			if !s.At(r, c) {
				continue
			}
			y, x := row+r, col+c
			if x < 0 || x >= tetris.Cols || y >= tetris.Rows {
				return false
			}
			if y >= 0 && b[y][x] {
				return false
			}
		}
	}
	return true
}

// fits reports whether every occupied cell of shape at (row, col) lands on an
// in-bounds empty cell.
func fits(b *tetris.Board, s tetris.Shape, col, row int) bool {
	for r := 0; r < s.Height(); r++ {
		for c := 0; c < s.Width(); c++ {
			if !s.At(r, c) {
				continue
			}
			y, x := row+r, col+c
			if !tetris.InBounds(y, x) || b[y][x] {
				return false
			}
		}
	}
	return true
}

// DropRow drops shape straight down in column col, starting fully above the
// board, and returns the row where it comes to rest. ok is false when the
// shape cannot enter the column or comes to rest with any cell off the board.
func DropRow(b *tetris.Board, s tetris.Shape, col int) (int, bool) {
	row := -s.Height()
	if !passable(b, s, col, row) {
		return 0, false
	}
	for row < tetris.Rows-1 && passable(b, s, col, row+1) {
		row++
	}
	if !fits(b, s, col, row) {
		return 0, false
	}
	return row, true
}

// Place returns a copy of b with shape stamped at (row, col). Cells outside
// the board are ignored.
func Place(b tetris.Board, s tetris.Shape, col, row int) tetris.Board {
	for r := 0; r < s.Height(); r++ {
		for c := 0; c < s.Width(); c++ {
			if s.At(r, c) {
				b.Set(row+r, col+c, true)
			}
		}
	}
	return b
}

// ClearLines removes every full row, shifting the rows above down by one and
// emptying the top row, and returns how many rows were removed. Rows are
// scanned bottom-up and the same index is re-checked after each removal.
func ClearLines(b *tetris.Board) int {
	cleared := 0
	for r := tetris.Rows - 1; r >= 0; {
		if !b.RowFull(r) {
			r--
			continue
		}
		for y := r; y > 0; y-- {
			b[y] = b[y-1]
		}
		b[0] = [tetris.Cols]bool{}
		cleared++
	}
	return cleared
}
