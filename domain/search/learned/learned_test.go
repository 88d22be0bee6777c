package learned

import (
	"testing"

	"github.com/soocke/tetris-overlay-go/domain/search"
	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

func TestChoose_PicksHighestLegalLogit(t *testing.T) {
	engine := search.NewEngine(search.DefaultWeights())
	var b tetris.Board
	logits := make([]float32, MaxRotations*tetris.Cols)
	// column 9 of horizontal I is illegal; it must be ignored despite the top logit
	logits[0*tetris.Cols+9] = 10
	logits[1*tetris.Cols+4] = 5
	p := Choose(engine, b, tetris.PieceI, logits)
	if p.Rotation != 1 || p.Column != 4 {
		t.Fatalf("expected rot=1 col=4, got %v", p)
	}
	want, _ := engine.Simulate(b, tetris.PieceI, 1, 4)
	if p.Score != want.Score || p.Row != want.Row {
		t.Fatalf("score/row %v/%d, want %v/%d", p.Score, p.Row, want.Score, want.Row)
	}
}

func TestChoose_NoLegalPlacement(t *testing.T) {
	engine := search.NewEngine(search.DefaultWeights())
	var b tetris.Board
	for r := 0; r < tetris.Rows; r++ {
		for c := 0; c < tetris.Cols; c++ {
			b[r][c] = true
		}
	}
	p := Choose(engine, b, tetris.PieceO, make([]float32, MaxRotations*tetris.Cols))
	if !p.IsNoMove() {
		t.Fatalf("expected sentinel, got %v", p)
	}
}

func TestNew_MissingModel(t *testing.T) {
	if _, err := New(t.TempDir()+"/missing.onnx", search.NewEngine(search.DefaultWeights()), nil); err == nil {
		t.Fatalf("expected error for missing model")
	}
}
