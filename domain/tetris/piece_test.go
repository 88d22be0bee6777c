package tetris

import (
	"image/color"
	"testing"
)

func TestDefaultCatalog_RotationCounts(t *testing.T) {
	cat := DefaultCatalog()
	want := map[PieceID]int{PieceI: 2, PieceO: 1, PieceT: 4, PieceS: 2, PieceZ: 2, PieceJ: 4, PieceL: 4}
	for id, n := range want {
		if got := len(cat.Rotations(id)); got != n {
			t.Fatalf("%s: %d rotations, want %d", id, got, n)
		}
	}
}

func TestDefaultCatalog_FourCellsPerShape(t *testing.T) {
	cat := DefaultCatalog()
	for _, id := range AllPieces {
		for ri, s := range cat.Rotations(id) {
			n := 0
			for r := 0; r < s.Height(); r++ {
				for c := 0; c < s.Width(); c++ {
					if s.At(r, c) {
						n++
					}
				}
			}
			if n != 4 {
				t.Fatalf("%s rotation %d has %d cells", id, ri, n)
			}
		}
	}
}

func TestDefaultCatalog_Shapes(t *testing.T) {
	cat := DefaultCatalog()
	i0, _ := cat.Shape(PieceI, 0)
	if i0.Height() != 1 || i0.Width() != 4 {
		t.Fatalf("I rotation 0 is %dx%d", i0.Height(), i0.Width())
	}
	i1, _ := cat.Shape(PieceI, 1)
	if i1.Height() != 4 || i1.Width() != 1 {
		t.Fatalf("I rotation 1 is %dx%d", i1.Height(), i1.Width())
	}
	t0, _ := cat.Shape(PieceT, 0)
	if t0.At(0, 0) || !t0.At(0, 1) || !t0.At(1, 0) || !t0.At(1, 2) {
		t.Fatalf("T rotation 0 layout wrong")
	}
	if _, ok := cat.Shape(PieceO, 1); ok {
		t.Fatalf("O has a single rotation")
	}
	if got := cat.Piece(PieceI).Color; got != (color.RGBA{R: 0, G: 240, B: 240, A: 255}) {
		t.Fatalf("I colour %v", got)
	}
}

func TestParsePiece(t *testing.T) {
	tests := []struct {
		in   string
		want PieceID
		ok   bool
	}{
		{"I", PieceI, true},
		{"t", PieceT, true},
		{" L ", PieceL, true},
		{"Q", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		got, err := ParsePiece(tc.in)
		if (err == nil) != tc.ok || (tc.ok && got != tc.want) {
			t.Fatalf("ParsePiece(%q) = %v, %v", tc.in, got, err)
		}
	}
}

func TestParseCatalog_MissingPiece(t *testing.T) {
	data := []byte(`pieces:
  - id: O
    color: "#f0f000"
    rotations:
      - ["11", "11"]
`)
	if _, err := ParseCatalog(data); err == nil {
		t.Fatalf("expected missing piece error")
	}
}

func TestPrediction_NoMove(t *testing.T) {
	p := NoMove(PieceT)
	if !p.IsNoMove() {
		t.Fatalf("sentinel not detected")
	}
	if (Prediction{Piece: PieceT, Score: -3.2}).IsNoMove() {
		t.Fatalf("regular prediction flagged as sentinel")
	}
}
