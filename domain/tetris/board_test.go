package tetris

import "testing"

func TestParseBoard_BottomAligned(t *testing.T) {
	b, err := ParseBoard(
		"#.........",
		"##########",
	)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !b.Occupied(18, 0) || b.Occupied(18, 1) {
		t.Fatalf("row 18 not decoded:\n%s", b)
	}
	if !b.RowFull(19) {
		t.Fatalf("expected row 19 full")
	}
	if got := b.Count(); got != 11 {
		t.Fatalf("expected 11 cells, got %d", got)
	}
}

func TestParseBoard_RejectsBadWidth(t *testing.T) {
	if _, err := ParseBoard("###"); err == nil {
		t.Fatalf("expected width error")
	}
}

func TestBoard_Heights(t *testing.T) {
	b, _ := ParseBoard(
		"..#.......",
		".....#....",
		"#.#..#....",
	)
	h := b.Heights()
	want := [Cols]int{1, 0, 3, 0, 0, 2, 0, 0, 0, 0}
	if h != want {
		t.Fatalf("heights %v, want %v", h, want)
	}
}

func TestBoard_MaskRoundTrip(t *testing.T) {
	var b Board
	b.Set(0, 0, true)
	b.Set(19, 9, true)
	b.Set(7, 3, true)
	mask := b.Mask()
	if len(mask) != MaskSize {
		t.Fatalf("mask length %d", len(mask))
	}
	if mask[0] != 255 || mask[MaskSize-1] != 255 || mask[7*Cols+3] != 255 || mask[1] != 0 {
		t.Fatalf("unexpected mask encoding")
	}
	back, err := BoardFromMask(mask)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back != b {
		t.Fatalf("round trip mismatch:\n%s\nvs\n%s", back, b)
	}
	if _, err := BoardFromMask(mask[:10]); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestBoard_ValueCopy(t *testing.T) {
	var a Board
	b := a
	b.Set(5, 5, true)
	if a.Occupied(5, 5) {
		t.Fatalf("copy aliased original board")
	}
}

func TestBoard_OutOfRangeAccess(t *testing.T) {
	var b Board
	b.Set(-1, 0, true)
	b.Set(0, Cols, true)
	if b.Count() != 0 {
		t.Fatalf("out-of-range write landed on the board")
	}
	if b.Occupied(Rows, 0) {
		t.Fatalf("out-of-range read should be empty")
	}
}
