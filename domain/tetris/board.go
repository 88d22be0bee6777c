package tetris

import (
	"fmt"
	"strings"
)

// Board dimensions. Row 0 is the top of the playfield.
const (
	Rows = 20
	Cols = 10
)

// MaskSize is the length of the row-major cell mask exchanged with callers
// outside the engine.
const MaskSize = Rows * Cols

// Board is the occupancy grid of the playfield. It is a value type: assigning
// or passing a Board copies every cell, so simulations never touch the
// caller's grid.
type Board [Rows][Cols]bool

// InBounds reports whether (row, col) addresses a cell of the board.
func InBounds(row, col int) bool {
	return row >= 0 && row < Rows && col >= 0 && col < Cols
}

// Occupied reports whether the cell is filled. Out-of-range cells read as empty.
func (b *Board) Occupied(row, col int) bool {
	if !InBounds(row, col) {
		return false
	}
	return b[row][col]
}

// Set fills or clears a cell. Out-of-range writes are ignored.
func (b *Board) Set(row, col int, filled bool) {
	if !InBounds(row, col) {
		return
	}
	b[row][col] = filled
}

// Count returns the number of occupied cells.
func (b *Board) Count() int {
	n := 0
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			if b[r][c] {
				n++
			}
		}
	}
	return n
}

// RowFull reports whether every cell in the row is occupied.
func (b *Board) RowFull(row int) bool {
	for c := 0; c < Cols; c++ {
		if !b[row][c] {
			return false
		}
	}
	return true
}

// Heights returns, per column, 20 minus the topmost occupied row, or 0 for an
// empty column.
func (b *Board) Heights() [Cols]int {
	var h [Cols]int
	for c := 0; c < Cols; c++ {
		for r := 0; r < Rows; r++ {
			if b[r][c] {
				h[c] = Rows - r
				break
			}
		}
	}
	return h
}

// Mask encodes the board as MaskSize bytes, row-major, 255 for occupied and 0
// for empty.
func (b *Board) Mask() []byte {
	out := make([]byte, MaskSize)
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			if b[r][c] {
				out[r*Cols+c] = 255
			}
		}
	}
	return out
}

// BoardFromMask decodes a row-major cell mask. Any non-zero byte is occupied.
func BoardFromMask(mask []byte) (Board, error) {
	var b Board
	if len(mask) != MaskSize {
		return b, fmt.Errorf("tetris: mask length %d, want %d", len(mask), MaskSize)
	}
	for i, v := range mask {
		if v != 0 {
			b[i/Cols][i%Cols] = true
		}
	}
	return b, nil
}

// ParseBoard builds a board from text rows where '#' or 'X' marks an occupied
// cell. Rows are aligned to the bottom of the board; missing rows are empty.
func ParseBoard(rows ...string) (Board, error) {
	var b Board
	if len(rows) > Rows {
		return b, fmt.Errorf("tetris: %d rows, max %d", len(rows), Rows)
	}
	offset := Rows - len(rows)
	for i, line := range rows {
		if len(line) != Cols {
			return b, fmt.Errorf("tetris: row %d has %d cells, want %d", i, len(line), Cols)
		}
		for c, ch := range line {
			switch ch {
			case '#', 'X':
				b[offset+i][c] = true
			case '.', ' ':
			default:
				return b, fmt.Errorf("tetris: row %d: unexpected %q", i, ch)
			}
		}
	}
	return b, nil
}

// String renders the board using '#' and '.', one line per row.
func (b Board) String() string {
	var sb strings.Builder
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			if b[r][c] {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		if r < Rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
