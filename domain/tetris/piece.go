package tetris

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/soocke/tetris-overlay-go/assets"
)

// PieceID identifies one of the seven tetrominoes.
type PieceID uint8

const (
	PieceI PieceID = iota
	PieceO
	PieceT
	PieceS
	PieceZ
	PieceJ
	PieceL
)

// AllPieces lists the pieces in catalog order.
var AllPieces = []PieceID{PieceI, PieceO, PieceT, PieceS, PieceZ, PieceJ, PieceL}

var pieceNames = [...]string{"I", "O", "T", "S", "Z", "J", "L"}

func (p PieceID) String() string {
	if int(p) < len(pieceNames) {
		return pieceNames[p]
	}
	return "PieceID(" + strconv.Itoa(int(p)) + ")"
}

// Valid reports whether p is one of the seven pieces.
func (p PieceID) Valid() bool { return int(p) < len(pieceNames) }

// ParsePiece maps a single-letter name (case-insensitive) to a PieceID.
func ParsePiece(s string) (PieceID, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range pieceNames {
		if n == name {
			return PieceID(i), nil
		}
	}
	return 0, fmt.Errorf("tetris: unknown piece %q", s)
}

// Shape is one rotation state of a piece: an immutable occupancy grid. Row 0
// is the top of the bounding box.
type Shape struct {
	rows, cols int
	cells      []bool
}

// NewShape builds a shape from rows of equal width.
func NewShape(grid [][]bool) (Shape, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return Shape{}, fmt.Errorf("tetris: empty shape")
	}
	s := Shape{rows: len(grid), cols: len(grid[0])}
	s.cells = make([]bool, 0, s.rows*s.cols)
	filled := 0
	for i, row := range grid {
		if len(row) != s.cols {
			return Shape{}, fmt.Errorf("tetris: shape row %d has width %d, want %d", i, len(row), s.cols)
		}
		for _, v := range row {
			if v {
				filled++
			}
		}
		s.cells = append(s.cells, row...)
	}
	if filled == 0 {
		return Shape{}, fmt.Errorf("tetris: shape has no filled cells")
	}
	return s, nil
}

// Height returns the number of rows in the bounding box.
func (s Shape) Height() int { return s.rows }

// Width returns the number of columns in the bounding box.
func (s Shape) Width() int { return s.cols }

// At reports whether the shape occupies (r, c) of its bounding box.
func (s Shape) At(r, c int) bool {
	if r < 0 || r >= s.rows || c < 0 || c >= s.cols {
		return false
	}
	return s.cells[r*s.cols+c]
}

// Piece holds the rotation states and display colour of one tetromino.
type Piece struct {
	ID        PieceID
	Color     color.RGBA
	Rotations []Shape
}

// Catalog is the fixed, read-only set of pieces.
type Catalog struct {
	pieces [len(pieceNames)]Piece
}

// Piece returns the entry for id. It panics on an invalid id, which can only
// come from a programming error since ParsePiece rejects unknown names.
func (c *Catalog) Piece(id PieceID) Piece { return c.pieces[id] }

// Rotations returns the rotation states of id in index order.
func (c *Catalog) Rotations(id PieceID) []Shape {
	if !id.Valid() {
		return nil
	}
	return c.pieces[id].Rotations
}

// Shape returns rotation r of id.
func (c *Catalog) Shape(id PieceID, rotation int) (Shape, bool) {
	rots := c.Rotations(id)
	if rotation < 0 || rotation >= len(rots) {
		return Shape{}, false
	}
	return rots[rotation], true
}

type catalogFile struct {
	Pieces []struct {
		ID        string     `yaml:"id"`
		Color     string     `yaml:"color"`
		Rotations [][]string `yaml:"rotations"`
	} `yaml:"pieces"`
}

// ParseCatalog decodes a YAML catalog. Every piece must be present exactly
// once with at least one rotation.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("tetris: decode catalog: %w", err)
	}
	cat := &Catalog{}
	var seen [len(pieceNames)]bool
	for _, p := range f.Pieces {
		id, err := ParsePiece(p.ID)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, fmt.Errorf("tetris: piece %s listed twice", id)
		}
		seen[id] = true
		if len(p.Rotations) == 0 {
			return nil, fmt.Errorf("tetris: piece %s has no rotations", id)
		}
		col, err := parseHexColor(p.Color)
		if err != nil {
			return nil, fmt.Errorf("tetris: piece %s: %w", id, err)
		}
		entry := Piece{ID: id, Color: col}
		for ri, rows := range p.Rotations {
			grid := make([][]bool, len(rows))
			for i, line := range rows {
				grid[i] = make([]bool, len(line))
				for j, ch := range line {
					switch ch {
					case '1':
						grid[i][j] = true
					case '0':
					default:
						return nil, fmt.Errorf("tetris: piece %s rotation %d: unexpected %q", id, ri, ch)
					}
				}
			}
			shape, err := NewShape(grid)
			if err != nil {
				return nil, fmt.Errorf("tetris: piece %s rotation %d: %w", id, ri, err)
			}
			entry.Rotations = append(entry.Rotations, shape)
		}
		cat.pieces[id] = entry
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("tetris: piece %s missing from catalog", PieceID(i))
		}
	}
	return cat, nil
}

func parseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("bad colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("bad colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// DefaultCatalog returns the embedded catalog. The embedded data is part of
// the binary, so a decode failure is a build defect and panics.
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		data, err := assets.Pieces()
		if err != nil {
			panic(err)
		}
		cat, err := ParseCatalog(data)
		if err != nil {
			panic(err)
		}
		defaultCatalog = cat
	})
	return defaultCatalog
}
