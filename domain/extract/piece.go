package extract

import (
	"image"
	"image/color"
	"math"

	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// PieceSource reports the active piece visible in a frame.
type PieceSource interface {
	Current(frame *image.RGBA) (tetris.PieceID, bool)
}

// StaticPiece always reports the same piece.
type StaticPiece tetris.PieceID

func (p StaticPiece) Current(*image.RGBA) (tetris.PieceID, bool) { return tetris.PieceID(p), true }

// ColorPieceDetector identifies the piece shown in a preview rectangle by the
// average colour of its saturated pixels, matched to the nearest catalog
// colour.
type ColorPieceDetector struct {
	rect        image.Rectangle
	colors      []color.RGBA // indexed by PieceID
	minCoverage float64      // fraction of saturated pixels required
	maxDistance float64      // RGB distance beyond which no piece matches
}

// NewColorPieceDetector returns a detector over rect using the catalog colours.
func NewColorPieceDetector(rect image.Rectangle, cat *tetris.Catalog) *ColorPieceDetector {
	d := &ColorPieceDetector{
		rect:        rect,
		colors:      make([]color.RGBA, len(tetris.AllPieces)),
		minCoverage: 0.05,
		maxDistance: 120,
	}
	for _, id := range tetris.AllPieces {
		d.colors[id] = cat.Piece(id).Color
	}
	return d
}

// Current implements PieceSource.
func (d *ColorPieceDetector) Current(frame *image.RGBA) (tetris.PieceID, bool) {
	if frame == nil {
		return 0, false
	}
	r := d.rect.Add(frame.Rect.Min).Intersect(frame.Rect)
	if r.Empty() {
		return 0, false
	}
	var sumR, sumG, sumB, n int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := frame.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			pr, pg, pb := int(frame.Pix[off]), int(frame.Pix[off+1]), int(frame.Pix[off+2])
			off += 4
			if !saturated(pr, pg, pb) {
				continue
			}
			sumR += pr
			sumG += pg
			sumB += pb
			n++
		}
	}
	total := r.Dx() * r.Dy()
	if n == 0 || float64(n)/float64(total) < d.minCoverage {
		return 0, false
	}
	avgR := float64(sumR) / float64(n)
	avgG := float64(sumG) / float64(n)
	avgB := float64(sumB) / float64(n)

	best := tetris.PieceI
	bestDist := math.MaxFloat64
	for _, id := range tetris.AllPieces {
		c := d.colors[id]
		dr := avgR - float64(c.R)
		dg := avgG - float64(c.G)
		db := avgB - float64(c.B)
		if dist := math.Sqrt(dr*dr + dg*dg + db*db); dist < bestDist {
			best, bestDist = id, dist
		}
	}
	if bestDist > d.maxDistance {
		return 0, false
	}
	return best, true
}

// saturated keeps vivid piece pixels and drops background, grid lines and
// grey garbage.
func saturated(r, g, b int) bool {
	hi, lo := r, r
	for _, v := range [2]int{g, b} {
		if v > hi {
			hi = v
		}
		if v < lo {
			lo = v
		}
	}
	return hi >= 80 && hi-lo >= 60
}

var (
	_ PieceSource = StaticPiece(0)
	_ PieceSource = (*ColorPieceDetector)(nil)
)
