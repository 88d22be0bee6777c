package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// KeyColor is painted wherever the overlay should be see-through. The overlay
// window registers it as its transparent colour.
var KeyColor = color.RGBA{R: 0x00, G: 0x80, B: 0x80, A: 0xff}

// StuckColor frames the overlay when no placement exists.
var StuckColor = color.RGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff}

// RenderGhost draws the outline of the predicted landing cells over a
// key-coloured canvas of the given size. Cells above the visible board are
// skipped. A no-move prediction renders a red frame instead.
func RenderGhost(pred tetris.Prediction, cat *tetris.Catalog, size image.Point) *image.RGBA {
	if size.X < tetris.Cols {
		size.X = tetris.Cols
	}
	if size.Y < tetris.Rows {
		size.Y = tetris.Rows
	}
	dst := Blank(size)

	line := size.X / tetris.Cols / 8
	if line < 1 {
		line = 1
	}
	if pred.IsNoMove() {
		outline(dst, dst.Bounds(), line*2, StuckColor)
		return dst
	}
	if cat == nil {
		cat = tetris.DefaultCatalog()
	}
	shape, ok := cat.Shape(pred.Piece, pred.Rotation)
	if !ok {
		return dst
	}
	col := cat.Piece(pred.Piece).Color
	for r := 0; r < shape.Height(); r++ {
		for c := 0; c < shape.Width(); c++ {
			if !shape.At(r, c) {
				continue
			}
			y, x := pred.Row+r, pred.Column+c
			if !tetris.InBounds(y, x) {
				continue
			}
			outline(dst, cellRect(size, y, x), line, col)
		}
	}
	return dst
}

// Blank returns a fully see-through canvas.
func Blank(size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(dst, dst.Bounds(), image.NewUniform(KeyColor), image.Point{}, draw.Src)
	return dst
}

// cellRect maps a board cell to pixels; edges are rounded so cells tile the
// canvas exactly.
func cellRect(size image.Point, row, col int) image.Rectangle {
	x0 := col * size.X / tetris.Cols
	x1 := (col + 1) * size.X / tetris.Cols
	y0 := row * size.Y / tetris.Rows
	y1 := (row + 1) * size.Y / tetris.Rows
	return image.Rect(x0, y0, x1, y1)
}

func outline(dst *image.RGBA, r image.Rectangle, width int, c color.RGBA) {
	u := image.NewUniform(c)
	if width*2 >= r.Dx() || width*2 >= r.Dy() {
		draw.Draw(dst, r, u, image.Point{}, draw.Src)
		return
	}
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), u, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
}
