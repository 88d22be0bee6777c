// Package extract turns captured frames into board occupancy and identifies
// the active piece.
package extract

import (
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/soocke/tetris-overlay-go/config"
	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// BoardExtractor converts a frame into a board. Implementations are pure
// functions of the frame and their configuration.
type BoardExtractor interface {
	Extract(frame *image.RGBA) (tetris.Board, error)
}

// HSVOptions are the colour thresholds of HSVExtractor. Cells count as filled
// when saturation and value both reach their minimum and the averaged cell
// intensity exceeds CellThreshold.
type HSVOptions struct {
	SatMin        uint8
	ValMin        uint8
	CellThreshold uint8
}

// DefaultHSVOptions returns the thresholds tuned for the standard skin.
func DefaultHSVOptions() HSVOptions {
	return HSVOptions{SatMin: 50, ValMin: 50, CellThreshold: 30}
}

// HSVExtractor crops the calibrated board rectangle, keeps saturated bright
// pixels, closes small gaps and area-averages the mask down to one value per
// cell.
type HSVExtractor struct {
	rect atomic.Pointer[image.Rectangle]
	opts HSVOptions
}

// NewHSVExtractor returns an extractor for the calibrated rectangle.
func NewHSVExtractor(cal config.Calibration, opts HSVOptions) *HSVExtractor {
	e := &HSVExtractor{opts: opts}
	e.SetCalibration(cal)
	return e
}

// SetCalibration switches to a new board rectangle. It may be called while
// another goroutine is extracting; the next Extract uses the new rectangle.
func (e *HSVExtractor) SetCalibration(cal config.Calibration) {
	rect := cal.Rect()
	e.rect.Store(&rect)
}

// Extract implements BoardExtractor.
func (e *HSVExtractor) Extract(frame *image.RGBA) (tetris.Board, error) {
	var board tetris.Board
	if frame == nil {
		return board, errors.New("extract: nil frame")
	}
	rect := *e.rect.Load()
	r := rect.Add(frame.Rect.Min)
	if r.Empty() || !r.In(frame.Rect) {
		return board, fmt.Errorf("extract: board rect %v outside frame %v", rect, frame.Rect)
	}

	roi := compactRGBA(frame, r)
	src, err := gocv.NewMatFromBytes(r.Dy(), r.Dx(), gocv.MatTypeCV8UC4, roi)
	if err != nil {
		return board, fmt.Errorf("extract: wrap frame: %w", err)
	}
	defer src.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(src, &bgr, gocv.ColorRGBAToBGR)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	lower := gocv.NewScalar(0, float64(e.opts.SatMin), float64(e.opts.ValMin), 0)
	upper := gocv.NewScalar(180, 255, 255, 0)
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(mask, &closed, gocv.MorphClose, kernel)

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(closed, &small, image.Pt(tetris.Cols, tetris.Rows), 0, 0, gocv.InterpolationArea)

	for row := 0; row < tetris.Rows; row++ {
		for col := 0; col < tetris.Cols; col++ {
			if small.GetUCharAt(row, col) > e.opts.CellThreshold {
				board[row][col] = true
			}
		}
	}
	return board, nil
}

// compactRGBA copies r out of img into a tightly packed RGBA byte slice.
func compactRGBA(img *image.RGBA, r image.Rectangle) []byte {
	w := r.Dx() * 4
	out := make([]byte, w*r.Dy())
	for y := 0; y < r.Dy(); y++ {
		off := img.PixOffset(r.Min.X, r.Min.Y+y)
		copy(out[y*w:(y+1)*w], img.Pix[off:off+w])
	}
	return out
}

var _ BoardExtractor = (*HSVExtractor)(nil)
