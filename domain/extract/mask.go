package extract

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// CellMask reduces a packed 3-channel 8-bit image (BGR order, rows top to
// bottom) of the board area to tetris.MaskSize bytes, row-major, 255 for an
// occupied cell and 0 for an empty one. The image is blurred, adaptively
// thresholded against its local neighbourhood and sampled at cell
// resolution.
func CellMask(pix []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("extract: invalid image size %dx%d", width, height)
	}
	if len(pix) != width*height*3 {
		return nil, fmt.Errorf("extract: %d bytes for a %dx%d 3-channel image", len(pix), width, height)
	}
	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, pix)
	if err != nil {
		return nil, fmt.Errorf("extract: wrap image: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.AdaptiveThreshold(blurred, &binary, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, 11, 2)

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(binary, &small, image.Pt(tetris.Cols, tetris.Rows), 0, 0, gocv.InterpolationNearestNeighbor)

	out := make([]byte, tetris.MaskSize)
	for r := 0; r < tetris.Rows; r++ {
		for c := 0; c < tetris.Cols; c++ {
			if small.GetUCharAt(r, c) > 127 {
				out[r*tetris.Cols+c] = 255
			}
		}
	}
	return out, nil
}
