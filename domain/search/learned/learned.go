// Package learned scores placements with an ONNX policy network loaded
// through OpenCV's DNN module. The network sees the board as a single
// 20x10 channel and emits one logit per rotation/column pair. Only legal
// placements are considered; any model failure falls back to the heuristic
// engine.
package learned

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/soocke/tetris-overlay-go/domain/search"
	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// MaxRotations is the rotation dimension of the network output.
const MaxRotations = 4

// Evaluator wraps a loaded network. gocv.Net is not safe for concurrent use,
// so inference is serialised.
type Evaluator struct {
	net      gocv.Net
	mu       sync.Mutex
	fallback *search.Engine
	logger   *slog.Logger
	warned   bool
}

// New loads the model at path. fallback supplies legality checks, final
// scores and the answer when inference fails.
func New(path string, fallback *search.Engine, logger *slog.Logger) (*Evaluator, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("learned: model file: %w", err)
	}
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("learned: failed to load model from %s", path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return &Evaluator{net: net, fallback: fallback, logger: logger}, nil
}

func (e *Evaluator) Name() string { return "learned" }

// Close releases the network.
func (e *Evaluator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}

// Evaluate picks the legal placement with the highest logit. The returned
// score is the heuristic score of that placement so predictions stay
// comparable across evaluators.
func (e *Evaluator) Evaluate(b tetris.Board, piece tetris.PieceID) tetris.Prediction {
	logits, err := e.infer(&b)
	if err != nil {
		e.warnOnce(err)
		return e.fallback.Evaluate(b, piece)
	}
	return Choose(e.fallback, b, piece, logits)
}

// Choose returns the legal placement with the highest logit, keeping the
// earliest rotation/column on ties. logits is indexed rotation*Cols+column.
func Choose(engine *search.Engine, b tetris.Board, piece tetris.PieceID, logits []float32) tetris.Prediction {
	best := tetris.NoMove(piece)
	var bestLogit float32
	found := false
	for _, c := range engine.Candidates(b, piece) {
		idx := c.Rotation*tetris.Cols + c.Column
		if idx >= len(logits) {
			continue
		}
		if !found || logits[idx] > bestLogit {
			found = true
			bestLogit = logits[idx]
			best = tetris.Prediction{
				Piece:        piece,
				Rotation:     c.Rotation,
				Column:       c.Column,
				Row:          c.Row,
				Score:        c.Score,
				LinesCleared: c.Lines,
			}
		}
	}
	return best
}

func (e *Evaluator) infer(b *tetris.Board) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	in := gocv.NewMatWithSize(tetris.Rows, tetris.Cols, gocv.MatTypeCV32F)
	defer in.Close()
	for r := 0; r < tetris.Rows; r++ {
		for c := 0; c < tetris.Cols; c++ {
			if b[r][c] {
				in.SetFloatAt(r, c, 1)
			} else {
				in.SetFloatAt(r, c, 0)
			}
		}
	}
	blob := gocv.BlobFromImage(in, 1.0, image.Pt(tetris.Cols, tetris.Rows), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("learned: read output: %w", err)
	}
	if len(data) < MaxRotations*tetris.Cols {
		return nil, fmt.Errorf("learned: output has %d values, want %d", len(data), MaxRotations*tetris.Cols)
	}
	logits := make([]float32, MaxRotations*tetris.Cols)
	copy(logits, data)
	return logits, nil
}

func (e *Evaluator) warnOnce(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.warned || e.logger == nil {
		return
	}
	e.warned = true
	e.logger.Warn("learned.fallback", "error", err)
}
