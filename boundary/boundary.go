// Package boundary exposes the engine to foreign callers through opaque
// integer handles and flat byte buffers. Callers never see Go pointers:
// evaluators live in a registry keyed by Handle, boards cross as
// tetris.MaskSize row-major bytes and pieces as single-letter names.
package boundary

import (
	"errors"
	"fmt"
	"sync"

	"github.com/soocke/tetris-overlay-go/domain/extract"
	"github.com/soocke/tetris-overlay-go/domain/search"
	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// Handle identifies an engine instance. Zero is never issued.
type Handle uint64

// ErrInvalidHandle is returned for handles that were never issued or are
// already released.
var ErrInvalidHandle = errors.New("boundary: invalid handle")

// Result is the flat form of a prediction.
type Result struct {
	Rotation     int32
	Column       int32
	Row          int32
	LinesCleared int32
	Score        float64
	NoMove       bool
}

// Registry owns the engines referenced by handles. It is safe for concurrent
// use.
type Registry struct {
	mu      sync.RWMutex
	next    Handle
	engines map[Handle]search.Evaluator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[Handle]search.Evaluator)}
}

// Open registers a heuristic engine with the given weights.
func (r *Registry) Open(w search.Weights) (Handle, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}
	return r.Register(search.NewEngine(w)), nil
}

// Register stores an existing evaluator and returns its handle.
func (r *Registry) Register(ev search.Evaluator) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.engines[r.next] = ev
	return r.next
}

// Release drops the engine behind h.
func (r *Registry) Release(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[h]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	delete(r.engines, h)
	return nil
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// Evaluate decodes mask and piece and runs the engine behind h.
func (r *Registry) Evaluate(h Handle, mask []byte, piece string) (Result, error) {
	r.mu.RLock()
	ev, ok := r.engines[h]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	board, err := tetris.BoardFromMask(mask)
	if err != nil {
		return Result{}, err
	}
	id, err := tetris.ParsePiece(piece)
	if err != nil {
		return Result{}, err
	}
	p := ev.Evaluate(board, id)
	return Result{
		Rotation:     int32(p.Rotation),
		Column:       int32(p.Column),
		Row:          int32(p.Row),
		LinesCleared: int32(p.LinesCleared),
		Score:        p.Score,
		NoMove:       p.IsNoMove(),
	}, nil
}

// ProcessBoard converts a packed 3-channel 8-bit board image into a
// tetris.MaskSize byte mask with values 0 or 255.
func ProcessBoard(pix []byte, width, height int) ([]byte, error) {
	return extract.CellMask(pix, width, height)
}
