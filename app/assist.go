package app

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/soocke/tetris-overlay-go/domain/capture"
	"github.com/soocke/tetris-overlay-go/domain/extract"
	"github.com/soocke/tetris-overlay-go/domain/search"
	"github.com/soocke/tetris-overlay-go/domain/stats"
	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// FrameGrabber is the capture side of the assist loop.
type FrameGrabber interface {
	Grab() (capture.FrameSnapshot, bool)
	Err() error
}

// Recorder persists published predictions.
type Recorder interface {
	Record(ev stats.Event) error
}

// AssistDeps are the collaborators of an Assist loop. Recorder is optional.
type AssistDeps struct {
	Logger    *slog.Logger
	Source    FrameGrabber
	Extractor extract.BoardExtractor
	Pieces    extract.PieceSource
	Evaluator search.Evaluator
	Slot      *PredictionSlot
	Recorder  Recorder
	IdleSleep time.Duration
}

// AssistStats are loop counters.
type AssistStats struct {
	Frames    uint64
	Extracted uint64
	Evaluated uint64
	Stuck     uint64
	Recorded  uint64
}

// Assist runs capture, extraction and search on one goroutine and publishes
// each prediction into the slot.
type Assist struct {
	deps  AssistDeps
	sleep func(time.Duration)

	last    tetris.Prediction
	hasLast bool

	frames    atomic.Uint64
	extracted atomic.Uint64
	evaluated atomic.Uint64
	stuck     atomic.Uint64
	recorded  atomic.Uint64
}

// NewAssist returns a loop over deps.
func NewAssist(deps AssistDeps) *Assist {
	return &Assist{deps: deps, sleep: time.Sleep}
}

// Run loops until ctx is cancelled or capture becomes unavailable. Cancellation
// is observed between iterations, so Run returns at most one grab later.
func (a *Assist) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if a.deps.Logger != nil {
				a.deps.Logger.Error("assist panic", "error", r, "stack", string(debug.Stack()))
			}
			err = fmt.Errorf("assist: panic: %v", r)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		snap, ok := a.deps.Source.Grab()
		if !ok {
			if cerr := a.deps.Source.Err(); cerr != nil {
				if a.deps.Logger != nil {
					a.deps.Logger.Error("assist.capture_lost", "error", cerr)
				}
				return fmt.Errorf("assist: %w", cerr)
			}
			a.sleep(a.deps.IdleSleep)
			continue
		}
		a.step(snap)
	}
}

// Stats returns loop counters.
func (a *Assist) Stats() AssistStats {
	return AssistStats{
		Frames:    a.frames.Load(),
		Extracted: a.extracted.Load(),
		Evaluated: a.evaluated.Load(),
		Stuck:     a.stuck.Load(),
		Recorded:  a.recorded.Load(),
	}
}

func (a *Assist) step(snap capture.FrameSnapshot) {
	defer capture.RecycleFrame(snap.Image)
	a.frames.Add(1)
	logger := a.deps.Logger

	board, err := a.deps.Extractor.Extract(snap.Image)
	if err != nil {
		if logger != nil {
			logger.Debug("assist.extract", "error", err, "seq", snap.Sequence)
		}
		return
	}
	a.extracted.Add(1)

	piece, ok := a.deps.Pieces.Current(snap.Image)
	if !ok {
		return
	}

	start := time.Now()
	pred := a.deps.Evaluator.Evaluate(board, piece)
	latency := time.Since(start)
	a.evaluated.Add(1)

	changed := !a.hasLast || pred != a.last
	if pred.IsNoMove() {
		a.stuck.Add(1)
		if changed && logger != nil {
			logger.Warn("assist.stuck", "piece", piece.String(), "cells", board.Count(), "seq", snap.Sequence)
		}
	}
	a.deps.Slot.Publish(pred)
	if !changed {
		return
	}
	a.last, a.hasLast = pred, true
	if logger != nil {
		logger.Debug("assist.prediction", "prediction", pred.String(), "latency", latency, "seq", snap.Sequence)
	}
	if a.deps.Recorder == nil {
		return
	}
	ev := stats.Event{
		Frame:        snap.Sequence,
		At:           snap.CapturedAt,
		Piece:        piece.String(),
		Rotation:     pred.Rotation,
		Column:       pred.Column,
		LinesCleared: pred.LinesCleared,
		Score:        pred.Score,
		Latency:      latency,
		Stuck:        pred.IsNoMove(),
	}
	if err := a.deps.Recorder.Record(ev); err != nil {
		if logger != nil {
			logger.Error("assist.record", "error", err)
		}
		return
	}
	a.recorded.Add(1)
}
