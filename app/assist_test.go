package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/soocke/tetris-overlay-go/domain/capture"
	"github.com/soocke/tetris-overlay-go/domain/search"
	"github.com/soocke/tetris-overlay-go/domain/stats"
	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// fakeGrabber replays frames, then either reports err or calls onEmpty.
type fakeGrabber struct {
	frames  int
	seq     uint64
	err     error
	onEmpty func()
}

func (g *fakeGrabber) Grab() (capture.FrameSnapshot, bool) {
	if g.frames == 0 {
		if g.onEmpty != nil {
			g.onEmpty()
		}
		return capture.FrameSnapshot{}, false
	}
	g.frames--
	g.seq++
	return capture.FrameSnapshot{Image: image.NewRGBA(image.Rect(0, 0, 4, 4)), CapturedAt: time.Now(), Sequence: g.seq}, true
}

func (g *fakeGrabber) Err() error {
	if g.frames == 0 {
		return g.err
	}
	return nil
}

type fakeExtractor struct {
	board tetris.Board
	err   error
	panic bool
}

func (e *fakeExtractor) Extract(*image.RGBA) (tetris.Board, error) {
	if e.panic {
		panic("extract exploded")
	}
	return e.board, e.err
}

type fakePieces struct{ id tetris.PieceID }

func (p fakePieces) Current(*image.RGBA) (tetris.PieceID, bool) { return p.id, true }

type fakeRecorder struct{ events []stats.Event }

func (r *fakeRecorder) Record(ev stats.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func newTestAssist(src FrameGrabber, ex *fakeExtractor, rec Recorder) (*Assist, *PredictionSlot) {
	slot := NewPredictionSlot()
	a := NewAssist(AssistDeps{
		Logger:    discardLogger(),
		Source:    src,
		Extractor: ex,
		Pieces:    fakePieces{id: tetris.PieceO},
		Evaluator: search.NewEngine(search.DefaultWeights()),
		Slot:      slot,
		Recorder:  rec,
	})
	a.sleep = func(time.Duration) {}
	return a, slot
}

func TestAssist_PublishesAndRecordsChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeGrabber{frames: 3, onEmpty: cancel}
	rec := &fakeRecorder{}
	a, slot := newTestAssist(src, &fakeExtractor{}, rec)

	if err := a.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	p, ok := slot.Take()
	if !ok {
		t.Fatal("no prediction published")
	}
	if p.Piece != tetris.PieceO || p.Column != 0 || p.Row != tetris.Rows-2 {
		t.Fatalf("unexpected prediction %v", p)
	}
	st := a.Stats()
	if st.Frames != 3 || st.Evaluated != 3 || st.Recorded != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if len(rec.events) != 1 || rec.events[0].Frame != 1 || rec.events[0].Piece != "O" {
		t.Fatalf("unexpected events %+v", rec.events)
	}
}

func TestAssist_StuckBoardStillPublishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var full tetris.Board
	for r := 0; r < tetris.Rows; r++ {
		for c := 0; c < tetris.Cols; c++ {
			full.Set(r, c, true)
		}
	}
	rec := &fakeRecorder{}
	a, slot := newTestAssist(&fakeGrabber{frames: 1, onEmpty: cancel}, &fakeExtractor{board: full}, rec)
	if err := a.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	p, ok := slot.Take()
	if !ok || !p.IsNoMove() {
		t.Fatalf("expected no-move prediction, got %v ok=%v", p, ok)
	}
	if a.Stats().Stuck != 1 || len(rec.events) != 1 || !rec.events[0].Stuck {
		t.Fatalf("stuck not accounted: %+v %+v", a.Stats(), rec.events)
	}
}

func TestAssist_SkipsFramesThatFailExtraction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, slot := newTestAssist(&fakeGrabber{frames: 2, onEmpty: cancel}, &fakeExtractor{err: errors.New("bad frame")}, nil)
	if err := a.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := slot.Take(); ok {
		t.Fatal("nothing should be published")
	}
	if st := a.Stats(); st.Frames != 2 || st.Extracted != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestAssist_ReturnsWhenCaptureLost(t *testing.T) {
	lost := fmt.Errorf("capture: %w after 5 attempts", capture.ErrCaptureUnavailable)
	a, _ := newTestAssist(&fakeGrabber{frames: 1, err: lost}, &fakeExtractor{}, nil)
	err := a.Run(context.Background())
	if !errors.Is(err, capture.ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
}

func TestAssist_RecoversPanics(t *testing.T) {
	a, _ := newTestAssist(&fakeGrabber{frames: 1}, &fakeExtractor{panic: true}, nil)
	err := a.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("expected panic error, got %v", err)
	}
}

func TestAssist_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeGrabber{frames: 5}
	a, _ := newTestAssist(src, &fakeExtractor{}, nil)
	if err := a.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if src.frames != 5 {
		t.Fatalf("grabbed after cancellation")
	}
}
