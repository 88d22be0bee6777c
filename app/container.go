package app

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/soocke/tetris-overlay-go/config"
	"github.com/soocke/tetris-overlay-go/domain/capture"
	"github.com/soocke/tetris-overlay-go/domain/extract"
	"github.com/soocke/tetris-overlay-go/domain/search"
	"github.com/soocke/tetris-overlay-go/domain/search/learned"
	"github.com/soocke/tetris-overlay-go/domain/stats"
	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// AppContainer assembles the capture, extraction, search and output
// components described by a Config.
type AppContainer struct {
	Config      *config.Config
	Logger      *slog.Logger
	Calibration config.Calibration
	Catalog     *tetris.Catalog
	Frames      *capture.FrameSource
	Extractor   extract.BoardExtractor
	Pieces      extract.PieceSource
	Evaluator   search.Evaluator
	Slot        *PredictionSlot
	Store       *stats.Store
	Recorder    *matchRecorder
	Assist      *Assist

	closers []func() error
}

// BuildContainer constructs all components. The capture device is opened but
// the frame source is not initialized yet.
func BuildContainer(cfg *config.Config, logger *slog.Logger) (*AppContainer, error) {
	c := &AppContainer{Config: cfg, Logger: logger, Catalog: tetris.DefaultCatalog()}

	cal, err := config.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		return nil, fmt.Errorf("%w (run with -calibrate)", err)
	}
	c.Calibration = cal

	device, err := capture.NewDevice(cfg.CaptureBackend)
	if err != nil {
		return nil, err
	}
	c.Frames = capture.NewFrameSource(logger, device, capture.Options{
		TargetFPS:           cfg.TargetFPS,
		PoolSize:            cfg.PoolSize,
		AcquireTimeout:      time.Duration(cfg.AcquireTimeoutMS) * time.Millisecond,
		MaxRecoveryFailures: cfg.MaxRecoveryFailures,
		Target:              capture.Target{Window: cfg.CaptureWindow},
	})
	c.closers = append(c.closers, c.Frames.Close)

	c.Extractor = extract.NewHSVExtractor(cal, extract.HSVOptions{
		SatMin:        uint8(cfg.SatMin),
		ValMin:        uint8(cfg.ValMin),
		CellThreshold: uint8(cfg.CellThreshold),
	})

	if c.Pieces, err = newPieceSource(cfg, c.Catalog); err != nil {
		return nil, err
	}

	ev, closeEv, err := NewEvaluator(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Evaluator = ev
	if closeEv != nil {
		c.closers = append(c.closers, closeEv)
	}

	if cfg.StatsDB != "" {
		store, err := stats.Open(cfg.StatsDB, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Store = store
		rec, err := newMatchRecorder(store, ev.Name())
		if err != nil {
			store.Close()
			c.Close()
			return nil, err
		}
		c.Recorder = rec
		// closers run in reverse, so the match ends before the store closes
		c.closers = append(c.closers, store.Close, rec.Close)
	}

	c.Slot = NewPredictionSlot()
	deps := AssistDeps{
		Logger:    logger,
		Source:    c.Frames,
		Extractor: c.Extractor,
		Pieces:    c.Pieces,
		Evaluator: c.Evaluator,
		Slot:      c.Slot,
		IdleSleep: time.Duration(cfg.IdleSleepMS) * time.Millisecond,
	}
	if c.Recorder != nil {
		deps.Recorder = c.Recorder
	}
	c.Assist = NewAssist(deps)
	return c, nil
}

// Recalibrate points board extraction at a new rectangle while the assist
// loop keeps running.
func (c *AppContainer) Recalibrate(cal config.Calibration) {
	if r, ok := c.Extractor.(interface{ SetCalibration(config.Calibration) }); ok {
		r.SetCalibration(cal)
	}
}

// Close releases components in reverse construction order.
func (c *AppContainer) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func newPieceSource(cfg *config.Config, cat *tetris.Catalog) (extract.PieceSource, error) {
	if cfg.PieceW > 0 && cfg.PieceH > 0 {
		rect := image.Rect(cfg.PieceX, cfg.PieceY, cfg.PieceX+cfg.PieceW, cfg.PieceY+cfg.PieceH)
		return extract.NewColorPieceDetector(rect, cat), nil
	}
	id, err := tetris.ParsePiece(cfg.Piece)
	if err != nil {
		return nil, err
	}
	return extract.StaticPiece(id), nil
}

// NewEvaluator builds the evaluator named by cfg.Evaluator. A learned model
// that cannot be loaded degrades to the heuristic engine with a warning. The
// returned close func may be nil.
func NewEvaluator(cfg *config.Config, logger *slog.Logger) (search.Evaluator, func() error, error) {
	w := search.Weights{
		Lines:     cfg.WeightLines,
		Height:    cfg.WeightHeight,
		Holes:     cfg.WeightHoles,
		Bumpiness: cfg.WeightBumpiness,
	}
	if err := w.Validate(); err != nil {
		return nil, nil, err
	}
	engine := search.NewEngine(w)
	switch cfg.Evaluator {
	case config.EvaluatorHeuristic:
		return engine, nil, nil
	case config.EvaluatorLearned:
		ev, err := learned.New(cfg.ModelPath, engine, logger)
		if err != nil {
			if logger != nil {
				logger.Warn("evaluator.learned_unavailable", "error", err, "fallback", engine.Name())
			}
			return engine, nil, nil
		}
		return ev, ev.Close, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown evaluator %q", cfg.Evaluator)
	}
}
