package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const captureStatsLogInterval = 5 * time.Second

// Options configure a FrameSource.
type Options struct {
	TargetFPS           int
	PoolSize            int
	AcquireTimeout      time.Duration
	MaxRecoveryFailures int
	Target              Target
}

// DefaultOptions returns 60 fps pacing, three buffers and a 500ms acquire wait.
func DefaultOptions() Options {
	return Options{
		TargetFPS:           60,
		PoolSize:            3,
		AcquireTimeout:      500 * time.Millisecond,
		MaxRecoveryFailures: 5,
	}
}

func (o *Options) normalize() {
	d := DefaultOptions()
	if o.TargetFPS <= 0 {
		o.TargetFPS = d.TargetFPS
	}
	if o.PoolSize <= 0 {
		o.PoolSize = d.PoolSize
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = d.AcquireTimeout
	}
	if o.MaxRecoveryFailures <= 0 {
		o.MaxRecoveryFailures = d.MaxRecoveryFailures
	}
}

// FrameSource acquires frames from a Device at a bounded rate into a ring of
// reusable buffers and hands out independent copies. It rebuilds the session
// once when the device reports it was invalidated.
//
// A FrameSource is owned by a single goroutine. Stats may be read from any
// goroutine.
type FrameSource struct {
	logger *slog.Logger
	device Device
	opts   Options

	frameInterval time.Duration
	session       Session
	pool          *ringPool
	initialized   bool // Initialize succeeded at least once and Close was not called
	lastGrab      time.Time
	lastStatsLog  time.Time
	failures      int // consecutive failed recoveries
	lost          error

	now   func() time.Time
	sleep func(time.Duration)

	captures     atomic.Uint64
	timeouts     atomic.Uint64
	skipped      atomic.Uint64
	recoveries   atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
	lastCapture  atomic.Int64 // unix nanos
}

// NewFrameSource returns an uninitialized source for device.
func NewFrameSource(logger *slog.Logger, device Device, opts Options) *FrameSource {
	opts.normalize()
	return &FrameSource{
		logger: logger,
		device: device,
		opts:   opts,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Initialize opens a session on the configured target, sizes the buffer ring
// to the session's resolution and sets the pacing interval. On failure no
// partial state is kept and Grab reports no frames until Initialize succeeds.
func (s *FrameSource) Initialize() error {
	if err := s.open(); err != nil {
		s.initialized = false
		s.lastGrab = time.Time{}
		return err
	}
	s.initialized = true
	s.failures = 0
	s.lost = nil
	return nil
}

// open replaces the current session with a fresh one. It is shared by
// Initialize and the recovery path; only the latter keeps the source usable
// after a failure.
func (s *FrameSource) open() error {
	s.teardown()
	session, err := s.device.Open(s.opts.Target)
	if err != nil {
		return fmt.Errorf("capture: open %s session: %w", s.device.Name(), err)
	}
	size := session.Size()
	if size.X <= 0 || size.Y <= 0 {
		_ = session.Close()
		return fmt.Errorf("capture: invalid output size %dx%d", size.X, size.Y)
	}
	s.session = session
	s.pool = newRingPool(s.opts.PoolSize, size)
	s.frameInterval = time.Second / time.Duration(s.opts.TargetFPS)
	if s.logger != nil {
		s.logger.Info("capture.init",
			"backend", s.device.Name(),
			"width", size.X,
			"height", size.Y,
			"pool", s.opts.PoolSize,
			"fps", s.opts.TargetFPS,
		)
	}
	return nil
}

// Grab waits out the remainder of the frame interval, then acquires the next
// frame. ok is false when no frame is available: a timeout, a transient
// capture error, or an unrecoverable device. It never blocks longer than the
// pacing wait plus two acquire timeouts.
func (s *FrameSource) Grab() (FrameSnapshot, bool) {
	if !s.initialized || s.lost != nil {
		return FrameSnapshot{}, false
	}
	s.pace()
	s.maybeLogStats()

	if s.session == nil {
		// A previous recovery could not reopen the device.
		if err := s.reopen(); err != nil {
			return FrameSnapshot{}, false
		}
	}

	start := s.now()
	err := s.acquire()
	if errors.Is(err, ErrDeviceLost) {
		if s.logger != nil {
			s.logger.Warn("capture.device_lost", "error", err)
		}
		s.recoveries.Add(1)
		if rerr := s.reopen(); rerr != nil {
			return FrameSnapshot{}, false
		}
		err = s.acquire()
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrTimeout):
		s.timeouts.Add(1)
		return FrameSnapshot{}, false
	default:
		s.skipped.Add(1)
		if s.logger != nil {
			s.logger.Debug("capture.acquire", "error", err)
		}
		return FrameSnapshot{}, false
	}

	img := s.pool.CopyReadable()
	at := s.now()
	s.captureNanos.Add(uint64(at.Sub(start).Nanoseconds()))
	s.captures.Add(1)
	s.lastCapture.Store(at.UnixNano())
	seq := s.sequence.Add(1)
	return FrameSnapshot{Image: img, CapturedAt: at, Sequence: seq}, true
}

// Err returns a non-nil error wrapping ErrCaptureUnavailable once recovery
// has failed MaxRecoveryFailures times in a row.
func (s *FrameSource) Err() error { return s.lost }

// Close releases the session and buffers. The source must be initialized
// again before use.
func (s *FrameSource) Close() error {
	var err error
	if s.session != nil {
		err = s.session.Close()
	}
	s.session = nil
	s.pool = nil
	s.initialized = false
	return err
}

// Stats returns capture counters.
func (s *FrameSource) Stats() CaptureStats {
	captures := s.captures.Load()
	total := s.captureNanos.Load()
	var avg time.Duration
	avgMicros := 0.0
	if captures > 0 && total > 0 {
		avg = time.Duration(total / captures)
		avgMicros = float64(avg) / float64(time.Microsecond)
	}
	var last time.Time
	var age time.Duration
	if n := s.lastCapture.Load(); n != 0 {
		last = time.Unix(0, n)
		age = time.Since(last)
	}
	return CaptureStats{
		Captures:         captures,
		Timeouts:         s.timeouts.Load(),
		Skipped:          s.skipped.Load(),
		Recoveries:       s.recoveries.Load(),
		AvgCapture:       avg,
		AvgCaptureMicros: avgMicros,
		LastCapture:      last,
		LatestFrameAge:   age,
		Sequence:         s.sequence.Load(),
	}
}

func (s *FrameSource) pace() {
	if !s.lastGrab.IsZero() {
		if elapsed := s.now().Sub(s.lastGrab); elapsed < s.frameInterval {
			s.sleep(s.frameInterval - elapsed)
		}
	}
	s.lastGrab = s.now()
}

func (s *FrameSource) acquire() error {
	slot := s.pool.Writable()
	if err := s.session.AcquireNextFrame(s.opts.AcquireTimeout, slot); err != nil {
		return err
	}
	s.pool.Commit()
	return nil
}

// reopen tears the session down and opens it again, tracking consecutive
// failures. A failed reopen leaves the source initialized so the next Grab
// retries.
func (s *FrameSource) reopen() error {
	if err := s.open(); err != nil {
		s.failures++
		if s.logger != nil {
			s.logger.Error("capture.reinit", "error", err, "failures", s.failures)
		}
		if s.failures >= s.opts.MaxRecoveryFailures {
			s.lost = fmt.Errorf("%w after %d attempts: %v", ErrCaptureUnavailable, s.failures, err)
		}
		return err
	}
	s.failures = 0
	return nil
}

func (s *FrameSource) teardown() {
	if s.session != nil {
		if err := s.session.Close(); err != nil && s.logger != nil {
			s.logger.Debug("capture.close", "error", err)
		}
	}
	s.session = nil
	s.pool = nil
}

func (s *FrameSource) maybeLogStats() {
	if s.logger == nil {
		return
	}
	now := s.now()
	if now.Sub(s.lastStatsLog) < captureStatsLogInterval {
		return
	}
	s.lastStatsLog = now
	stats := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", stats.Captures,
		"timeouts", stats.Timeouts,
		"skipped", stats.Skipped,
		"recoveries", stats.Recoveries,
		"avg_capture", stats.AvgCapture,
		"age", stats.LatestFrameAge,
	)
}
