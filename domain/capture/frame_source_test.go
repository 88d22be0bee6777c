package capture

import (
	"errors"
	"image"
	"image/color"
	"log/slog"
	"testing"
	"time"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// fakeSession replays scripted acquire results. A nil result writes a frame
// whose first pixel encodes the call number.
type fakeSession struct {
	size    image.Point
	results []error
	calls   int
	closed  bool
}

func (s *fakeSession) Size() image.Point { return s.size }

func (s *fakeSession) AcquireNextFrame(_ time.Duration, dst *image.RGBA) error {
	s.calls++
	var err error
	if len(s.results) > 0 {
		err = s.results[0]
		s.results = s.results[1:]
	}
	if err != nil {
		return err
	}
	dst.SetRGBA(0, 0, color.RGBA{R: uint8(s.calls), A: 0xFF})
	return nil
}

func (s *fakeSession) Close() error { s.closed = true; return nil }

// fakeDevice hands out sessions in order; openErrs are returned before them.
type fakeDevice struct {
	sessions []*fakeSession
	openErrs []error
	opened   int
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) Open(Target) (Session, error) {
	if len(d.openErrs) > 0 {
		err := d.openErrs[0]
		d.openErrs = d.openErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if d.opened >= len(d.sessions) {
		return nil, errors.New("no more sessions")
	}
	s := d.sessions[d.opened]
	d.opened++
	return s, nil
}

// fakeClock advances only when sleep is called.
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
}

func newTestSource(t *testing.T, dev *fakeDevice, opts Options) (*FrameSource, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1000, 0)}
	src := NewFrameSource(discardLogger, dev, opts)
	src.now = clk.now
	src.sleep = clk.sleep
	return src, clk
}

func TestFrameSource_InitializeAllocatesPool(t *testing.T) {
	sess := &fakeSession{size: image.Pt(64, 48)}
	src, _ := newTestSource(t, &fakeDevice{sessions: []*fakeSession{sess}}, Options{})
	if err := src.Initialize(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if src.pool.Len() != 3 {
		t.Fatalf("expected default pool of 3, got %d", src.pool.Len())
	}
	if got := src.pool.Writable().Rect.Size(); got != image.Pt(64, 48) {
		t.Fatalf("buffer size %v", got)
	}
	if src.frameInterval != time.Second/60 {
		t.Fatalf("frame interval %v", src.frameInterval)
	}
}

func TestFrameSource_InitializeFailureKeepsNoState(t *testing.T) {
	dev := &fakeDevice{openErrs: []error{errors.New("no output")}}
	src, _ := newTestSource(t, dev, Options{})
	if err := src.Initialize(); err == nil {
		t.Fatalf("expected init error")
	}
	if src.session != nil || src.pool != nil {
		t.Fatalf("partial state kept after failed init")
	}
	if _, ok := src.Grab(); ok {
		t.Fatalf("grab on uninitialized source returned a frame")
	}
}

func TestFrameSource_FailedReinitializeStopsGrab(t *testing.T) {
	first := &fakeSession{size: image.Pt(4, 4)}
	dev := &fakeDevice{
		sessions: []*fakeSession{first, {size: image.Pt(4, 4)}},
		openErrs: []error{nil, errors.New("output gone")},
	}
	src, _ := newTestSource(t, dev, Options{})
	if err := src.Initialize(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, ok := src.Grab(); !ok {
		t.Fatalf("expected frame after init")
	}
	if err := src.Initialize(); err == nil {
		t.Fatalf("expected second init to fail")
	}
	if !first.closed {
		t.Fatalf("old session not released")
	}
	if src.initialized || src.session != nil || src.pool != nil {
		t.Fatalf("failed init left state behind")
	}
	if !src.lastGrab.IsZero() {
		t.Fatalf("pacing state kept after failed init")
	}
	if _, ok := src.Grab(); ok {
		t.Fatalf("grab after failed init returned a frame")
	}
	if dev.opened != 1 {
		t.Fatalf("grab reopened the device silently: %d opens", dev.opened)
	}
}

func TestFrameSource_GrabReturnsIndependentCopy(t *testing.T) {
	sess := &fakeSession{size: image.Pt(8, 4)}
	src, _ := newTestSource(t, &fakeDevice{sessions: []*fakeSession{sess}}, Options{PoolSize: 2})
	if err := src.Initialize(); err != nil {
		t.Fatalf("init: %v", err)
	}
	first, ok := src.Grab()
	if !ok {
		t.Fatalf("expected frame")
	}
	if first.Image.Rect.Size() != image.Pt(8, 4) || first.Sequence != 1 {
		t.Fatalf("unexpected snapshot %v seq=%d", first.Image.Rect, first.Sequence)
	}
	if first.Image.RGBAAt(0, 0).R != 1 {
		t.Fatalf("first frame content wrong")
	}
	// Cycle through every pool slot; the first snapshot must be untouched.
	for i := 0; i < 4; i++ {
		if _, ok := src.Grab(); !ok {
			t.Fatalf("grab %d failed", i)
		}
	}
	if first.Image.RGBAAt(0, 0).R != 1 {
		t.Fatalf("snapshot aliased a pool buffer")
	}
	first.Image.Pix[0] = 99
	for _, slot := range src.pool.slots {
		if slot.Pix[0] == 99 {
			t.Fatalf("writing the snapshot reached a pool buffer")
		}
	}
}

func TestFrameSource_RoundRobinAdvances(t *testing.T) {
	sess := &fakeSession{size: image.Pt(2, 2), results: []error{nil, ErrTimeout, nil}}
	src, _ := newTestSource(t, &fakeDevice{sessions: []*fakeSession{sess}}, Options{PoolSize: 3})
	_ = src.Initialize()
	src.Grab()
	if src.pool.writable != 1 || src.pool.readable != 0 {
		t.Fatalf("after success writable=%d readable=%d", src.pool.writable, src.pool.readable)
	}
	src.Grab() // timeout does not advance
	if src.pool.writable != 1 {
		t.Fatalf("timeout advanced the ring: %d", src.pool.writable)
	}
	src.Grab()
	if src.pool.writable != 2 || src.pool.readable != 1 {
		t.Fatalf("after second success writable=%d readable=%d", src.pool.writable, src.pool.readable)
	}
}

func TestFrameSource_TimeoutIsNoFrame(t *testing.T) {
	sess := &fakeSession{size: image.Pt(4, 4), results: []error{ErrTimeout}}
	dev := &fakeDevice{sessions: []*fakeSession{sess}}
	src, _ := newTestSource(t, dev, Options{})
	_ = src.Initialize()
	if _, ok := src.Grab(); ok {
		t.Fatalf("expected no frame on timeout")
	}
	if dev.opened != 1 || sess.closed {
		t.Fatalf("timeout must keep the session: opened=%d closed=%v", dev.opened, sess.closed)
	}
	if st := src.Stats(); st.Timeouts != 1 || st.Captures != 0 {
		t.Fatalf("stats %+v", st)
	}
	if _, ok := src.Grab(); !ok {
		t.Fatalf("expected frame after timeout")
	}
}

func TestFrameSource_OtherErrorKeepsSession(t *testing.T) {
	sess := &fakeSession{size: image.Pt(4, 4), results: []error{errors.New("driver hiccup")}}
	dev := &fakeDevice{sessions: []*fakeSession{sess}}
	src, _ := newTestSource(t, dev, Options{})
	_ = src.Initialize()
	if _, ok := src.Grab(); ok {
		t.Fatalf("expected no frame")
	}
	if dev.opened != 1 || sess.closed {
		t.Fatalf("non-device error must not re-init")
	}
	if src.Stats().Skipped != 1 {
		t.Fatalf("skip not counted")
	}
}

func TestFrameSource_DeviceLostRecoversOnce(t *testing.T) {
	lost := &fakeSession{size: image.Pt(4, 4), results: []error{ErrDeviceLost}}
	fresh := &fakeSession{size: image.Pt(6, 6)}
	dev := &fakeDevice{sessions: []*fakeSession{lost, fresh}}
	src, _ := newTestSource(t, dev, Options{})
	_ = src.Initialize()
	snap, ok := src.Grab()
	if !ok {
		t.Fatalf("expected frame after recovery")
	}
	if !lost.closed || dev.opened != 2 {
		t.Fatalf("expected teardown and re-init: closed=%v opened=%d", lost.closed, dev.opened)
	}
	if snap.Image.Rect.Size() != image.Pt(6, 6) {
		t.Fatalf("buffers not resized to new session: %v", snap.Image.Rect)
	}
	if src.Stats().Recoveries != 1 {
		t.Fatalf("recovery not counted")
	}
}

func TestFrameSource_DeviceLostTwiceIsNoFrame(t *testing.T) {
	lost := &fakeSession{size: image.Pt(4, 4), results: []error{ErrDeviceLost}}
	again := &fakeSession{size: image.Pt(4, 4), results: []error{ErrDeviceLost}}
	dev := &fakeDevice{sessions: []*fakeSession{lost, again}}
	src, _ := newTestSource(t, dev, Options{})
	_ = src.Initialize()
	if _, ok := src.Grab(); ok {
		t.Fatalf("expected no frame when the retry also fails")
	}
	if dev.opened != 2 || again.calls != 1 {
		t.Fatalf("expected exactly one retry: opened=%d calls=%d", dev.opened, again.calls)
	}
}

func TestFrameSource_RecoveryFailuresReportUnavailable(t *testing.T) {
	lost := &fakeSession{size: image.Pt(4, 4), results: []error{ErrDeviceLost}}
	fail := errors.New("output gone")
	dev := &fakeDevice{sessions: []*fakeSession{lost}}
	src, _ := newTestSource(t, dev, Options{MaxRecoveryFailures: 3})
	_ = src.Initialize()
	dev.openErrs = []error{fail, fail, fail}
	for i := 0; i < 3; i++ {
		if _, ok := src.Grab(); ok {
			t.Fatalf("grab %d returned a frame", i)
		}
	}
	if err := src.Err(); !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
}

func TestFrameSource_ReopensAfterFailedRecovery(t *testing.T) {
	lost := &fakeSession{size: image.Pt(4, 4), results: []error{ErrDeviceLost}}
	later := &fakeSession{size: image.Pt(4, 4)}
	dev := &fakeDevice{sessions: []*fakeSession{lost, later}}
	src, _ := newTestSource(t, dev, Options{})
	_ = src.Initialize()
	dev.openErrs = []error{errors.New("busy")}
	if _, ok := src.Grab(); ok {
		t.Fatalf("expected no frame while device is busy")
	}
	if _, ok := src.Grab(); !ok {
		t.Fatalf("expected frame once the device reopens")
	}
	if src.Err() != nil {
		t.Fatalf("unexpected terminal error %v", src.Err())
	}
}

func TestFrameSource_Pacing(t *testing.T) {
	sess := &fakeSession{size: image.Pt(2, 2)}
	src, clk := newTestSource(t, &fakeDevice{sessions: []*fakeSession{sess}}, Options{TargetFPS: 50})
	_ = src.Initialize()
	src.Grab()
	if len(clk.sleeps) != 0 {
		t.Fatalf("first grab should not wait: %v", clk.sleeps)
	}
	clk.t = clk.t.Add(5 * time.Millisecond)
	src.Grab()
	if len(clk.sleeps) != 1 || clk.sleeps[0] != 15*time.Millisecond {
		t.Fatalf("expected 15ms wait, got %v", clk.sleeps)
	}
	clk.t = clk.t.Add(30 * time.Millisecond)
	src.Grab()
	if len(clk.sleeps) != 1 {
		t.Fatalf("late grab should not wait: %v", clk.sleeps)
	}
}

func TestFrameSource_CloseReleasesSession(t *testing.T) {
	sess := &fakeSession{size: image.Pt(2, 2)}
	src, _ := newTestSource(t, &fakeDevice{sessions: []*fakeSession{sess}}, Options{})
	_ = src.Initialize()
	if err := src.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sess.closed {
		t.Fatalf("session not closed")
	}
	if _, ok := src.Grab(); ok {
		t.Fatalf("grab after close returned a frame")
	}
}
