package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/review3/liveness-cam/internal/capture"
	"github.com/review3/liveness-cam/internal/config"
	"github.com/review3/liveness-cam/internal/metrics"
	"github.com/review3/liveness-cam/internal/predict"
	"github.com/review3/liveness-cam/pkg/types"
)

type fakeSink struct {
	mu        sync.Mutex
	published int
	resets    int
}

func (s *fakeSink) Publish([]byte) {
	s.mu.Lock()
	s.published++
	s.mu.Unlock()
}

func (s *fakeSink) Reset() {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
}

func (s *fakeSink) counts() (published, resets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published, s.resets
}

type fakePredictor struct {
	fn func(ctx context.Context, frame *image.RGBA) ([]types.Detection, error)
}

func (p *fakePredictor) Predict(ctx context.Context, frame *image.RGBA) ([]types.Detection, error) {
	return p.fn(ctx, frame)
}

type failSource struct{}

func (failSource) Start() error {
	return errors.New("camera acquisition failed: permission denied")
}
func (failSource) Stop()                      {}
func (failSource) Frames() <-chan types.Frame { return nil }
func (failSource) Errors() <-chan error       { return nil }
func (failSource) Dropped() uint64            { return 0 }

// errSource delivers one frame and then fails fatally.
type errSource struct {
	frames chan types.Frame
	errs   chan error
}

func newErrSource() *errSource {
	return &errSource{
		frames: make(chan types.Frame, 1),
		errs:   make(chan error, 1),
	}
}

func (s *errSource) Start() error {
	s.frames <- types.Frame{Image: image.NewRGBA(image.Rect(0, 0, 32, 24)), Timestamp: time.Now()}
	s.errs <- errors.New("camera read: device unplugged")
	return nil
}

func (s *errSource) Stop()                      {}
func (s *errSource) Frames() <-chan types.Frame { return s.frames }
func (s *errSource) Errors() <-chan error       { return s.errs }
func (s *errSource) Dropped() uint64            { return 0 }

// dropSource delivers one frame and reports a fixed number of dropped frames.
type dropSource struct {
	frames chan types.Frame
	errs   chan error
}

func newDropSource() *dropSource {
	return &dropSource{
		frames: make(chan types.Frame, 1),
		errs:   make(chan error, 1),
	}
}

func (s *dropSource) Start() error {
	s.frames <- types.Frame{Image: image.NewRGBA(image.Rect(0, 0, 32, 24)), Timestamp: time.Now()}
	return nil
}

func (s *dropSource) Stop()                      {}
func (s *dropSource) Frames() <-chan types.Frame { return s.frames }
func (s *dropSource) Errors() <-chan error       { return s.errs }
func (s *dropSource) Dropped() uint64            { return 5 }

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Device = "test"
	cfg.Width = 64
	cfg.Height = 48
	cfg.TargetFPS = 100
	cfg.PredictInterval = 20 * time.Millisecond
	cfg.RequestTimeout = 500 * time.Millisecond
	cfg.JPEGQuality = 60
	return cfg
}

func patternFactory(cfg config.Config) SourceFactory {
	return func() capture.Source {
		return capture.NewPatternSource(cfg.Width, cfg.Height, 120)
	}
}

func newTestController(t *testing.T, predictor predict.Predictor, factory SourceFactory) (*Controller, *predict.Store, *fakeSink) {
	t.Helper()
	cfg := testConfig()
	if factory == nil {
		factory = patternFactory(cfg)
	}
	store := predict.NewStore()
	sink := &fakeSink{}
	c := NewController(cfg, store, predictor, sink, metrics.New(), factory)
	t.Cleanup(c.Stop)
	return c, store, sink
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

func TestStartPublishesFramesAndDetections(t *testing.T) {
	predictor := &fakePredictor{fn: func(context.Context, *image.RGBA) ([]types.Detection, error) {
		return []types.Detection{{Box: [4]int{10, 20, 30, 40}, Label: "Original", Confidence: 0.97}}, nil
	}}
	c, store, sink := newTestController(t, predictor, nil)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		published, _ := sink.counts()
		return published > 0
	}, "render loop publishes frames")

	waitFor(t, 2*time.Second, func() bool { return store.Len() == 1 }, "detections applied")

	if got := c.Status(); got != StatusDetecting {
		t.Fatalf("status = %s, want %s", got, StatusDetecting)
	}
}

func TestStopClearsStateAndIsIdempotent(t *testing.T) {
	predictor := &fakePredictor{fn: func(context.Context, *image.RGBA) ([]types.Detection, error) {
		return []types.Detection{{Label: "Original", Confidence: 0.9}}, nil
	}}
	c, store, sink := newTestController(t, predictor, nil)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return store.Len() > 0 }, "detections applied")

	c.Stop()

	if c.Active() {
		t.Fatal("controller still active after Stop")
	}
	if store.Len() != 0 {
		t.Fatalf("store not cleared: %d detections", store.Len())
	}
	if got := c.Status(); got != StatusIdle {
		t.Fatalf("status = %s, want %s", got, StatusIdle)
	}
	if _, resets := sink.counts(); resets != 1 {
		t.Fatalf("sink resets = %d, want 1", resets)
	}

	// Stop on a stopped session is a no-op.
	c.Stop()
	if _, resets := sink.counts(); resets != 1 {
		t.Fatalf("duplicate cleanup: resets = %d", resets)
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	predictor := &fakePredictor{fn: func(context.Context, *image.RGBA) ([]types.Detection, error) {
		return nil, nil
	}}
	c, _, sink := newTestController(t, predictor, nil)

	c.Stop()
	c.Stop()

	if _, resets := sink.counts(); resets != 0 {
		t.Fatalf("stop without session touched the sink: %d resets", resets)
	}
	if got := c.Status(); got != StatusIdle {
		t.Fatalf("status = %s, want %s", got, StatusIdle)
	}
}

func TestStartWhileActiveIsNoop(t *testing.T) {
	predictor := &fakePredictor{fn: func(context.Context, *image.RGBA) ([]types.Detection, error) {
		return nil, nil
	}}

	var created atomic.Int32
	cfg := testConfig()
	factory := func() capture.Source {
		created.Add(1)
		return capture.NewPatternSource(cfg.Width, cfg.Height, 120)
	}
	c, _, _ := newTestController(t, predictor, factory)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if n := created.Load(); n != 1 {
		t.Fatalf("sources created = %d, want 1", n)
	}
}

func TestStartFailureRollsBack(t *testing.T) {
	predictor := &fakePredictor{fn: func(context.Context, *image.RGBA) ([]types.Detection, error) {
		return nil, nil
	}}
	c, _, _ := newTestController(t, predictor, func() capture.Source { return failSource{} })

	if err := c.Start(); err == nil {
		t.Fatal("expected start error")
	}
	if c.Active() {
		t.Fatal("controller active after failed start")
	}
	if got := c.Status(); got != StatusCameraError {
		t.Fatalf("status = %s, want %s", got, StatusCameraError)
	}
	snap := c.Snapshot()
	if snap.LastError == "" {
		t.Fatal("snapshot missing the camera error")
	}
}

func TestCaptureErrorEndsSession(t *testing.T) {
	predictor := &fakePredictor{fn: func(context.Context, *image.RGBA) ([]types.Detection, error) {
		return nil, nil
	}}
	c, _, _ := newTestController(t, predictor, func() capture.Source { return newErrSource() })

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return !c.Active() }, "session ends on capture error")

	if got := c.Status(); got != StatusCameraError {
		t.Fatalf("status = %s, want %s", got, StatusCameraError)
	}
}

func TestPredictionFailureClearsDetections(t *testing.T) {
	var calls atomic.Int32
	predictor := &fakePredictor{fn: func(context.Context, *image.RGBA) ([]types.Detection, error) {
		if calls.Add(1) == 1 {
			return []types.Detection{{Label: "Original", Confidence: 0.9}}, nil
		}
		return nil, errors.New("predict status 500")
	}}
	c, store, _ := newTestController(t, predictor, nil)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return store.Len() == 1 }, "first cycle applies")
	waitFor(t, 2*time.Second, func() bool { return store.Len() == 0 }, "failed cycle clears the slot")

	if got := c.Status(); got != StatusNoDetection {
		t.Fatalf("status = %s, want %s", got, StatusNoDetection)
	}
}

func TestLateResponseCannotResurrectAfterStop(t *testing.T) {
	block := make(chan struct{})
	var inFlight atomic.Int32
	predictor := &fakePredictor{fn: func(context.Context, *image.RGBA) ([]types.Detection, error) {
		inFlight.Add(1)
		<-block
		return []types.Detection{{Label: "Original", Confidence: 0.99}}, nil
	}}
	c, store, _ := newTestController(t, predictor, nil)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return inFlight.Load() > 0 }, "a request is in flight")

	// Stop does not abort the outstanding request; it must simply be unable
	// to write once it resolves.
	c.Stop()
	close(block)

	time.Sleep(100 * time.Millisecond)
	if store.Len() != 0 {
		t.Fatalf("late response resurrected the slot: %d detections", store.Len())
	}
	if got := c.Status(); got != StatusIdle {
		t.Fatalf("status = %s, want %s", got, StatusIdle)
	}
}

func TestRenderLoopStopsAfterStop(t *testing.T) {
	predictor := &fakePredictor{fn: func(context.Context, *image.RGBA) ([]types.Detection, error) {
		return nil, nil
	}}
	c, _, sink := newTestController(t, predictor, nil)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		published, _ := sink.counts()
		return published > 0
	}, "render loop publishes")

	c.Stop()
	published, _ := sink.counts()

	time.Sleep(150 * time.Millisecond)
	after, _ := sink.counts()
	if after != published {
		t.Fatalf("render loop still publishing after Stop: %d -> %d", published, after)
	}
}

func TestRestartWhileStopInProgress(t *testing.T) {
	predictor := &fakePredictor{fn: func(context.Context, *image.RGBA) ([]types.Detection, error) {
		return nil, nil
	}}
	c, _, _ := newTestController(t, predictor, nil)

	// Restart the instant Active reads false, while the previous Stop may
	// still be tearing down. Stop must complete on its own session rather
	// than wait on the new one.
	for i := 0; i < 20; i++ {
		if err := c.Start(); err != nil {
			t.Fatalf("iteration %d: Start: %v", i, err)
		}

		done := make(chan struct{})
		go func() {
			c.Stop()
			close(done)
		}()
		waitFor(t, 2*time.Second, func() bool { return !c.Active() }, "stop deactivates the session")

		if err := c.Start(); err != nil {
			t.Fatalf("iteration %d: restart: %v", i, err)
		}

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: Stop did not return after restart", i)
		}

		if !c.Active() {
			t.Fatalf("iteration %d: restarted session not active", i)
		}
		c.Stop()
	}
}

func TestCaptureDropsSurfaceInMetrics(t *testing.T) {
	predictor := &fakePredictor{fn: func(context.Context, *image.RGBA) ([]types.Detection, error) {
		return nil, nil
	}}
	cfg := testConfig()
	store := predict.NewStore()
	sink := &fakeSink{}
	m := metrics.New()
	c := NewController(cfg, store, predictor, sink, m, func() capture.Source { return newDropSource() })
	t.Cleanup(c.Stop)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return m.FramesDropped.Load() == 5 },
		"source drops folded into the metrics")
}

func TestRestartGetsFreshEpoch(t *testing.T) {
	predictor := &fakePredictor{fn: func(context.Context, *image.RGBA) ([]types.Detection, error) {
		return []types.Detection{{Label: "Original", Confidence: 0.8}}, nil
	}}
	c, store, _ := newTestController(t, predictor, nil)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return store.Len() > 0 }, "first session applies")
	c.Stop()

	if err := c.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return store.Len() > 0 }, "second session applies")
	if got := c.Status(); got != StatusDetecting {
		t.Fatalf("status = %s, want %s", got, StatusDetecting)
	}
}
