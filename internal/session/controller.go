// Package session owns the capture session lifecycle: camera acquisition,
// the render loop and the prediction loop.
package session

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/review3/liveness-cam/internal/capture"
	"github.com/review3/liveness-cam/internal/config"
	"github.com/review3/liveness-cam/internal/logger"
	"github.com/review3/liveness-cam/internal/metrics"
	"github.com/review3/liveness-cam/internal/overlay"
	"github.com/review3/liveness-cam/internal/predict"
	"github.com/review3/liveness-cam/pkg/types"
)

// Status is the user-facing session state.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusInitializing Status = "initializing"
	StatusDetecting    Status = "detecting"
	StatusNoDetection  Status = "no-detection"
	StatusCameraError  Status = "camera-error"
)

// Message returns the human-readable status text.
func (s Status) Message() string {
	switch s {
	case StatusInitializing:
		return "Initializing camera..."
	case StatusDetecting:
		return "Liveness check active"
	case StatusNoDetection:
		return "No detection"
	case StatusCameraError:
		return "Camera access failed"
	default:
		return "Press start to begin"
	}
}

// FrameSink receives the annotated JPEG frames produced by the render loop.
type FrameSink interface {
	// Publish delivers one encoded frame.
	Publish(jpegData []byte)
	// Reset clears the published picture when the session ends.
	Reset()
}

// SourceFactory builds a camera source for a new session.
type SourceFactory func() capture.Source

// Snapshot is a point-in-time view of the session for the status API.
type Snapshot struct {
	Status         Status            `json:"status"`
	Message        string            `json:"message"`
	Active         bool              `json:"active"`
	DetectionCount int               `json:"detection_count"`
	Detections     []types.Detection `json:"detections"`
	LastError      string            `json:"last_error,omitempty"`
}

// Controller owns session state. Both loops run only between a successful
// Start and the next Stop; all shared state flows through the detection store
// (single writer: prediction loop, single reader: render loop) and the latest
// frame slot (single writer: capture loop).
type Controller struct {
	cfg       config.Config
	store     *predict.Store
	predictor predict.Predictor
	sink      FrameSink
	metrics   *metrics.Metrics
	newSource SourceFactory
	palette   overlay.Palette

	// lifeMu serializes Start and Stop across their full bodies, teardown
	// included, so a restart never overlaps a teardown still in progress.
	lifeMu sync.Mutex

	mu           sync.Mutex
	active       bool
	initializing bool
	cancel       context.CancelFunc
	source       capture.Source
	cameraErr    error
	wg           sync.WaitGroup

	frameMu sync.RWMutex
	latest  *types.Frame
}

// NewController wires a session controller. The source factory is invoked on
// every Start so each session gets a fresh camera handle.
func NewController(cfg config.Config, store *predict.Store, predictor predict.Predictor,
	sink FrameSink, m *metrics.Metrics, newSource SourceFactory) *Controller {
	if newSource == nil {
		newSource = func() capture.Source {
			return capture.New(capture.Options{
				Device: cfg.Device,
				Width:  cfg.Width,
				Height: cfg.Height,
				FPS:    cfg.TargetFPS,
			})
		}
	}
	return &Controller{
		cfg:       cfg,
		store:     store,
		predictor: predictor,
		sink:      sink,
		metrics:   m,
		newSource: newSource,
		palette:   overlay.DefaultPalette(cfg.AuthenticLabel),
	}
}

// Start acquires the camera and launches the render and prediction loops.
// Starting an active session is a no-op; a Start issued while Stop is tearing
// down waits for the teardown to finish. On acquisition failure no partial
// state remains and the error is reflected in the status surface.
func (c *Controller) Start() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	if c.active || c.initializing {
		c.mu.Unlock()
		return nil
	}
	c.initializing = true
	c.cameraErr = nil
	c.mu.Unlock()

	src := c.newSource()
	if err := src.Start(); err != nil {
		src.Stop()
		c.mu.Lock()
		c.initializing = false
		c.cameraErr = err
		c.mu.Unlock()
		logger.Error("Session", "start failed: %v", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	epoch := c.store.Begin()

	c.mu.Lock()
	c.initializing = false
	c.active = true
	c.cancel = cancel
	c.source = src
	c.mu.Unlock()

	c.metrics.SessionActive.Store(1)
	c.metrics.SessionsStarted.Add(1)

	c.wg.Add(3)
	go c.captureLoop(ctx, src)
	go c.renderLoop(ctx)
	go c.predictLoop(ctx, epoch)

	logger.Info("Session", "session started (device=%s, predict every %s)",
		c.cfg.Device, c.cfg.PredictInterval)
	return nil
}

// Stop ends the session: loops terminate cooperatively, the camera is
// released, the detection slot and published frame are cleared. Stopping a
// stopped session is a no-op. An in-flight prediction request is not aborted;
// its eventual response is discarded by the store's epoch guard.
func (c *Controller) Stop() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	cancel := c.cancel
	c.cancel = nil
	src := c.source
	c.source = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	if src != nil {
		src.Stop()
	}

	c.store.Invalidate()
	c.setLatest(nil)
	c.sink.Reset()
	c.metrics.SessionActive.Store(0)
	c.metrics.DetectionsShown.Store(0)

	logger.Info("Session", "session stopped")
}

// Active reports whether a session is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Status derives the user-facing state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.initializing:
		return StatusInitializing
	case c.active:
		if c.store.Len() > 0 {
			return StatusDetecting
		}
		return StatusNoDetection
	case c.cameraErr != nil:
		return StatusCameraError
	default:
		return StatusIdle
	}
}

// Snapshot captures the session state for the status API.
func (c *Controller) Snapshot() Snapshot {
	status := c.Status()
	detections := c.store.Snapshot()

	snap := Snapshot{
		Status:         status,
		Message:        status.Message(),
		Active:         c.Active(),
		DetectionCount: len(detections),
		Detections:     detections,
	}
	c.mu.Lock()
	if c.cameraErr != nil {
		snap.LastError = c.cameraErr.Error()
	}
	c.mu.Unlock()
	return snap
}

// captureLoop drains the source into the latest-frame slot. A fatal source
// error ends the session.
func (c *Controller) captureLoop(ctx context.Context, src capture.Source) {
	defer c.wg.Done()

	// Drops happen inside the source; fold its running total into the
	// metrics as a delta so restarts don't reset the counter.
	var dropped uint64
	syncDrops := func() {
		if d := src.Dropped(); d > dropped {
			c.metrics.FramesDropped.Add(d - dropped)
			dropped = d
		}
	}
	defer syncDrops()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-src.Frames():
			if !ok {
				return
			}
			c.setLatest(&frame)
			c.metrics.FramesCaptured.Add(1)
			syncDrops()
		case err, ok := <-src.Errors():
			if !ok {
				return
			}
			logger.Error("Session", "capture failed: %v", err)
			c.mu.Lock()
			c.cameraErr = err
			c.mu.Unlock()
			// Stop waits on this goroutine, so tear down from the outside.
			go c.Stop()
			return
		}
	}
}

// renderLoop composes the latest frame with the latest detections at the
// display rate and publishes the encoded result. Detections lag the displayed
// frame by up to one prediction interval; that is a property of the design,
// not a defect.
func (c *Controller) renderLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(c.cfg.TargetFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := c.latestFrame()
			if frame == nil {
				// No frame yet is a blank picture, not a failure.
				continue
			}

			start := time.Now()
			canvas := cloneRGBA(frame.Image)
			overlay.Render(canvas, c.store.Snapshot(), c.palette)

			jpegData, err := encodeJPEG(canvas, c.cfg.JPEGQuality)
			if err != nil {
				logger.Warn("Session", "frame encode: %v", err)
				continue
			}

			c.sink.Publish(jpegData)
			c.metrics.FramesRendered.Add(1)
			c.metrics.UpdateRenderLatency(time.Since(start))
		}
	}
}

// predictLoop fires one prediction cycle per tick. The ticker is not
// request-rate-limited: a cycle that outlives the interval overlaps the next
// one, and the last response to resolve wins the store slot.
func (c *Controller) predictLoop(ctx context.Context, epoch uint64) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PredictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := c.latestFrame()
			if frame == nil {
				continue
			}
			c.metrics.PredictionCycles.Add(1)
			go c.runCycle(frame.Image, epoch)
		}
	}
}

// runCycle performs one capture -> encode -> request -> apply-or-clear pass.
// It deliberately uses its own deadline instead of the session context so a
// request in flight during Stop resolves normally and is then discarded by
// the epoch guard.
func (c *Controller) runCycle(img *image.RGBA, epoch uint64) {
	c.metrics.PredictionInFlight.Add(1)
	defer c.metrics.PredictionInFlight.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	detections, err := c.predictor.Predict(ctx, img)
	c.metrics.UpdatePredictionLatency(time.Since(start))

	if err != nil {
		c.metrics.PredictionFailures.Add(1)
		logger.Warn("Session", "prediction cycle failed: %v", err)
		// Fail-safe: prefer drawing nothing over stale boxes.
		c.store.Clear(epoch)
		return
	}

	if c.store.Replace(epoch, detections) {
		c.metrics.DetectionsShown.Store(uint64(len(detections)))
	}
}

func (c *Controller) setLatest(frame *types.Frame) {
	c.frameMu.Lock()
	c.latest = frame
	c.frameMu.Unlock()
}

func (c *Controller) latestFrame() *types.Frame {
	c.frameMu.RLock()
	defer c.frameMu.RUnlock()
	return c.latest
}

func encodeJPEG(img *image.RGBA, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	pix := make([]byte, len(src.Pix))
	copy(pix, src.Pix)
	return &image.RGBA{Pix: pix, Stride: src.Stride, Rect: src.Rect}
}
