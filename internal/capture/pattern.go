package capture

import (
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/review3/liveness-cam/pkg/types"
)

// Color bars: White, Yellow, Cyan, Green, Magenta, Red, Blue, Black
var barColors = []color.RGBA{
	{R: 255, G: 255, B: 255, A: 255},
	{R: 255, G: 255, B: 0, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 0, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 255, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 255, A: 255},
	{R: 0, G: 0, B: 0, A: 255},
}

// PatternSource generates color-bar frames at a fixed rate. It stands in for
// a real camera in tests and on machines without a capture device.
type PatternSource struct {
	width  int
	height int
	fps    int

	frames   chan types.Frame
	errs     chan error
	stop     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Uint64
}

// NewPatternSource creates a synthetic source with the given geometry.
func NewPatternSource(width, height, fps int) *PatternSource {
	if fps <= 0 {
		fps = 30
	}
	return &PatternSource{
		width:  width,
		height: height,
		fps:    fps,
		frames: make(chan types.Frame, 1),
		errs:   make(chan error, 1),
		stop:   make(chan struct{}),
	}
}

// Start begins generating frames.
func (s *PatternSource) Start() error {
	go s.run()
	return nil
}

func (s *PatternSource) run() {
	defer close(s.frames)
	defer close(s.errs)

	ticker := time.NewTicker(time.Second / time.Duration(s.fps))
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			frame := types.Frame{
				Image:     ColorBars(s.width, s.height),
				Timestamp: time.Now(),
				Seq:       seq,
			}
			seq++

			select {
			case s.frames <- frame:
			case <-s.stop:
				return
			default:
				s.dropped.Add(1)
			}
		}
	}
}

// Stop halts frame generation. Idempotent.
func (s *PatternSource) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Frames returns the generated frame channel.
func (s *PatternSource) Frames() <-chan types.Frame { return s.frames }

// Errors returns the error channel. The pattern source never fails.
func (s *PatternSource) Errors() <-chan error { return s.errs }

// Dropped returns the number of frames discarded by the generator.
func (s *PatternSource) Dropped() uint64 { return s.dropped.Load() }

// ColorBars renders a standard color-bar image of the given size.
func ColorBars(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	barWidth := width / len(barColors)
	if barWidth == 0 {
		barWidth = 1
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := x / barWidth
			if idx >= len(barColors) {
				idx = len(barColors) - 1
			}
			img.SetRGBA(x, y, barColors[idx])
		}
	}
	return img
}
