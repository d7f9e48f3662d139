package capture

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/review3/liveness-cam/internal/logger"
	"github.com/review3/liveness-cam/pkg/types"
)

const bytesPerPixel = 4 // RGBA

// FFmpegSource reads the camera through an ffmpeg rawvideo pipe.
type FFmpegSource struct {
	opts Options

	cmd      *exec.Cmd
	frames   chan types.Frame
	errs     chan error
	stop     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Uint64
}

// NewFFmpegSource creates a source for the given device and geometry.
func NewFFmpegSource(opts Options) *FFmpegSource {
	return &FFmpegSource{
		opts:   opts,
		frames: make(chan types.Frame, 1),
		errs:   make(chan error, 1),
		stop:   make(chan struct{}),
	}
}

// Start launches ffmpeg and begins the read loop.
func (s *FFmpegSource) Start() error {
	s.cmd = exec.Command("ffmpeg", s.args()...)

	var stderr bytes.Buffer
	s.cmd.Stderr = &stderr

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("camera acquisition failed for %q: %w (%s)",
			s.opts.Device, err, stderr.String())
	}

	logger.Info("Capture", "ffmpeg capture started: device=%s size=%dx%d fps=%d",
		s.opts.Device, s.opts.Width, s.opts.Height, s.opts.FPS)

	go s.readLoop(stdout)
	return nil
}

func (s *FFmpegSource) args() []string {
	var input []string
	switch runtime.GOOS {
	case "windows":
		input = []string{"-f", "dshow", "-i", fmt.Sprintf("video=%s", s.opts.Device)}
	case "darwin":
		input = []string{"-f", "avfoundation", "-i", s.opts.Device}
	default:
		input = []string{"-f", "v4l2", "-i", s.opts.Device}
	}

	return append(input,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", s.opts.FPS, s.opts.Width, s.opts.Height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	)
}

func (s *FFmpegSource) readLoop(stdout io.ReadCloser) {
	defer close(s.frames)
	defer close(s.errs)
	defer stdout.Close()
	defer s.killProcess()

	frameSize := s.opts.Width * s.opts.Height * bytesPerPixel
	buffer := make([]byte, frameSize)

	var seq uint64
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if _, err := io.ReadFull(stdout, buffer); err != nil {
			select {
			case <-s.stop:
			default:
				s.errs <- fmt.Errorf("camera read: %w", err)
			}
			return
		}

		pix := make([]byte, len(buffer))
		copy(pix, buffer)

		frame := types.Frame{
			Image: &image.RGBA{
				Pix:    pix,
				Stride: s.opts.Width * bytesPerPixel,
				Rect:   image.Rect(0, 0, s.opts.Width, s.opts.Height),
			},
			Timestamp: time.Now(),
			Seq:       seq,
		}
		seq++

		// Drop the frame if the consumer is behind; the pipeline only ever
		// wants the latest one.
		select {
		case s.frames <- frame:
		case <-s.stop:
			return
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *FFmpegSource) killProcess() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
}

// Stop terminates ffmpeg and closes the frame channel.
func (s *FFmpegSource) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.killProcess()
	})
}

// Frames returns the captured frame channel.
func (s *FFmpegSource) Frames() <-chan types.Frame { return s.frames }

// Errors returns the fatal error channel.
func (s *FFmpegSource) Errors() <-chan error { return s.errs }

// Dropped returns the number of frames discarded by the read loop.
func (s *FFmpegSource) Dropped() uint64 { return s.dropped.Load() }
