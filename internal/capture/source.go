// Package capture acquires raw video frames from a local camera device.
//
// Frames are decoded to RGBA by an ffmpeg rawvideo pipe so the rest of the
// pipeline never deals with device formats. A synthetic test-pattern source
// stands in when no camera is available.
package capture

import "github.com/review3/liveness-cam/pkg/types"

// Source delivers camera frames until stopped.
type Source interface {
	// Start begins frame delivery. Acquisition failures (missing device,
	// permission denied) are returned here, before any frame is produced.
	Start() error

	// Stop releases the device and closes the frame channel. Idempotent.
	Stop()

	// Frames returns the channel of captured frames. Closed after Stop or
	// on a fatal read error.
	Frames() <-chan types.Frame

	// Errors reports a fatal capture error, if any.
	Errors() <-chan error

	// Dropped returns the number of frames discarded because the consumer
	// was behind.
	Dropped() uint64
}

// Options describe the requested capture geometry and rate.
type Options struct {
	Device string
	Width  int
	Height int
	FPS    int
}

// New returns a source for the configured device. The reserved device name
// "test" selects the synthetic pattern source.
func New(opts Options) Source {
	if opts.Device == "test" {
		return NewPatternSource(opts.Width, opts.Height, opts.FPS)
	}
	return NewFFmpegSource(opts)
}
