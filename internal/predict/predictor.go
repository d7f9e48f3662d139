// Package predict talks to the remote liveness-prediction service and holds
// the latest detection list for the render pipeline.
package predict

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"net/url"

	"github.com/review3/liveness-cam/pkg/types"
)

// Predictor submits one frame and returns the detections found in it.
type Predictor interface {
	Predict(ctx context.Context, frame *image.RGBA) ([]types.Detection, error)
}

// Options configure a predictor transport.
type Options struct {
	URL         string
	JPEGQuality int
}

// New selects the transport by URL scheme: ws/wss streams frames over a
// websocket, anything else posts JSON to the HTTP endpoint.
func New(opts Options) (Predictor, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse predict URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return NewStreamClient(opts), nil
	case "http", "https":
		return NewClient(opts), nil
	default:
		return nil, fmt.Errorf("unsupported predict URL scheme %q", u.Scheme)
	}
}

// encodeJPEG compresses a frame for transport.
func encodeJPEG(img *image.RGBA, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// dataURI wraps JPEG bytes in the data-URI form the prediction service
// expects in its JSON body.
func dataURI(jpegData []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
}
