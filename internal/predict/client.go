package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/review3/liveness-cam/pkg/types"
)

// predictRequest is the JSON body sent to the prediction endpoint.
type predictRequest struct {
	Image string `json:"image"`
}

// Client posts single frames to the prediction service over HTTP.
type Client struct {
	url     string
	quality int
	http    *http.Client
}

// NewClient creates an HTTP predictor for the given endpoint. The per-request
// deadline comes from the caller's context.
func NewClient(opts Options) *Client {
	return &Client{
		url:     opts.URL,
		quality: opts.JPEGQuality,
		http:    &http.Client{},
	}
}

// Predict encodes the frame as a base64 JPEG data URI, posts it as
// {"image": "<data uri>"} and decodes the JSON detection array from the
// response. Any non-2xx status is a failure regardless of body content.
func (c *Client) Predict(ctx context.Context, frame *image.RGBA) ([]types.Detection, error) {
	jpegData, err := encodeJPEG(frame, c.quality)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(predictRequest{Image: dataURI(jpegData)})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("predict status %d", resp.StatusCode)
	}

	var detections []types.Detection
	if err := json.NewDecoder(resp.Body).Decode(&detections); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return detections, nil
}
