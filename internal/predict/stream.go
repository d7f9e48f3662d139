package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/review3/liveness-cam/internal/logger"
	"github.com/review3/liveness-cam/pkg/types"
)

// StreamClient talks to prediction servers that accept JPEG frames as binary
// websocket messages and answer with JSON detection arrays. The connection is
// dialed lazily and redialed on the next cycle after any failure, so a
// flapping server degrades to failed cycles instead of a stuck loop.
type StreamClient struct {
	url     string
	quality int

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewStreamClient creates a websocket predictor for the given ws/wss URL.
func NewStreamClient(opts Options) *StreamClient {
	return &StreamClient{
		url:     opts.URL,
		quality: opts.JPEGQuality,
	}
}

// Predict sends one frame and waits for the matching detection message.
func (s *StreamClient) Predict(ctx context.Context, frame *image.RGBA) ([]types.Detection, error) {
	jpegData, err := encodeJPEG(frame, s.quality)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.ensureConnLocked(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, jpegData); err != nil {
		s.dropConnLocked()
		return nil, fmt.Errorf("stream write: %w", err)
	}

	_ = conn.SetReadDeadline(deadline)
	_, message, err := conn.ReadMessage()
	if err != nil {
		s.dropConnLocked()
		return nil, fmt.Errorf("stream read: %w", err)
	}

	var detections []types.Detection
	if err := json.Unmarshal(message, &detections); err != nil {
		return nil, fmt.Errorf("decode stream response: %w", err)
	}
	return detections, nil
}

func (s *StreamClient) ensureConnLocked(ctx context.Context) (*websocket.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	logger.Debug("Predict", "dialing detection stream %s", s.url)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("stream dial: %w", err)
	}
	s.conn = conn
	return conn, nil
}

func (s *StreamClient) dropConnLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Close releases the websocket connection, if open.
func (s *StreamClient) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropConnLocked()
}
