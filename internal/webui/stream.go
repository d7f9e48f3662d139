package webui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/review3/liveness-cam/internal/capture"
	"github.com/review3/liveness-cam/internal/logger"
)

var (
	blankOnce sync.Once
	blankData []byte
)

// blankJPEG is the picture shown when no session is publishing frames.
func blankJPEG() []byte {
	blankOnce.Do(func() {
		var buf bytes.Buffer
		img := capture.ColorBars(640, 480)
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err == nil {
			blankData = buf.Bytes()
		}
	})
	return blankData
}

// streamMJPEG writes frames from the channel as multipart/x-mixed-replace
// until the client disconnects or the channel closes.
func streamMJPEG(w http.ResponseWriter, r *http.Request, frameCh <-chan []byte) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	for {
		var jpegData []byte
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-frameCh:
			if !ok {
				return
			}
			if data != nil {
				jpegData = data
			} else {
				jpegData = blankJPEG()
			}
		case <-time.After(5 * time.Second):
			// No frame for 5 seconds, send blank to keep the connection alive
			jpegData = blankJPEG()
		}

		if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
			logger.Debug("MJPEG", "client disconnected: %v", err)
			return
		}
		if _, err := w.Write(jpegData); err != nil {
			logger.Debug("MJPEG", "client disconnected during frame write: %v", err)
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
