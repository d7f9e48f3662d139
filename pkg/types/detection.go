package types

import (
	"image"
	"time"
)

// Detection is one predicted bounding box returned by the prediction service.
// The JSON shape matches the service response: box is [x, y, w, h] in pixel
// coordinates of the submitted frame, confidence is in [0, 1].
type Detection struct {
	Box        [4]int  `json:"box"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Rect returns the bounding box as an image.Rectangle.
func (d Detection) Rect() image.Rectangle {
	return image.Rect(d.Box[0], d.Box[1], d.Box[0]+d.Box[2], d.Box[1]+d.Box[3])
}

// Frame is a single captured camera frame with metadata.
type Frame struct {
	Image     *image.RGBA // RGBA pixel data at native capture resolution
	Timestamp time.Time   // capture timestamp
	Seq       uint64      // sequential frame number
}
