// Package overlay draws detection boxes and labels onto RGBA frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/review3/liveness-cam/pkg/types"
)

const (
	boxThickness = 3
	labelPadX    = 4
	labelPadY    = 3
)

var labelFace = basicfont.Face7x13

// Render draws every detection onto img: the bounding rectangle in the
// palette color for its label, a filled label background sized to the text
// plus padding (above the box when there is room, otherwise inside it), and
// the label text "<label>: <confidence>%". An empty list draws nothing.
// Rendering is deterministic; drawing the same list twice onto cleared
// surfaces produces identical pixels.
func Render(img *image.RGBA, detections []types.Detection, palette Palette) {
	for _, det := range detections {
		col := palette.ColorFor(det.Label)
		rect := det.Rect()

		drawBox(img, rect, col)
		drawLabel(img, rect, LabelText(det), col, palette.Text)
	}
}

// LabelText is the rendered caption for a detection: label plus confidence
// rounded to a whole percent.
func LabelText(det types.Detection) string {
	return fmt.Sprintf("%s: %d%%", det.Label, int(math.Round(det.Confidence*100)))
}

func drawBox(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	bounds := img.Bounds()

	set := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.SetRGBA(x, y, col)
		}
	}

	for t := 0; t < boxThickness; t++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			set(x, rect.Min.Y+t)
			set(x, rect.Max.Y-1-t)
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			set(rect.Min.X+t, y)
			set(rect.Max.X-1-t, y)
		}
	}
}

func drawLabel(img *image.RGBA, box image.Rectangle, text string, bg, fg color.RGBA) {
	textWidth := font.MeasureString(labelFace, text).Ceil()
	labelW := textWidth + 2*labelPadX
	labelH := labelFace.Metrics().Height.Ceil() + 2*labelPadY

	// Above the box when there is room, otherwise inside its top edge.
	labelY := box.Min.Y - labelH
	if labelY < img.Bounds().Min.Y {
		labelY = box.Min.Y + boxThickness
	}

	labelRect := image.Rect(box.Min.X, labelY, box.Min.X+labelW, labelY+labelH)
	labelRect = labelRect.Intersect(img.Bounds())
	if labelRect.Empty() {
		return
	}
	draw.Draw(img, labelRect, &image.Uniform{C: bg}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: fg},
		Face: labelFace,
		Dot: fixed.Point26_6{
			X: fixed.I(box.Min.X + labelPadX),
			Y: fixed.I(labelY + labelPadY + labelFace.Metrics().Ascent.Ceil()),
		},
	}
	drawer.DrawString(text)
}
