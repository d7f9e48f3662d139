package overlay

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/review3/liveness-cam/pkg/types"
)

func blankCanvas() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 160, 120))
}

func TestRenderEmptyListDrawsNothing(t *testing.T) {
	canvas := blankCanvas()
	before := make([]byte, len(canvas.Pix))
	copy(before, canvas.Pix)

	Render(canvas, nil, DefaultPalette("Original"))
	require.True(t, bytes.Equal(before, canvas.Pix), "empty detection list must not touch the surface")

	Render(canvas, []types.Detection{}, DefaultPalette("Original"))
	require.True(t, bytes.Equal(before, canvas.Pix))
}

func TestRenderIsDeterministic(t *testing.T) {
	detections := []types.Detection{
		{Box: [4]int{10, 30, 40, 50}, Label: "Original", Confidence: 0.97},
		{Box: [4]int{70, 40, 30, 30}, Label: "Fake", Confidence: 0.61},
	}
	palette := DefaultPalette("Original")

	first := blankCanvas()
	Render(first, detections, palette)

	second := blankCanvas()
	Render(second, detections, palette)

	require.True(t, bytes.Equal(first.Pix, second.Pix),
		"rendering the same list onto cleared surfaces must be pixel-identical")
}

func TestRenderAuthenticDetection(t *testing.T) {
	canvas := blankCanvas()
	det := types.Detection{Box: [4]int{10, 30, 30, 40}, Label: "Original", Confidence: 0.97}

	Render(canvas, []types.Detection{det}, DefaultPalette("Original"))

	// Rectangle corners in the authentic color.
	require.Equal(t, Authentic, canvas.RGBAAt(10, 30))
	require.Equal(t, Authentic, canvas.RGBAAt(39, 30))
	require.Equal(t, Authentic, canvas.RGBAAt(10, 69))
	require.Equal(t, Authentic, canvas.RGBAAt(39, 69))

	// Interior stays untouched.
	var zero = canvas.RGBAAt(25, 50)
	require.Zero(t, zero.R)
	require.Zero(t, zero.G)
	require.Zero(t, zero.B)
}

func TestRenderFallbackColorForOtherLabels(t *testing.T) {
	canvas := blankCanvas()
	det := types.Detection{Box: [4]int{20, 40, 30, 30}, Label: "Fake", Confidence: 0.5}

	Render(canvas, []types.Detection{det}, DefaultPalette("Original"))
	require.Equal(t, Suspect, canvas.RGBAAt(20, 40))
}

func TestRenderPaletteIsConfigurable(t *testing.T) {
	palette := DefaultPalette("Live")
	require.Equal(t, Authentic, palette.ColorFor("Live"))
	require.Equal(t, Suspect, palette.ColorFor("Original"))
	require.Equal(t, Suspect, palette.ColorFor("Spoof"))
	require.Equal(t, LabelTextColor, palette.Text)
}

func TestLabelText(t *testing.T) {
	require.Equal(t, "Original: 97%",
		LabelText(types.Detection{Label: "Original", Confidence: 0.97}))
	require.Equal(t, "Fake: 50%",
		LabelText(types.Detection{Label: "Fake", Confidence: 0.504}))
	require.Equal(t, "Fake: 100%",
		LabelText(types.Detection{Label: "Fake", Confidence: 1.0}))
}

func TestLabelDrawnAboveBoxWhenRoom(t *testing.T) {
	canvas := blankCanvas()
	det := types.Detection{Box: [4]int{30, 60, 40, 30}, Label: "Original", Confidence: 0.9}

	Render(canvas, []types.Detection{det}, DefaultPalette("Original"))

	// The label background sits directly above the box top edge.
	require.Equal(t, Authentic, canvas.RGBAAt(32, 55))
}

func TestLabelFallsInsideBoxAtTopEdge(t *testing.T) {
	canvas := blankCanvas()
	det := types.Detection{Box: [4]int{30, 0, 60, 40}, Label: "Original", Confidence: 0.9}

	Render(canvas, []types.Detection{det}, DefaultPalette("Original"))

	// No room above: background fills inside the box, below the border rows.
	require.Equal(t, Authentic, canvas.RGBAAt(32, boxThickness+1))
}
