package overlay

import "image/color"

// Palette maps detection labels to box colors. Labels without an entry fall
// back to Fallback, so new label classes never require a code change.
type Palette struct {
	Colors   map[string]color.RGBA
	Fallback color.RGBA
	Text     color.RGBA
}

var (
	// Authentic is the box color for the designated genuine label.
	Authentic = color.RGBA{R: 0, G: 200, B: 83, A: 255}
	// Suspect is the box color for every other label.
	Suspect = color.RGBA{R: 229, G: 57, B: 53, A: 255}
	// LabelTextColor is the contrasting fixed color for label text.
	LabelTextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// DefaultPalette returns the two-class rule: the authentic label gets the
// authentic color, everything else gets the suspect color.
func DefaultPalette(authenticLabel string) Palette {
	return Palette{
		Colors:   map[string]color.RGBA{authenticLabel: Authentic},
		Fallback: Suspect,
		Text:     LabelTextColor,
	}
}

// ColorFor returns the box color for a label.
func (p Palette) ColorFor(label string) color.RGBA {
	if c, ok := p.Colors[label]; ok {
		return c
	}
	return p.Fallback
}
