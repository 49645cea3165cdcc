package annotate

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// paletteHex is the fixed box color order. Changing it breaks visual
// regression baselines.
var paletteHex = []string{
	"#FF6B6B", // red
	"#4ECDC4", // turquoise
	"#45B7D1", // blue
	"#96CEB4", // light green
	"#FFEAA7", // yellow
	"#DDA0DD", // plum
	"#98D8C8", // mint
	"#F7DC6F", // gold
	"#BB8FCE", // lavender
	"#85C1E9", // sky blue
}

// Palette holds the box colors in assignment order.
var Palette = mustParsePalette(paletteHex)

// LabelTextColor is the numeral color drawn on every label background.
var LabelTextColor = color.RGBA{255, 255, 255, 255}

// ColorFor returns the palette color for a 1-based detection number.
// Colors repeat every len(Palette) numbers.
func ColorFor(number int) color.RGBA {
	n := len(Palette)
	i := (number - 1) % n
	if i < 0 {
		i += n
	}
	return Palette[i]
}

func mustParsePalette(hexes []string) []color.RGBA {
	out := make([]color.RGBA, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(fmt.Sprintf("annotate: bad palette color %q: %v", h, err))
		}
		r, g, b := c.RGB255()
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}
