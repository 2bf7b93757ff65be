package annotate

import (
	"fmt"

	"github.com/mazznoer/csscolorparser"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/color"
)

// defaultStroke is used when a drawing's color specification cannot be
// parsed.
var defaultStroke = color.SimpleColor{R: 0, G: 0, B: 0.9}

// parseColor normalizes a CSS color specification into an RGB triple plus
// opacity.
func parseColor(spec string) (color.SimpleColor, float64, error) {
	c, err := csscolorparser.Parse(spec)
	if err != nil {
		return color.SimpleColor{}, 0, fmt.Errorf("parse color %q: %w", spec, err)
	}
	return color.SimpleColor{
		R: float32(c.R),
		G: float32(c.G),
		B: float32(c.B),
	}, c.A, nil
}

// strokeColor resolves a drawing's color, falling back to the default at
// full opacity on parse failure. ok reports whether the value parsed.
func strokeColor(spec string) (col color.SimpleColor, opacity float64, ok bool) {
	col, opacity, err := parseColor(spec)
	if err != nil {
		return defaultStroke, 1.0, false
	}
	return col, opacity, true
}
