// Package colors provides the stateless colour oracles used by particle
// generation and theming: black-body temperature, stellar spectral classes and
// named palettes.
package colors

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Temperature returns the approximate colour of a black body at the given
// temperature in kelvin. Valid for roughly 1000K..40000K; inputs are clamped.
func Temperature(kelvin float64) colorful.Color {
	k := math.Max(1000, math.Min(40000, kelvin)) / 100

	var r, g, b float64
	if k <= 66 {
		r = 255
		g = 99.4708025861*math.Log(k) - 161.1195681661
	} else {
		r = 329.698727446 * math.Pow(k-60, -0.1332047592)
		g = 288.1221695283 * math.Pow(k-60, -0.0755148492)
	}

	switch {
	case k >= 66:
		b = 255
	case k <= 19:
		b = 0
	default:
		b = 138.5177312231*math.Log(k-10) - 305.0447927307
	}

	return colorful.Color{R: clamp255(r), G: clamp255(g), B: clamp255(b)}
}

func clamp255(v float64) float64 {
	return math.Max(0, math.Min(255, v)) / 255
}

// spectralTemperatures maps Morgan-Keenan classes to representative temperatures.
var spectralTemperatures = map[byte]float64{
	'O': 35000,
	'B': 20000,
	'A': 8500,
	'F': 6500,
	'G': 5600,
	'K': 4400,
	'M': 3200,
}

// SpectralClass returns the colour for a stellar spectral class letter.
// Unknown classes map to the solar G class.
func SpectralClass(code byte) colorful.Color {
	if code >= 'a' && code <= 'z' {
		code -= 'a' - 'A'
	}
	t, ok := spectralTemperatures[code]
	if !ok {
		t = spectralTemperatures['G']
	}
	return Temperature(t)
}

var palettes = map[string][]string{
	"classic": {"#ffffff", "#f4f1ff", "#e0e8ff", "#fff4e0"},
	"cool":    {"#9fc5ff", "#b8d4ff", "#7fa8ff", "#dfe9ff", "#c6b8ff"},
	"warm":    {"#ffd59f", "#ffb38a", "#fff0c8", "#ff9f7a"},
	"nebula":  {"#c59fff", "#ff9fe0", "#7f6bff", "#ff7fb0", "#6bd0ff"},
	"energy":  {"#6affc8", "#6ab4ff", "#ffffff", "#a0ff6a"},
}

// Palette returns a copy of the named palette.
func Palette(name string) ([]colorful.Color, error) {
	hexes, ok := palettes[name]
	if !ok {
		return nil, fmt.Errorf("unknown palette %q", name)
	}
	return ParseHex(hexes)
}

// PaletteNames lists the built-in palettes.
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	return names
}

// ParseHex parses a list of "#rrggbb" strings.
func ParseHex(hexes []string) ([]colorful.Color, error) {
	out := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("colour %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

// Scale multiplies each channel by f and clamps to [0,1].
func Scale(c colorful.Color, f float64) colorful.Color {
	return colorful.Color{
		R: math.Max(0, math.Min(1, c.R*f)),
		G: math.Max(0, math.Min(1, c.G*f)),
		B: math.Max(0, math.Min(1, c.B*f)),
	}
}
