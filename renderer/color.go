package renderer

import (
	"math"
	"strconv"
	"strings"
)

// Color is an 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

// Common colors.
var (
	Black  = Color{0, 0, 0, 255}
	White  = Color{255, 255, 255, 255}
	Yellow = Color{255, 255, 0, 255}
)

// Diet marker colors.
var (
	HerbivoreColor = Color{0x2E, 0xCC, 0x71, 255}
	CarnivoreColor = Color{0xE7, 0x4C, 0x3C, 255}
	OmnivoreColor  = Color{0x9B, 0x59, 0xB6, 255}
)

// ParseHex parses "#RGB", "#RRGGBB" or "#RRGGBBAA". Anything else returns
// fallback.
func ParseHex(s string, fallback Color) Color {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]}) + "ff"
	case 6:
		s += "ff"
	case 8:
	default:
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallback
	}
	return Color{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}
}

// WithAlpha returns c with alpha replaced.
func (c Color) WithAlpha(a uint8) Color {
	c.A = a
	return c
}

// Fade scales alpha by f in [0,1].
func (c Color) Fade(f float64) Color {
	c.A = uint8(float64(c.A) * clamp01(f))
	return c
}

// Hue returns the fully saturated, half-lightness color at hue h degrees.
func Hue(h float64) Color {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	x := 1 - math.Abs(math.Mod(h/60, 2)-1)
	var r, g, b float64
	switch {
	case h < 60:
		r, g = 1, x
	case h < 120:
		r, g = x, 1
	case h < 180:
		g, b = 1, x
	case h < 240:
		g, b = x, 1
	case h < 300:
		r, b = x, 1
	default:
		r, b = 1, x
	}
	return Color{uint8(math.Round(r * 255)), uint8(math.Round(g * 255)), uint8(math.Round(b * 255)), 255}
}

// RampColor maps a ratio in [0,1] from red (0) to green (1).
func RampColor(ratio float64) Color {
	return Hue(clamp01(ratio) * 120)
}

// clamp01 clamps to [0,1]; NaN becomes 0.
func clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Ratio converts a nominal 0-100 vital to a clamped ratio.
func Ratio(v float64) float64 {
	return clamp01(v / 100)
}
