// Package ui draws the viewer's screen-space overlay: the HUD, the side
// panel with statistics, species and the inspected entity, and the controls
// that adjust display options.
package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/soupview/renderer"
)

// PanelWidth is the width of the right-hand side panel. The world canvas is
// inset by this amount.
const PanelWidth = 280

// Theme holds UI styling constants.
type Theme struct {
	PanelBg        rl.Color
	PanelBorder    rl.Color
	SectionHeader  rl.Color
	LabelColor     rl.Color
	ValueColor     rl.Color
	MutedColor     rl.Color
	BarBg          rl.Color
	Highlight      rl.Color
	Padding        int32
	LineHeight     int32
	LabelWidth     int32
	BarHeight      int32
	FontSize       int32
	HeaderFontSize int32
}

// DefaultTheme returns the default UI theme.
func DefaultTheme() Theme {
	return Theme{
		PanelBg:        rl.Color{R: 20, G: 25, B: 30, A: 240},
		PanelBorder:    rl.Color{R: 60, G: 70, B: 80, A: 255},
		SectionHeader:  rl.Yellow,
		LabelColor:     rl.LightGray,
		ValueColor:     rl.White,
		MutedColor:     rl.Color{R: 150, G: 150, B: 150, A: 255},
		BarBg:          rl.Color{R: 40, G: 40, B: 40, A: 255},
		Highlight:      rl.Color{R: 52, G: 152, B: 219, A: 90},
		Padding:        10,
		LineHeight:     16,
		LabelWidth:     90,
		BarHeight:      10,
		FontSize:       12,
		HeaderFontSize: 14,
	}
}

// toRL converts a renderer color to a raylib color.
func toRL(c renderer.Color) rl.Color {
	return rl.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}
