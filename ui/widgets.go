package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/soupview/renderer"
)

// Renderer handles all UI drawing with consistent styling.
type Renderer struct {
	Theme Theme
}

// NewRenderer creates a renderer with the default theme.
func NewRenderer() *Renderer {
	return &Renderer{Theme: DefaultTheme()}
}

// DrawPanel draws a panel background with border.
func (r *Renderer) DrawPanel(x, y, width, height int32) {
	rl.DrawRectangle(x, y, width, height, r.Theme.PanelBg)
	rl.DrawRectangleLines(x, y, width, height, r.Theme.PanelBorder)
}

// DrawSectionHeader draws a section header and returns the new Y position.
func (r *Renderer) DrawSectionHeader(x, y int32, title string) int32 {
	rl.DrawText(title, x, y, r.Theme.HeaderFontSize, r.Theme.SectionHeader)
	return y + r.Theme.LineHeight + 2
}

// DrawText draws a plain line and returns the new Y position.
func (r *Renderer) DrawText(x, y int32, text string, color rl.Color) int32 {
	rl.DrawText(text, x, y, r.Theme.FontSize, color)
	return y + r.Theme.LineHeight
}

// DrawLabelValue draws a label and value on the same line.
func (r *Renderer) DrawLabelValue(x, y int32, label, value string) int32 {
	rl.DrawText(label+":", x, y, r.Theme.FontSize, r.Theme.LabelColor)
	rl.DrawText(value, x+r.Theme.LabelWidth, y, r.Theme.FontSize, r.Theme.ValueColor)
	return y + r.Theme.LineHeight
}

// DrawRatioBar draws a 0-100 value as a bar colored on the red to green
// ramp. Inverted bars treat low values as good.
func (r *Renderer) DrawRatioBar(x, y int32, label string, value float64, inverted bool, width int32) int32 {
	ratio := renderer.Ratio(value)
	ramp := ratio
	if inverted {
		ramp = 1 - ratio
	}

	barX := x + r.Theme.LabelWidth
	barWidth := width - r.Theme.LabelWidth - 40

	rl.DrawText(label+":", x, y, r.Theme.FontSize, r.Theme.LabelColor)
	rl.DrawRectangle(barX, y+2, barWidth, r.Theme.BarHeight, r.Theme.BarBg)
	rl.DrawRectangle(barX, y+2, int32(float64(barWidth)*ratio), r.Theme.BarHeight, toRL(renderer.RampColor(ramp)))
	rl.DrawText(fmt.Sprintf("%.1f", value), barX+barWidth+5, y, r.Theme.FontSize, r.Theme.ValueColor)

	return y + r.Theme.LineHeight + 2
}

// DrawColorSwatch draws a small filled square.
func (r *Renderer) DrawColorSwatch(x, y int32, color rl.Color) {
	rl.DrawRectangle(x, y+1, 10, 10, color)
	rl.DrawRectangleLines(x, y+1, 10, 10, r.Theme.PanelBorder)
}

// DrawKeyHint draws a right-aligned key label like "[G]".
func (r *Renderer) DrawKeyHint(right, y int32, key string) {
	if key == "" {
		return
	}
	text := fmt.Sprintf("[%s]", key)
	w := rl.MeasureText(text, r.Theme.FontSize)
	rl.DrawText(text, right-w, y, r.Theme.FontSize, r.Theme.MutedColor)
}
