package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/soupview/display"
)

// ControlResult reports which buttons were pressed this frame.
type ControlResult struct {
	TogglePause bool
	AddPreset   string
}

// ControlsPanel renders option toggles and sliders from the display store's
// descriptors, plus simulation controls.
type ControlsPanel struct {
	renderer *Renderer
	presets  []string
}

// NewControlsPanel creates a controls panel. presets are the species preset
// names offered as add buttons.
func NewControlsPanel(presets []string) *ControlsPanel {
	return &ControlsPanel{renderer: NewRenderer(), presets: presets}
}

// Draw renders the panel starting at y and returns the next free y.
func (c *ControlsPanel) Draw(x, y, width int32, disp *display.Store, paused bool) (int32, ControlResult) {
	var res ControlResult
	r := c.renderer
	pad := r.Theme.Padding
	inner := width - pad*2
	x += pad

	rl.DrawText("Controls", x, y, 16, rl.White)
	y += r.Theme.LineHeight + 4

	label := "Pause"
	if paused {
		label = "Resume"
	}
	if gui.Button(rl.Rectangle{X: float32(x), Y: float32(y), Width: float32(inner), Height: 22}, label+" [Space]") {
		res.TogglePause = true
	}
	y += 28

	for _, category := range disp.Categories() {
		y = r.DrawSectionHeader(x, y, categoryLabel(category))
		for _, d := range disp.ByCategory(category) {
			switch d.Kind {
			case display.KindToggle:
				y = c.drawToggle(x, y, inner, disp, d)
			case display.KindScale:
				y = c.drawSlider(x, y, inner, disp, d)
			}
		}
		y += 4
	}

	if len(c.presets) > 0 {
		y = r.DrawSectionHeader(x, y, "Add Species")
		bw := (inner - 6) / 2
		for i, name := range c.presets {
			bx := x + int32(i%2)*(bw+6)
			if gui.Button(rl.Rectangle{X: float32(bx), Y: float32(y), Width: float32(bw), Height: 20}, name) {
				res.AddPreset = name
			}
			if i%2 == 1 || i == len(c.presets)-1 {
				y += 24
			}
		}
	}
	return y + 4, res
}

func (c *ControlsPanel) drawToggle(x, y, width int32, disp *display.Store, d display.Descriptor) int32 {
	r := c.renderer
	v, _ := disp.Value(d.ID)
	enabled, _ := v.(bool)

	rect := rl.Rectangle{X: float32(x), Y: float32(y), Width: float32(width - 34), Height: 18}
	text := d.Name + ": off"
	if enabled {
		text = d.Name + ": on"
	}
	if gui.Button(rect, text) {
		disp.Toggle(d.ID)
	}
	r.DrawKeyHint(x+width, y+3, d.KeyLabel)
	return y + 22
}

func (c *ControlsPanel) drawSlider(x, y, width int32, disp *display.Store, d display.Descriptor) int32 {
	r := c.renderer
	v, _ := disp.Value(d.ID)
	cur, _ := v.(float64)

	rl.DrawText(fmt.Sprintf("%s: %.1f", d.Name, cur), x, y, r.Theme.FontSize, r.Theme.LabelColor)
	y += r.Theme.LineHeight

	next := gui.SliderBar(
		rl.Rectangle{X: float32(x + 30), Y: float32(y), Width: float32(width - 60), Height: 14},
		fmt.Sprintf("%g", d.Min), fmt.Sprintf("%g", d.Max),
		float32(cur), float32(d.Min), float32(d.Max),
	)
	if next != float32(cur) {
		disp.SetOption(string(d.ID), float64(next))
	}
	return y + 20
}

// categoryLabel returns a display label for a category.
func categoryLabel(cat string) string {
	switch cat {
	case "layers":
		return "Layers"
	case "indicators":
		return "Indicators"
	case "scale":
		return "Scale"
	case "panels":
		return "Panels"
	default:
		return cat
	}
}
