package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/soupview/inspector"
	"github.com/pthm-cable/soupview/renderer"
)

// maxSpeciesRows bounds the species list height.
const maxSpeciesRows = 12

// SideData is everything the side panel shows for one frame.
type SideData struct {
	ShowStats bool
	Stats     inspector.Stats
	Species   []inspector.SpeciesRow
	Filter    string // Selected species id, empty for all
	Detail    *inspector.EntityDetail
}

// SideResult reports clicks inside the side panel.
type SideResult struct {
	ToggleSpecies string // Species row clicked
	CloseCard     bool
}

// SidePanel renders statistics, the species list and the entity card.
type SidePanel struct {
	renderer *Renderer
}

// NewSidePanel creates a new side panel.
func NewSidePanel() *SidePanel {
	return &SidePanel{renderer: NewRenderer()}
}

// Draw renders the panel sections from y downwards and returns the clicks
// they received.
func (p *SidePanel) Draw(x, y, width int32, data SideData) SideResult {
	var res SideResult
	r := p.renderer
	pad := r.Theme.Padding
	inner := width - pad*2
	mouse := rl.GetMousePosition()
	clicked := rl.IsMouseButtonPressed(rl.MouseButtonLeft)

	if data.ShowStats {
		y = p.drawStats(x+pad, y, inner, data)
		y += 6
	}

	// Species list
	y = r.DrawSectionHeader(x+pad, y, "Species")
	if len(data.Species) == 0 {
		y = r.DrawText(x+pad, y, "none reported", r.Theme.MutedColor)
	}
	for i, row := range data.Species {
		if i >= maxSpeciesRows {
			y = r.DrawText(x+pad, y, fmt.Sprintf("+%d more", len(data.Species)-i), r.Theme.MutedColor)
			break
		}
		rect := rl.Rectangle{X: float32(x + pad - 2), Y: float32(y - 1), Width: float32(inner + 4), Height: float32(r.Theme.LineHeight)}
		if row.ID == data.Filter {
			rl.DrawRectangleRec(rect, r.Theme.Highlight)
		}
		if clicked && rl.CheckCollisionPointRec(mouse, rect) {
			res.ToggleSpecies = row.ID
		}
		r.DrawColorSwatch(x+pad, y, toRL(renderer.ParseHex(row.Color, renderer.White)))
		name := row.Name
		if name == "" {
			name = row.ID
		}
		rl.DrawText(name, x+pad+16, y, r.Theme.FontSize, r.Theme.ValueColor)
		count := fmt.Sprintf("%d / %d", row.Live, row.Reported)
		w := rl.MeasureText(count, r.Theme.FontSize)
		rl.DrawText(count, x+pad+inner-w, y, r.Theme.FontSize, r.Theme.LabelColor)
		y += r.Theme.LineHeight
	}
	y += 6

	if data.Detail != nil {
		if p.drawCard(x+pad, y, inner, *data.Detail, mouse, clicked) {
			res.CloseCard = true
		}
	}
	return res
}

func (p *SidePanel) drawStats(x, y, width int32, data SideData) int32 {
	r := p.renderer
	title := "Statistics"
	if data.Filter != "" {
		title = "Statistics (filtered)"
	}
	y = r.DrawSectionHeader(x, y, title)

	st := data.Stats
	y = r.DrawLabelValue(x, y, "Count", fmt.Sprintf("%d", st.Count))
	y = r.DrawRatioBar(x, y, "Avg Energy", st.AvgEnergy, false, width)
	y = r.DrawRatioBar(x, y, "Avg Hunger", st.AvgHunger, true, width)
	y = r.DrawLabelValue(x, y, "Children", fmt.Sprintf("%d", st.ChildCount))
	y = r.DrawLabelValue(x, y, "In Groups", fmt.Sprintf("%d (%.1f%%)", st.GroupedCount, st.GroupedPercent))
	return y
}

// drawCard renders the inspected entity and reports whether its close
// button was clicked.
func (p *SidePanel) drawCard(x, y, width int32, d inspector.EntityDetail, mouse rl.Vector2, clicked bool) bool {
	r := p.renderer

	r.DrawColorSwatch(x, y+2, toRL(renderer.ParseHex(d.Color, renderer.White)))
	rl.DrawText(d.Title(), x+16, y, r.Theme.HeaderFontSize, r.Theme.SectionHeader)

	closeRect := rl.Rectangle{X: float32(x + width - 16), Y: float32(y), Width: 16, Height: 16}
	rl.DrawText("x", x+width-12, y, r.Theme.HeaderFontSize, r.Theme.MutedColor)
	y += r.Theme.LineHeight + 2

	y = r.DrawText(x, y, d.ID, r.Theme.MutedColor)
	for _, line := range d.Lines() {
		y = r.DrawText(x, y, line, r.Theme.LabelColor)
	}
	return clicked && rl.CheckCollisionPointRec(mouse, closeRect)
}
