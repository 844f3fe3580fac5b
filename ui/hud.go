package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/soupview/transport"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title     string
	Tick      int64
	Creatures int
	Plants    int
	Species   int
	Groups    int
	FPS       int32
	State     transport.State
	Paused    bool
	Rejected  uint64
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// stateColor maps a connection state to its indicator color.
func stateColor(st transport.State) rl.Color {
	switch st {
	case transport.StateConnected:
		return rl.Green
	case transport.StateConnecting:
		return rl.Yellow
	case transport.StateError:
		return rl.Red
	}
	return rl.Gray
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	// Connection indicator
	rl.DrawCircle(16, 44, 5, stateColor(data.State))
	rl.DrawText(data.State.String(), 26, 37, 14, rl.LightGray)

	rl.DrawText(
		fmt.Sprintf("Creatures: %d | Plants: %d | Species: %d | Groups: %d",
			data.Creatures, data.Plants, data.Species, data.Groups),
		10, 57, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("Tick: %d | FPS: %d", data.Tick, data.FPS),
		10, 77, 16, rl.LightGray,
	)
	if data.Rejected > 0 {
		rl.DrawText(fmt.Sprintf("Rejected patches: %d", data.Rejected), 10, 97, 14, rl.Orange)
	}

	if data.Paused {
		rl.DrawText("PAUSED", 10, 115, 16, rl.Yellow)
	}
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}
