package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/soupview/display"
)

// panStep is the arrow key pan distance per frame in screen pixels.
const panStep = 8

// Intent is the input gathered during one frame.
type Intent struct {
	TogglePause bool
	Fullscreen  bool

	PanX, PanY  float64 // Screen pixels
	Zoom        float64 // Factor, 1 for none
	ResetCamera bool

	Select           bool
	SelectX, SelectY float64 // Screen position of a click in the world area
	Deselect         bool
}

type binding struct {
	key int32
	id  display.OptionID
}

// Input maps keyboard and mouse state to display changes and intents.
type Input struct {
	bindings []binding
}

// NewInput binds each option that carries a single-letter key label.
func NewInput(disp *display.Store) *Input {
	in := &Input{}
	for _, d := range disp.All() {
		if key, ok := keyForLabel(d.KeyLabel); ok && d.Kind == display.KindToggle {
			in.bindings = append(in.bindings, binding{key: key, id: d.ID})
		}
	}
	return in
}

func keyForLabel(label string) (int32, bool) {
	if len(label) != 1 || label[0] < 'A' || label[0] > 'Z' {
		return 0, false
	}
	return rl.KeyA + int32(label[0]-'A'), true
}

// Poll reads input for this frame. Option toggles and scale steps are applied
// to disp directly. Clicks right of worldRight belong to the side panel.
func (in *Input) Poll(disp *display.Store, worldRight float32) Intent {
	it := Intent{Zoom: 1}

	if rl.IsKeyPressed(rl.KeyF11) {
		it.Fullscreen = true
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		it.TogglePause = true
	}

	for _, b := range in.bindings {
		if rl.IsKeyPressed(b.key) {
			disp.Toggle(b.id)
		}
	}

	// Scale steps with [ ] and , .
	if rl.IsKeyPressed(rl.KeyLeftBracket) {
		disp.Step(display.OptionParticleScale, -1)
	}
	if rl.IsKeyPressed(rl.KeyRightBracket) {
		disp.Step(display.OptionParticleScale, 1)
	}
	if rl.IsKeyPressed(rl.KeyComma) {
		disp.Step(display.OptionGridSize, -1)
	}
	if rl.IsKeyPressed(rl.KeyPeriod) {
		disp.Step(display.OptionGridSize, 1)
	}

	// Camera
	if rl.IsKeyDown(rl.KeyRight) {
		it.PanX += panStep
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		it.PanX -= panStep
	}
	if rl.IsKeyDown(rl.KeyDown) {
		it.PanY += panStep
	}
	if rl.IsKeyDown(rl.KeyUp) {
		it.PanY -= panStep
	}
	if rl.IsMouseButtonDown(rl.MouseButtonMiddle) {
		d := rl.GetMouseDelta()
		it.PanX -= float64(d.X)
		it.PanY -= float64(d.Y)
	}
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		it.Zoom *= 1 + float64(wheel)*0.1
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		it.Zoom *= 1.25
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		it.Zoom *= 0.8
	}
	if rl.IsKeyPressed(rl.KeyHome) {
		it.ResetCamera = true
	}

	// Selection
	if rl.IsMouseButtonPressed(rl.MouseButtonRight) || rl.IsKeyPressed(rl.KeyEscape) {
		it.Deselect = true
	}
	if rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		m := rl.GetMousePosition()
		if m.X < worldRight {
			it.Select = true
			it.SelectX, it.SelectY = float64(m.X), float64(m.Y)
		}
	}
	return it
}
