package renderer

import (
	"log/slog"
	"math"

	"github.com/pthm-cable/soupview/display"
	"github.com/pthm-cable/soupview/telemetry"
	"github.com/pthm-cable/soupview/world"
)

// Default fills when an entity carries no parsable color.
var (
	defaultCreatureColor = Color{0xCC, 0xCC, 0xCC, 255}
	defaultPlantColor    = Color{0x2E, 0xCC, 0x71, 255}
)

// Stroke widths in pixels.
const (
	gridLineWidth = 1
	linkWidth     = 1
	tickWidth     = 2
	ringWidth     = 2
	linkDash      = 4
)

// Alphas.
const (
	gridAlpha   = 26   // ~10%
	visionAlpha = 0x33 // 20%
	plantGlow   = 96
)

// FrameReport summarizes one drawn frame.
type FrameReport struct {
	Plants    int
	Creatures int
	Groups    int // Groups with at least one link drawn
	Links     int
	Skipped   int // Entities skipped for missing or invalid data
}

// LogValue implements slog.LogValuer for structured logging.
func (r FrameReport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("plants", r.Plants),
		slog.Int("creatures", r.Creatures),
		slog.Int("groups", r.Groups),
		slog.Int("links", r.Links),
		slog.Int("skipped", r.Skipped),
	)
}

// Frame draws one snapshot: background (grid, plants), then group links,
// then creatures.
type Frame struct {
	Background Color
	LinkAlpha  float64 // Opacity of group links in [0,1]

	perf   *telemetry.PerfCollector
	logger *slog.Logger
}

// NewFrame creates a frame painter. perf may be nil.
func NewFrame(background Color, linkAlpha float64, perf *telemetry.PerfCollector, logger *slog.Logger) *Frame {
	if logger == nil {
		logger = slog.Default()
	}
	return &Frame{
		Background: background,
		LinkAlpha:  clamp01(linkAlpha),
		perf:       perf,
		logger:     logger,
	}
}

func (f *Frame) phase(name string) {
	if f.perf != nil {
		f.perf.StartPhase(name)
	}
}

// Draw paints snap onto c using opts. It never panics on bad entity data;
// offending entities are skipped and counted.
func (f *Frame) Draw(c Canvas, snap *world.Snapshot, opts display.Options) FrameReport {
	var rep FrameReport
	c.Clear(f.Background)

	f.phase(telemetry.PhaseGrid)
	if opts.ShowGrid {
		f.drawGrid(c, snap.Width, snap.Height, opts.GridSize)
	}

	f.phase(telemetry.PhasePlants)
	snap.Entities(func(e *world.Entity) bool {
		if !e.IsPlant() {
			return true
		}
		if f.guard(e, func() { f.drawPlant(c, e, opts) }) {
			rep.Plants++
		} else {
			rep.Skipped++
		}
		return true
	})

	f.phase(telemetry.PhaseLinks)
	if opts.ShowGroups {
		snap.Groups(func(g *world.Group) bool {
			if n := f.drawLinks(c, snap, g); n > 0 {
				rep.Groups++
				rep.Links += n
			}
			return true
		})
	}

	f.phase(telemetry.PhaseCreatures)
	snap.Entities(func(e *world.Entity) bool {
		if e.IsPlant() {
			return true
		}
		if f.guard(e, func() { f.drawCreature(c, e, opts) }) {
			rep.Creatures++
		} else {
			rep.Skipped++
		}
		return true
	})

	return rep
}

// guard runs fn for a drawable entity and recovers from a panic so one bad
// record never aborts the frame.
func (f *Frame) guard(e *world.Entity, fn func()) (ok bool) {
	if !e.Drawable() {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("entity draw failed", "entity", e.ID, "panic", r)
			ok = false
		}
	}()
	fn()
	return true
}

func (f *Frame) drawGrid(c Canvas, w, h, size float64) {
	if !(size > 0) || !(w > 0) || !(h > 0) {
		return
	}
	col := White.WithAlpha(gridAlpha)
	for x := 0.0; x <= w; x += size {
		c.Line(x, 0, x, h, gridLineWidth, 0, col)
	}
	for y := 0.0; y <= h; y += size {
		c.Line(0, y, w, y, gridLineWidth, 0, col)
	}
}

func (f *Frame) drawPlant(c Canvas, e *world.Entity, opts display.Options) {
	r := bodyRadius(e, opts)
	col := ParseHex(e.Color, defaultPlantColor)
	x, y := e.Position.X-r, e.Position.Y-r

	c.RoundedRect(x, y, 2*r, 2*r, 0.3, col)

	if opts.ShowEnergy && e.Has(world.FieldEnergy) {
		glow := White.WithAlpha(uint8(plantGlow * Ratio(e.Vitals.Energy)))
		c.RoundedRect(x, y, 2*r, 2*r, 0.3, glow)
	}
}

// drawLinks draws dashed lines between every pair of resolvable members and
// returns the number of lines drawn.
func (f *Frame) drawLinks(c Canvas, snap *world.Snapshot, g *world.Group) int {
	members := g.Resolve(snap)
	drawable := make([]*world.Entity, 0, len(members))
	for _, m := range members {
		if m.Drawable() {
			drawable = append(drawable, m)
		}
	}
	if len(drawable) < 2 {
		return 0
	}

	col := ParseHex(drawable[0].Color, defaultCreatureColor).Fade(f.LinkAlpha)
	n := 0
	for i := 0; i < len(drawable); i++ {
		a := drawable[i].Position
		for j := i + 1; j < len(drawable); j++ {
			b := drawable[j].Position
			c.Line(a.X, a.Y, b.X, b.Y, linkWidth, linkDash, col)
			n++
		}
	}
	return n
}

func (f *Frame) drawCreature(c Canvas, e *world.Entity, opts display.Options) {
	r := bodyRadius(e, opts)
	x, y := e.Position.X, e.Position.Y
	col := ParseHex(e.Color, defaultCreatureColor)

	if opts.ShowVision && e.Has(world.FieldVisionRange) {
		if vr := e.Behavior.VisionRange; vr > 0 && !math.IsInf(vr, 0) {
			c.CircleLines(x, y, vr, 1, col.WithAlpha(visionAlpha))
		}
	}

	c.Circle(x, y, r, col)

	// Direction tick along velocity
	if e.Has(world.FieldVelocity) && e.Velocity.Len() > 0 {
		a := e.Velocity.Angle()
		cos, sin := math.Cos(a), math.Sin(a)
		c.Line(x+cos*r, y+sin*r, x+cos*r*1.5, y+sin*r*1.5, tickWidth, 0, White)
	}

	if opts.ShowEnergy && e.Has(world.FieldEnergy) {
		ratio := Ratio(e.Vitals.Energy)
		drawRing(c, x, y, r*1.5, ratio, RampColor(ratio))
	}

	if opts.ShowHunger && e.Has(world.FieldHunger) {
		ratio := Ratio(e.Vitals.Hunger)
		drawRing(c, x, y, r*1.8, ratio, RampColor(1-ratio))
	}

	if e.IsChild {
		c.CircleLines(x, y, r*1.2, 1, Yellow)
	}

	if opts.ShowDiet {
		if dc, ok := dietColor(e.Diet); ok {
			c.Circle(x, y-r*1.5-1, math.Max(r*0.3, 1), dc)
		}
	}
}

// drawRing strokes an arc starting at 12 o'clock whose length is ratio of a
// full turn.
func drawRing(c Canvas, x, y, r, ratio float64, col Color) {
	if ratio <= 0 {
		return
	}
	start := -math.Pi / 2
	c.Arc(x, y, r, ringWidth, start, start+ratio*2*math.Pi, col)
}

func bodyRadius(e *world.Entity, opts display.Options) float64 {
	return math.Max(e.Vitals.Size, 0) * opts.ParticleScale
}

func dietColor(d world.Diet) (Color, bool) {
	switch d {
	case world.DietHerbivore:
		return HerbivoreColor, true
	case world.DietCarnivore:
		return CarnivoreColor, true
	case world.DietOmnivore:
		return OmnivoreColor, true
	}
	return Color{}, false
}
