package renderer

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/soupview/display"
	"github.com/pthm-cable/soupview/telemetry"
	"github.com/pthm-cable/soupview/world"
)

const drawn = world.FieldPosition | world.FieldVelocity | world.FieldSize | world.FieldEnergy

func creature(id string, x, y, energy float64) *world.Entity {
	return &world.Entity{
		ID:       id,
		Kind:     world.KindCreature,
		Color:    "#3498DB",
		Position: world.Vec2{X: x, Y: y},
		Velocity: world.Vec2{X: 1},
		Vitals:   world.Vitals{Energy: energy, Size: 3},
		Present:  drawn,
	}
}

func plant(id string, x, y float64) *world.Entity {
	return &world.Entity{
		ID:       id,
		Kind:     world.KindPlant,
		Color:    "#2ECC71",
		Position: world.Vec2{X: x, Y: y},
		Vitals:   world.Vitals{Energy: 50, Size: 2},
		Present:  world.FieldPosition | world.FieldSize | world.FieldEnergy,
	}
}

func snapshot(entities []*world.Entity, groups ...*world.Group) *world.Snapshot {
	b := world.Empty().Edit()
	for _, e := range entities {
		b.PutEntity(e)
	}
	for _, g := range groups {
		b.PutGroup(g)
	}
	return b.Commit(time.Unix(0, 0))
}

func storeWith(t *testing.T, snap *world.Snapshot) *world.Store {
	t.Helper()
	s := world.NewStore()
	_, err := s.Update(func(*world.Snapshot) (*world.Snapshot, error) { return snap, nil })
	require.NoError(t, err)
	return s
}

func indexes(ops []Op, match func(Op) bool) []int {
	var out []int
	for i, op := range ops {
		if match(op) {
			out = append(out, i)
		}
	}
	return out
}

func TestLoopFrameBudget(t *testing.T) {
	store := storeWith(t, snapshot([]*world.Entity{creature("a", 10, 10, 50)}))
	rec := NewRecorder(800, 600)
	loop := NewLoop(store, display.NewStore(display.Defaults()), rec, LoopOptions{TargetFPS: 60})

	t0 := time.Unix(100, 0)
	assert.True(t, loop.Tick(t0), "first frame always draws")
	assert.False(t, loop.Tick(t0.Add(5*time.Millisecond)), "second call inside the budget must not draw")
	assert.False(t, loop.Tick(t0.Add(16*time.Millisecond)))
	assert.True(t, loop.Tick(t0.Add(17*time.Millisecond)))

	st := loop.Stats()
	assert.Equal(t, uint64(2), st.Drawn)
	assert.Equal(t, uint64(2), st.Skipped)
	assert.Equal(t, time.Second/60, loop.Budget())
}

func TestLoopCoalescesUpdates(t *testing.T) {
	store := storeWith(t, snapshot([]*world.Entity{creature("a", 10, 10, 50)}))
	rec := NewRecorder(800, 600)
	loop := NewLoop(store, display.NewStore(display.Options{ParticleScale: 1, GridSize: 20}), rec, LoopOptions{})

	// Two updates land between frames; only the latest is drawn
	for _, x := range []float64{100, 200} {
		_, err := store.Update(func(cur *world.Snapshot) (*world.Snapshot, error) {
			b := cur.Edit()
			b.PutEntity(creature("a", x, 10, 50))
			return b.Commit(time.Now()), nil
		})
		require.NoError(t, err)
	}

	require.True(t, loop.Tick(time.Unix(1, 0)))
	bodies := indexes(rec.Ops(), func(op Op) bool { return op.Kind == OpCircle })
	require.Len(t, bodies, 1)
	assert.Equal(t, 200.0, rec.Ops()[bodies[0]].X)
}

func TestLoopRefitsOnlyOnChange(t *testing.T) {
	store := storeWith(t, snapshot(nil))
	rec := NewRecorder(800, 600)
	loop := NewLoop(store, display.NewStore(display.Defaults()), rec, LoopOptions{})

	t0 := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		loop.Tick(t0.Add(time.Duration(i) * time.Second))
	}
	assert.Equal(t, 1, rec.Transforms, "unchanged container must not reset the transform")
	assert.Zero(t, loop.Stats().Refits)

	rec.W, rec.H = 1600, 600
	loop.Tick(t0.Add(10 * time.Second))
	assert.Equal(t, 2, rec.Transforms)
	assert.Equal(t, uint64(1), loop.Stats().Refits)

	// Aspect ratio preserved: height limits the scale, width letterboxes
	assert.InDelta(t, 1.0, rec.Transform.Scale, 1e-9)
	assert.InDelta(t, 400.0, rec.Transform.OffsetX, 1e-9)
	assert.InDelta(t, 0.0, rec.Transform.OffsetY, 1e-9)
}

func TestFrameLayerOrder(t *testing.T) {
	snap := snapshot(
		[]*world.Entity{creature("a", 10, 10, 50), creature("b", 30, 30, 50), plant("p", 50, 50)},
		world.NewGroup("g", "s", []string{"a", "b"}, nil, ""),
	)
	rec := NewRecorder(800, 600)
	rep := NewFrame(Black, 0.5, nil, nil).Draw(rec, snap, display.Defaults())

	assert.Equal(t, FrameReport{Plants: 1, Creatures: 2, Groups: 1, Links: 1}, rep)

	ops := rec.Ops()
	require.Equal(t, OpClear, ops[0].Kind)

	grid := indexes(ops, func(op Op) bool { return op.Kind == OpLine && op.Dash == 0 && op.Width == gridLineWidth })
	plants := indexes(ops, func(op Op) bool { return op.Kind == OpRoundedRect })
	links := indexes(ops, func(op Op) bool { return op.Kind == OpLine && op.Dash > 0 })
	bodies := indexes(ops, func(op Op) bool { return op.Kind == OpCircle })
	rings := indexes(ops, func(op Op) bool { return op.Kind == OpArc })

	require.NotEmpty(t, grid)
	require.NotEmpty(t, plants)
	require.Len(t, links, 1)
	require.Len(t, bodies, 2)
	require.Len(t, rings, 2)

	assert.Less(t, grid[len(grid)-1], plants[0], "grid under plants")
	assert.Less(t, plants[len(plants)-1], links[0], "plants under links")
	assert.Less(t, links[0], bodies[0], "links under creatures")
	assert.Less(t, bodies[0], rings[0], "energy ring over body")

	// 800/20+1 vertical plus 600/20+1 horizontal
	assert.Len(t, grid, 41+31)

	// Link takes the first member's color at reduced opacity
	link := ops[links[0]]
	assert.Equal(t, Color{0x34, 0x98, 0xDB, 127}, link.Color)
}

func TestFrameLinksSkipDanglingMembers(t *testing.T) {
	snap := snapshot(
		[]*world.Entity{creature("a", 1, 1, 50), creature("b", 2, 2, 50), creature("c", 3, 3, 50)},
		world.NewGroup("g1", "s", []string{"a", "gone", "b", "c", "a"}, nil, ""),
		world.NewGroup("g2", "s", []string{"c", "gone"}, nil, ""),
	)
	rec := NewRecorder(800, 600)
	rep := NewFrame(Black, 1, nil, nil).Draw(rec, snap, display.Options{ShowGroups: true, ParticleScale: 1})

	assert.Equal(t, 3, rep.Links, "three resolvable members give three pairs")
	assert.Equal(t, 1, rep.Groups, "a group with one resolvable member draws nothing")
}

func TestFrameGroupLinksToggle(t *testing.T) {
	snap := snapshot(
		[]*world.Entity{creature("a", 1, 1, 50), creature("b", 2, 2, 50)},
		world.NewGroup("g", "s", []string{"a", "b"}, nil, ""),
	)
	rec := NewRecorder(800, 600)
	rep := NewFrame(Black, 1, nil, nil).Draw(rec, snap, display.Options{ParticleScale: 1})
	assert.Zero(t, rep.Links)
}

func TestFrameSkipsInvalidEntities(t *testing.T) {
	noSize := creature("nosize", 1, 1, 50)
	noSize.Present &^= world.FieldSize

	nan := creature("nan", math.NaN(), 1, 50)

	noEnergy := creature("noenergy", 5, 5, 0)
	noEnergy.Present &^= world.FieldEnergy

	snap := snapshot([]*world.Entity{noSize, nan, noEnergy, plant("p", 1, 1)})
	rec := NewRecorder(800, 600)
	rep := NewFrame(Black, 1, nil, nil).Draw(rec, snap, display.Defaults())

	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 1, rep.Creatures, "missing optional vitals only drop the indicator")
	assert.Equal(t, 1, rep.Plants)
	assert.Zero(t, rec.Count(OpArc))
}

func TestFrameClampsVitalsAtDrawTime(t *testing.T) {
	over := creature("over", 1, 1, 150)
	under := creature("under", 2, 2, -20)
	over.Vitals.Hunger, over.Present = 250, over.Present|world.FieldHunger

	snap := snapshot([]*world.Entity{over, under})
	rec := NewRecorder(800, 600)
	opts := display.Defaults()
	opts.ShowHunger = true
	NewFrame(Black, 1, nil, nil).Draw(rec, snap, opts)

	arcs := indexes(rec.Ops(), func(op Op) bool { return op.Kind == OpArc })
	require.Len(t, arcs, 2, "energy and hunger for over, nothing for a negative ratio")

	energy := rec.Ops()[arcs[0]]
	assert.InDelta(t, 2*math.Pi, energy.End-energy.Start, 1e-9)
	assert.Equal(t, RampColor(1), energy.Color)

	hunger := rec.Ops()[arcs[1]]
	assert.InDelta(t, 2*math.Pi, hunger.End-hunger.Start, 1e-9)
	assert.Equal(t, RampColor(0), hunger.Color, "full hunger is red")
	assert.Greater(t, hunger.R, energy.R)
}

func TestFrameCreatureIndicators(t *testing.T) {
	e := creature("a", 100, 100, 50)
	e.Behavior.VisionRange = 40
	e.Present |= world.FieldVisionRange
	e.Diet = world.DietCarnivore
	e.IsChild = true

	snap := snapshot([]*world.Entity{e})

	rec := NewRecorder(800, 600)
	NewFrame(Black, 1, nil, nil).Draw(rec, snap, display.Options{ParticleScale: 1})
	assert.Equal(t, 1, rec.Count(OpCircle), "body only")
	assert.Equal(t, 1, rec.Count(OpCircleLines), "child ring is always drawn")

	rec = NewRecorder(800, 600)
	NewFrame(Black, 1, nil, nil).Draw(rec, snap, display.Options{ShowVision: true, ShowDiet: true, ParticleScale: 1})

	var vision, diet bool
	for _, op := range rec.Ops() {
		if op.Kind == OpCircleLines && op.R == 40 {
			vision = true
			assert.Equal(t, uint8(0x33), op.Color.A)
		}
		if op.Kind == OpCircle && op.Color == CarnivoreColor {
			diet = true
			assert.Less(t, op.Y, 100.0, "diet dot sits above the body")
		}
	}
	assert.True(t, vision)
	assert.True(t, diet)

	// Direction tick runs from r to 1.5r along velocity
	ticks := indexes(rec.Ops(), func(op Op) bool { return op.Kind == OpLine && op.Color == White })
	require.Len(t, ticks, 1)
	tick := rec.Ops()[ticks[0]]
	assert.InDelta(t, 103, tick.X, 1e-9)
	assert.InDelta(t, 104.5, tick.X2, 1e-9)
}

type panicCanvas struct {
	*Recorder
	at float64
}

func (p panicCanvas) Circle(x, y, r float64, c Color) {
	if x == p.at {
		panic("boom")
	}
	p.Recorder.Circle(x, y, r, c)
}

func TestFrameRecoversPerEntity(t *testing.T) {
	snap := snapshot([]*world.Entity{creature("a", 1, 1, 50), creature("b", 13, 1, 50), creature("c", 3, 1, 50)})
	c := panicCanvas{Recorder: NewRecorder(800, 600), at: 13}

	var rep FrameReport
	require.NotPanics(t, func() {
		rep = NewFrame(Black, 1, nil, nil).Draw(c, snap, display.Defaults())
	})
	assert.Equal(t, 2, rep.Creatures)
	assert.Equal(t, 1, rep.Skipped)
}

func TestPumpSchedulerDrivesLoop(t *testing.T) {
	store := storeWith(t, snapshot([]*world.Entity{creature("a", 1, 1, 50)}))
	perf := telemetry.NewPerfCollector(10)
	pump := NewPumpScheduler()

	var frames int
	loop := NewLoop(store, display.NewStore(display.Defaults()), NewRecorder(800, 600), LoopOptions{
		Perf:    perf,
		OnFrame: func(*world.Snapshot, FrameReport) { frames++ },
	})
	require.NoError(t, loop.Start(pump))

	t0 := time.Unix(0, 0)
	assert.True(t, pump.Pump(t0))
	assert.True(t, pump.Pending(), "each frame schedules the next")
	assert.True(t, pump.Pump(t0.Add(time.Millisecond)))
	assert.True(t, pump.Pump(t0.Add(20*time.Millisecond)))

	assert.Equal(t, 2, frames)
	ps := perf.Stats()
	assert.Equal(t, uint64(2), ps.FramesDrawn)
	assert.Equal(t, uint64(1), ps.FramesSkipped)
	assert.Contains(t, ps.PhaseAvg, telemetry.PhaseCreatures)
}

func TestStopCancelsPendingFrame(t *testing.T) {
	store := storeWith(t, snapshot(nil))
	pump := NewPumpScheduler()
	loop := NewLoop(store, display.NewStore(display.Defaults()), NewRecorder(800, 600), LoopOptions{})

	require.NoError(t, loop.Start(pump))
	require.True(t, pump.Pending())

	loop.Stop()
	loop.Stop()
	assert.False(t, pump.Pending())
	assert.False(t, pump.Pump(time.Now()))
	assert.False(t, loop.Tick(time.Now()), "no draw after stop")
	assert.ErrorIs(t, loop.Start(pump), ErrStopped)
}

func TestTimerSchedulerStops(t *testing.T) {
	store := storeWith(t, snapshot(nil))
	loop := NewLoop(store, display.NewStore(display.Defaults()), NewRecorder(800, 600), LoopOptions{})

	require.NoError(t, loop.Start(NewTimerScheduler(time.Millisecond)))
	require.Eventually(t, func() bool { return loop.Stats().Drawn > 0 }, time.Second, time.Millisecond)

	loop.Stop()
	drawnAtStop := loop.Stats().Drawn
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, drawnAtStop, loop.Stats().Drawn)
}

func TestParseHex(t *testing.T) {
	fallback := Color{1, 2, 3, 4}
	tests := []struct {
		in   string
		want Color
	}{
		{"#3498DB", Color{0x34, 0x98, 0xDB, 255}},
		{"3498db", Color{0x34, 0x98, 0xDB, 255}},
		{"#fff", Color{255, 255, 255, 255}},
		{"#11223344", Color{0x11, 0x22, 0x33, 0x44}},
		{"", fallback},
		{"#12", fallback},
		{"#zzzzzz", fallback},
		{"red", fallback},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseHex(tt.in, fallback))
		})
	}
}

func TestHueRamp(t *testing.T) {
	assert.Equal(t, Color{255, 0, 0, 255}, Hue(0))
	assert.Equal(t, Color{0, 255, 0, 255}, Hue(120))
	assert.Equal(t, Color{0, 0, 255, 255}, Hue(240))
	assert.Equal(t, Hue(0), Hue(360))
	assert.Equal(t, RampColor(1), RampColor(7), "ratio clamps")
	assert.Equal(t, RampColor(0), RampColor(math.NaN()))
	assert.Equal(t, 0.5, Ratio(50))
	assert.Equal(t, uint8(127), White.Fade(0.5).A)
}
