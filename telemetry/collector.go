package telemetry

import (
	"time"

	"github.com/pthm-cable/soupview/world"
)

// Counters are cumulative totals sampled at each flush.
type Counters struct {
	PatchesApplied  uint64
	PatchesRejected uint64
	PatchesEmpty    uint64
	Resyncs         uint64
	FramesDrawn     uint64
	FramesSkipped   uint64
}

func (c Counters) sub(o Counters) Counters {
	return Counters{
		PatchesApplied:  c.PatchesApplied - o.PatchesApplied,
		PatchesRejected: c.PatchesRejected - o.PatchesRejected,
		PatchesEmpty:    c.PatchesEmpty - o.PatchesEmpty,
		Resyncs:         c.Resyncs - o.Resyncs,
		FramesDrawn:     c.FramesDrawn - o.FramesDrawn,
		FramesSkipped:   c.FramesSkipped - o.FramesSkipped,
	}
}

// Collector turns cumulative counters and world snapshots into per-window
// stats.
type Collector struct {
	window      time.Duration
	windowStart time.Time
	base        Counters
}

// NewCollector creates a collector whose first window starts at start.
// window: how long each stats window lasts in wall time.
func NewCollector(window time.Duration, start time.Time) *Collector {
	if window <= 0 {
		window = 10 * time.Second
	}
	return &Collector{window: window, windowStart: start}
}

// Window returns the window length.
func (c *Collector) Window() time.Duration { return c.window }

// ShouldFlush returns true if the current window has elapsed.
func (c *Collector) ShouldFlush(now time.Time) bool {
	return now.Sub(c.windowStart) >= c.window
}

// Flush produces a WindowStats from the snapshot at window end and the
// counter deltas since the last flush, then starts the next window.
func (c *Collector) Flush(now time.Time, snap *world.Snapshot, totals Counters, state string) WindowStats {
	delta := totals.sub(c.base)
	elapsed := now.Sub(c.windowStart).Seconds()

	st := WindowStats{
		WindowStartMS: c.windowStart.UnixMilli(),
		WindowEndMS:   now.UnixMilli(),
		WindowSec:     elapsed,
		State:         state,

		Tick:     snap.Tick,
		Entities: snap.NumEntities(),
		Species:  snap.NumSpecies(),
		Groups:   snap.NumGroups(),

		PatchesApplied:  delta.PatchesApplied,
		PatchesRejected: delta.PatchesRejected,
		PatchesEmpty:    delta.PatchesEmpty,
		Resyncs:         delta.Resyncs,
		FramesDrawn:     delta.FramesDrawn,
		FramesSkipped:   delta.FramesSkipped,
	}
	if elapsed > 0 {
		st.PatchesPerSec = float64(delta.PatchesApplied) / elapsed
		st.FramesPerSec = float64(delta.FramesDrawn) / elapsed
	}

	var energy, hunger []float64
	snap.Entities(func(e *world.Entity) bool {
		if e.IsChild {
			st.Children++
		}
		if e.InGroup() {
			st.Grouped++
		}
		if e.IsPlant() {
			st.Plants++
			return true
		}
		st.Creatures++
		if e.Has(world.FieldEnergy) {
			energy = append(energy, e.Vitals.Energy)
		}
		if e.Has(world.FieldHunger) {
			hunger = append(hunger, e.Vitals.Hunger)
		}
		return true
	})
	st.EnergyMean, st.EnergyP10, st.EnergyP50, st.EnergyP90 = ComputeDistribution(energy)
	st.HungerMean, st.HungerP10, st.HungerP50, st.HungerP90 = ComputeDistribution(hunger)

	c.windowStart = now
	c.base = totals
	return st
}
