// Package inspector derives read-only summaries from a world snapshot:
// population statistics, per-entity detail, picking and selection.
package inspector

import (
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/soupview/world"
)

// Stats summarizes a set of entities.
type Stats struct {
	SpeciesID      string // Empty for the whole world
	Count          int
	AvgEnergy      float64
	AvgHunger      float64
	ChildCount     int
	GroupedCount   int
	GroupedPercent float64
}

// Compute summarizes every entity in snap, or only those of speciesID when it
// is non-empty. Averages cover entities that reported the vital; all
// averages are 0 for an empty set.
func Compute(snap *world.Snapshot, speciesID string) Stats {
	st := Stats{SpeciesID: speciesID}
	var energy, hunger []float64

	snap.Entities(func(e *world.Entity) bool {
		if speciesID != "" && e.SpeciesID != speciesID {
			return true
		}
		st.Count++
		if e.Has(world.FieldEnergy) {
			energy = append(energy, e.Vitals.Energy)
		}
		if e.Has(world.FieldHunger) {
			hunger = append(hunger, e.Vitals.Hunger)
		}
		if e.IsChild {
			st.ChildCount++
		}
		if e.InGroup() {
			st.GroupedCount++
		}
		return true
	})

	st.AvgEnergy = mean(energy)
	st.AvgHunger = mean(hunger)
	if st.Count > 0 {
		st.GroupedPercent = float64(st.GroupedCount) / float64(st.Count) * 100
	}
	return st
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return stat.Mean(v, nil)
}

// LogValue implements slog.LogValuer for structured logging.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("species", s.SpeciesID),
		slog.Int("count", s.Count),
		slog.Float64("avg_energy", s.AvgEnergy),
		slog.Float64("avg_hunger", s.AvgHunger),
		slog.Int("children", s.ChildCount),
		slog.Int("grouped", s.GroupedCount),
		slog.Float64("grouped_pct", s.GroupedPercent),
	)
}
