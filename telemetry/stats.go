package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartMS int64   `csv:"-"`
	WindowEndMS   int64   `csv:"window_end_ms"`
	WindowSec     float64 `csv:"window_sec"`
	State         string  `csv:"state"`

	// World at window end
	Tick      int64 `csv:"tick"`
	Entities  int   `csv:"entities"`
	Creatures int   `csv:"creatures"`
	Plants    int   `csv:"plants"`
	Species   int   `csv:"species"`
	Groups    int   `csv:"groups"`
	Grouped   int   `csv:"grouped"`
	Children  int   `csv:"children"`

	// Activity during window
	PatchesApplied  uint64 `csv:"patches_applied"`
	PatchesRejected uint64 `csv:"patches_rejected"`
	PatchesEmpty    uint64 `csv:"patches_empty"`
	Resyncs         uint64 `csv:"resyncs"`
	FramesDrawn     uint64 `csv:"frames_drawn"`
	FramesSkipped   uint64 `csv:"frames_skipped"`
	PatchesPerSec   float64 `csv:"patches_per_sec"`
	FramesPerSec    float64 `csv:"frames_per_sec"`

	// Creature vitals distribution (sampled at window end)
	EnergyMean float64 `csv:"energy_mean"`
	EnergyP10  float64 `csv:"energy_p10"`
	EnergyP50  float64 `csv:"energy_p50"`
	EnergyP90  float64 `csv:"energy_p90"`

	HungerMean float64 `csv:"hunger_mean"`
	HungerP10  float64 `csv:"hunger_p10"`
	HungerP50  float64 `csv:"hunger_p50"`
	HungerP90  float64 `csv:"hunger_p90"`
}

// ComputeDistribution calculates mean and empirical percentiles. All values
// are 0 for an empty slice.
func ComputeDistribution(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean = stat.Mean(sorted, nil)
	p10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return mean, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_end_ms", s.WindowEndMS),
		slog.Float64("window_sec", s.WindowSec),
		slog.String("state", s.State),
		slog.Int64("tick", s.Tick),
		slog.Int("entities", s.Entities),
		slog.Int("creatures", s.Creatures),
		slog.Int("plants", s.Plants),
		slog.Int("species", s.Species),
		slog.Int("groups", s.Groups),
		slog.Int("grouped", s.Grouped),
		slog.Int("children", s.Children),
		slog.Uint64("patches_applied", s.PatchesApplied),
		slog.Uint64("patches_rejected", s.PatchesRejected),
		slog.Uint64("patches_empty", s.PatchesEmpty),
		slog.Uint64("resyncs", s.Resyncs),
		slog.Uint64("frames_drawn", s.FramesDrawn),
		slog.Uint64("frames_skipped", s.FramesSkipped),
		slog.Float64("patches_per_sec", s.PatchesPerSec),
		slog.Float64("frames_per_sec", s.FramesPerSec),
		slog.Float64("energy_mean", s.EnergyMean),
		slog.Float64("energy_p10", s.EnergyP10),
		slog.Float64("energy_p50", s.EnergyP50),
		slog.Float64("energy_p90", s.EnergyP90),
		slog.Float64("hunger_mean", s.HungerMean),
		slog.Float64("hunger_p10", s.HungerP10),
		slog.Float64("hunger_p50", s.HungerP50),
		slog.Float64("hunger_p90", s.HungerP90),
	)
}
