package inspector

import (
	"cmp"
	"slices"

	"github.com/pthm-cable/soupview/world"
)

// SpeciesRow is one entry of the species list.
type SpeciesRow struct {
	ID           string
	Name         string
	Color        string
	Diet         world.Diet
	Reproduction world.ReproductionMode
	Reported     int // Population as reported by the simulation
	Live         int // Entities of this species in the snapshot
}

// SpeciesList returns all species sorted by name, then id.
func SpeciesList(snap *world.Snapshot) []SpeciesRow {
	live := make(map[string]int, snap.NumSpecies())
	snap.Entities(func(e *world.Entity) bool {
		live[e.SpeciesID]++
		return true
	})

	rows := make([]SpeciesRow, 0, snap.NumSpecies())
	for _, id := range snap.SpeciesIDs() {
		sp, _ := snap.Species(id)
		rows = append(rows, SpeciesRow{
			ID:           sp.ID,
			Name:         sp.Name,
			Color:        sp.Color,
			Diet:         sp.Diet,
			Reproduction: sp.Reproduction,
			Reported:     sp.Population,
			Live:         live[id],
		})
	}
	slices.SortFunc(rows, func(a, b SpeciesRow) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return rows
}
