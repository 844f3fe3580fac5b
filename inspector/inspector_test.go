package inspector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/soupview/camera"
	"github.com/pthm-cable/soupview/world"
)

const vitals = world.FieldPosition | world.FieldSize | world.FieldEnergy | world.FieldHunger

func entity(id, species string, x, y, energy, hunger float64) *world.Entity {
	return &world.Entity{
		ID:        id,
		Kind:      world.KindCreature,
		SpeciesID: species,
		Position:  world.Vec2{X: x, Y: y},
		Vitals:    world.Vitals{Energy: energy, Hunger: hunger, Size: 3},
		Present:   vitals,
	}
}

func build(entities []*world.Entity, species ...*world.Species) *world.Snapshot {
	b := world.Empty().Edit()
	for _, e := range entities {
		b.PutEntity(e)
	}
	for _, sp := range species {
		b.PutSpecies(sp)
	}
	return b.Commit(time.Unix(0, 0))
}

func TestComputeFixture(t *testing.T) {
	child := entity("c", "s1", 0, 0, 30, 10)
	child.IsChild = true
	grouped := entity("b", "s1", 0, 0, 20, 20)
	grouped.GroupID = "g1"

	snap := build([]*world.Entity{entity("a", "s1", 0, 0, 10, 30), grouped, child})

	st := Compute(snap, "")
	assert.Equal(t, 3, st.Count)
	assert.InDelta(t, 20.0, st.AvgEnergy, 1e-9)
	assert.InDelta(t, 20.0, st.AvgHunger, 1e-9)
	assert.Equal(t, 1, st.ChildCount)
	assert.Equal(t, 1, st.GroupedCount)
	assert.InDelta(t, 100.0/3, st.GroupedPercent, 1e-9)
}

func TestComputeSpeciesFilter(t *testing.T) {
	snap := build([]*world.Entity{
		entity("a", "s1", 0, 0, 10, 0),
		entity("b", "s2", 0, 0, 50, 0),
		entity("c", "s2", 0, 0, 70, 0),
	})

	st := Compute(snap, "s2")
	assert.Equal(t, 2, st.Count)
	assert.InDelta(t, 60.0, st.AvgEnergy, 1e-9)

	none := Compute(snap, "missing")
	assert.Equal(t, Stats{SpeciesID: "missing"}, none)
}

func TestComputeEmptyAndPartial(t *testing.T) {
	assert.Equal(t, Stats{}, Compute(world.Empty(), ""))

	noEnergy := entity("x", "s", 0, 0, 0, 0)
	noEnergy.Present = world.FieldPosition | world.FieldSize
	snap := build([]*world.Entity{noEnergy, entity("y", "s", 0, 0, 40, 0)})

	st := Compute(snap, "")
	assert.Equal(t, 2, st.Count)
	assert.InDelta(t, 40.0, st.AvgEnergy, 1e-9, "unreported vitals are excluded from the mean")
}

func TestDetail(t *testing.T) {
	e := entity("a", "s1", 5, 5, 42.31, 10)
	e.Velocity = world.Vec2{X: 3, Y: 4}
	e.Diet = world.DietOmnivore
	e.Reproduction = world.TwoParents
	e.IsChild = true
	e.GroupID = "g"
	e.TimeInGroup = 12

	snap := build([]*world.Entity{e}, &world.Species{ID: "s1", Name: "Blues"})

	d, ok := Detail(snap, "a")
	require.True(t, ok)
	assert.Equal(t, "Creature", d.Title())
	assert.Equal(t, 5.0, d.Speed)
	assert.Equal(t, "Blues", d.SpeciesName)
	assert.Equal(t, []string{
		"Species: Blues",
		"Energy: 42.3",
		"Hunger: 10.0",
		"Age: 0",
		"Diet: Omnivore",
		"Reproduction: Two parents",
		"Pack Mentality: 0.0",
		"Speed: 5.0",
		"Status: Child",
		"Group Time: 12",
	}, d.Lines())

	_, ok = Detail(snap, "gone")
	assert.False(t, ok)
}

func TestDetailPlant(t *testing.T) {
	p := entity("p", "", 0, 0, 80, 0)
	p.Kind = world.KindPlant
	d, ok := Detail(build([]*world.Entity{p}), "p")
	require.True(t, ok)
	assert.Equal(t, "Plant", d.Title())
	assert.Len(t, d.Lines(), 3, "plants show vitals only")
}

func TestPick(t *testing.T) {
	snap := build([]*world.Entity{
		entity("a", "s", 100, 100, 0, 0),
		entity("b", "s", 104, 100, 0, 0),
		entity("far", "s", 500, 500, 0, 0),
	})
	cam := camera.New(800, 600, 800, 600)

	id, ok := Pick(snap, cam, 103, 100, 1)
	require.True(t, ok)
	assert.Equal(t, "b", id, "nearest hit wins")

	id, ok = Pick(snap, cam, 99, 100, 1)
	require.True(t, ok)
	assert.Equal(t, "a", id)

	_, ok = Pick(snap, cam, 300, 300, 1)
	assert.False(t, ok)

	// Zoomed in, the tolerance shrinks in world units
	cam.SetZoom(4)
	cam.X, cam.Y = 100, 100
	sx, sy := cam.WorldToScreen(100, 109)
	_, ok = Pick(snap, cam, sx, sy, 1)
	assert.False(t, ok)
}

func TestSpeciesList(t *testing.T) {
	snap := build(
		[]*world.Entity{entity("a", "s2", 0, 0, 0, 0), entity("b", "s2", 0, 0, 0, 0), entity("c", "s1", 0, 0, 0, 0)},
		&world.Species{ID: "s1", Name: "Zebra", Population: 7},
		&world.Species{ID: "s2", Name: "Ant", Population: 2},
		&world.Species{ID: "s0", Name: "Ant", Population: 0},
	)

	rows := SpeciesList(snap)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"s0", "s2", "s1"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
	assert.Equal(t, 2, rows[1].Live)
	assert.Equal(t, 7, rows[2].Reported)
	assert.Equal(t, 1, rows[2].Live)
}

func TestSelection(t *testing.T) {
	snap := build([]*world.Entity{entity("a", "s1", 0, 0, 10, 0), entity("b", "s2", 0, 0, 30, 0)})
	var sel Selection

	sel.ToggleSpecies("s2")
	assert.Equal(t, "s2", sel.Species())
	assert.Equal(t, 1, sel.Stats(snap).Count)
	sel.ToggleSpecies("s2")
	assert.Empty(t, sel.Species())
	assert.Equal(t, 2, sel.Stats(snap).Count)

	sel.SelectEntity("a")
	e, ok := sel.Entity(snap)
	require.True(t, ok)
	assert.Equal(t, "a", e.ID)

	// Entity vanishes from a later snapshot
	b := snap.Edit()
	b.ResetEntities()
	later := b.Commit(time.Unix(1, 0))
	_, ok = sel.Entity(later)
	assert.False(t, ok)
	assert.Empty(t, sel.EntityID())
}
