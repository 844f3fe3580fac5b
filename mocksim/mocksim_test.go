package mocksim

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/soupview/reconcile"
	"github.com/pthm-cable/soupview/transport"
	"github.com/pthm-cable/soupview/world"
)

func herbivores(n int) transport.AddSpecies {
	return transport.AddSpecies{
		Name:              "herbivores",
		Color:             "#3498DB",
		Diet:              world.DietHerbivore,
		ReproductionStyle: world.TwoParents,
		Rules: transport.Rules{
			EnergyConsumption: 0.8,
			MaxSpeed:          2,
			VisionRange:       50,
			ParticleType:      world.KindCreature,
		},
		InitialCount: n,
	}
}

func TestFullStateDecodes(t *testing.T) {
	s := New(800, 600, 1)
	s.AddSpecies(herbivores(10))

	data, err := s.Full()
	require.NoError(t, err)

	p, err := reconcile.Decode(data)
	require.NoError(t, err)
	assert.Len(t, p.Entities, 10)
	assert.Len(t, p.Species, 1)
	assert.Equal(t, 800.0, p.Width)

	snap := reconcile.Resync(world.Empty(), p)
	assert.Equal(t, 10, snap.NumEntities())
	snap.Entities(func(e *world.Entity) bool {
		assert.True(t, e.Drawable(), e.ID)
		assert.Equal(t, world.KindCreature, e.Kind)
		return true
	})
}

func TestStepMovesCreaturesWithinBounds(t *testing.T) {
	s := New(100, 100, 2)
	s.AddSpecies(herbivores(5))
	_, err := s.Delta()
	require.NoError(t, err)

	for range 500 {
		s.Step()
	}
	assert.Equal(t, int64(500), s.Tick())

	data, err := s.Delta()
	require.NoError(t, err)
	var msg message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Len(t, msg.Particles, 5)
	for _, p := range msg.Particles {
		assert.GreaterOrEqual(t, p.Position.X, 0.0)
		assert.Less(t, p.Position.X, 100.0)
		assert.GreaterOrEqual(t, p.Position.Y, 0.0)
		assert.Less(t, p.Position.Y, 100.0)
		assert.LessOrEqual(t, p.Attributes.Hunger, 100.0)
		assert.GreaterOrEqual(t, p.Attributes.Energy, 0.0)
	}
}

func TestDeltaCarriesOnlyChanges(t *testing.T) {
	s := New(800, 600, 3)
	s.AddSpecies(herbivores(3))
	_, err := s.Delta()
	require.NoError(t, err)

	require.NoError(t, s.Apply([]byte(`{"type":"pause"}`)))
	s.Step()

	data, err := s.Delta()
	require.NoError(t, err)
	p, err := reconcile.Decode(data)
	require.NoError(t, err)
	assert.Nil(t, p.Entities, "nothing moved while paused")
	assert.True(t, p.Reported.Has(world.ReportedTick))
	assert.Equal(t, int64(0), p.Tick)
}

func TestApplyCommands(t *testing.T) {
	s := New(800, 600, 4)

	require.NoError(t, s.Apply([]byte(`{"type":"pause"}`)))
	assert.False(t, s.Running())
	require.NoError(t, s.Apply([]byte(`{"type":"start"}`)))
	assert.True(t, s.Running())

	data, err := transport.Encode(herbivores(4))
	require.NoError(t, err)
	require.NoError(t, s.Apply(data))

	full, err := s.Full()
	require.NoError(t, err)
	var msg message
	require.NoError(t, json.Unmarshal(full, &msg))
	assert.Len(t, msg.Particles, 4)
	for _, sp := range msg.Species {
		assert.Equal(t, "herbivores", sp.Name)
		assert.Equal(t, 4, sp.Population)
	}

	err = s.Apply([]byte(`{"type":"explode"}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)

	err = s.Apply([]byte(`{"type":"add_species","name":"","color":"red"}`))
	assert.Error(t, err)

	assert.Error(t, s.Apply([]byte(`not json`)))
}

func TestPlantsSpawnAndStayPut(t *testing.T) {
	s := New(800, 600, 5)
	s.AddSpecies(transport.AddSpecies{
		Name:              "plants",
		Color:             "#2ECC71",
		Diet:              world.DietHerbivore,
		ReproductionStyle: world.SelfReplicating,
		Rules:             transport.Rules{ParticleType: world.KindPlant},
		InitialCount:      1,
	})

	for range 200 {
		s.Step()
	}

	full, err := s.Full()
	require.NoError(t, err)
	p, err := reconcile.Decode(full)
	require.NoError(t, err)
	assert.Greater(t, len(p.Entities), 1, "plants spawn over time")

	snap := reconcile.Resync(world.Empty(), p)
	snap.Entities(func(e *world.Entity) bool {
		assert.True(t, e.IsPlant())
		assert.Zero(t, e.Velocity.Len())
		return true
	})
}

func TestPackGroupsReferenceMembers(t *testing.T) {
	s := New(800, 600, 6)
	s.AddSpecies(herbivores(50))

	full, err := s.Full()
	require.NoError(t, err)
	p, err := reconcile.Decode(full)
	require.NoError(t, err)
	snap := reconcile.Resync(world.Empty(), p)

	require.Equal(t, 1, snap.NumGroups(), "fifty creatures yield at least one pack member")
	snap.Groups(func(g *world.Group) bool {
		members := g.Resolve(snap)
		assert.Len(t, members, g.Size())
		for _, m := range members {
			assert.True(t, m.InGroup())
			assert.Equal(t, g.ID, m.GroupID)
		}
		return true
	})
}
