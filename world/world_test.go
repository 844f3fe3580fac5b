package world

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creature(id string, x, y float64) *Entity {
	return &Entity{
		ID:       id,
		Kind:     KindCreature,
		Position: Vec2{X: x, Y: y},
		Vitals:   Vitals{Size: 3, Energy: 50},
		Present:  FieldPosition | FieldSize | FieldEnergy,
	}
}

func TestBuilderLeavesBaseUntouched(t *testing.T) {
	b := Empty().Edit()
	b.PutEntity(creature("a", 1, 1))
	b.PutEntity(creature("b", 2, 2))
	b.SetTick(5)
	first := b.Commit(time.Unix(0, 0))

	b = first.Edit()
	b.PutEntity(creature("c", 3, 3))
	b.SetTick(6)
	second := b.Commit(time.Unix(1, 0))

	assert.Equal(t, 2, first.NumEntities())
	assert.Equal(t, int64(5), first.Tick)
	assert.Equal(t, []string{"a", "b"}, first.EntityIDs())

	assert.Equal(t, 3, second.NumEntities())
	assert.Equal(t, int64(6), second.Tick)
	assert.Equal(t, []string{"a", "b", "c"}, second.EntityIDs())
	assert.Equal(t, first.Version+1, second.Version)

	assert.Equal(t, 0, Empty().NumEntities(), "empty snapshot must never be mutated")
}

func TestBuilderSharesUntouchedMaps(t *testing.T) {
	b := Empty().Edit()
	b.PutSpecies(&Species{ID: "s1", Name: "plants"})
	base := b.Commit(time.Time{})

	b = base.Edit()
	b.PutEntity(creature("a", 0, 0))
	next := b.Commit(time.Time{})

	sp, ok := next.Species("s1")
	require.True(t, ok)
	assert.Equal(t, "plants", sp.Name)
	assert.Equal(t, base.SpeciesIDs(), next.SpeciesIDs())
}

func TestReportString(t *testing.T) {
	assert.Equal(t, "none", Report(0).String())
	assert.Equal(t, "particles|tickCount", (ReportedEntities | ReportedTick).String())
	assert.True(t, (ReportedEntities | ReportedGroups).Has(ReportedGroups))
	assert.False(t, ReportedEntities.Has(ReportedEntities|ReportedSpecies))
}

func TestNewGroupDeduplicates(t *testing.T) {
	g := NewGroup("g1", "s1", []string{"b", "a", "b", "", "a", "c"}, []string{"p", "p"}, "")
	assert.Equal(t, []string{"b", "a", "c"}, g.Members())
	assert.Equal(t, []string{"p"}, g.Parents())
	assert.Equal(t, 3, g.Size())
	assert.True(t, g.Has("c"))
	assert.False(t, g.Has("z"))
}

func TestGroupResolveSkipsDangling(t *testing.T) {
	b := Empty().Edit()
	b.PutEntity(creature("a", 0, 0))
	b.PutEntity(creature("c", 1, 1))
	s := b.Commit(time.Time{})

	g := NewGroup("g", "s", []string{"a", "gone", "c"}, nil, "")
	members := g.Resolve(s)
	require.Len(t, members, 2)
	assert.Equal(t, "a", members[0].ID)
	assert.Equal(t, "c", members[1].ID)
}

func TestEntityDrawable(t *testing.T) {
	tests := []struct {
		name string
		e    *Entity
		want bool
	}{
		{"complete", creature("a", 1, 2), true},
		{"nil", nil, false},
		{"no position", &Entity{Present: FieldSize, Vitals: Vitals{Size: 3}}, false},
		{"no size", &Entity{Present: FieldPosition}, false},
		{"nan position", &Entity{Present: drawFields, Position: Vec2{X: math.NaN()}, Vitals: Vitals{Size: 1}}, false},
		{"inf size", &Entity{Present: drawFields, Vitals: Vitals{Size: math.Inf(1)}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.e.Drawable())
		})
	}
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, DietOmnivore.Valid())
	assert.False(t, Diet("vegan").Valid())
	assert.True(t, TwoParents.Valid())
	assert.False(t, ReproductionMode("budding").Valid())
}

func TestStoreUpdate(t *testing.T) {
	st := NewStore()
	require.Same(t, Empty(), st.Snapshot())

	next, err := st.Update(func(cur *Snapshot) (*Snapshot, error) {
		b := cur.Edit()
		b.SetTick(1)
		return b.Commit(time.Time{}), nil
	})
	require.NoError(t, err)
	assert.Same(t, next, st.Snapshot())

	// A failing update keeps the previous snapshot
	_, err = st.Update(func(cur *Snapshot) (*Snapshot, error) {
		return nil, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Same(t, next, st.Snapshot())

	// nil without error is a no-op
	_, err = st.Update(func(cur *Snapshot) (*Snapshot, error) { return nil, nil })
	require.NoError(t, err)
	assert.Same(t, next, st.Snapshot())
}

func TestStoreReadersNeverSeeTornSnapshot(t *testing.T) {
	st := NewStore()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Each committed snapshot carries exactly Tick entities.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= 200; i++ {
			_, _ = st.Update(func(cur *Snapshot) (*Snapshot, error) {
				b := cur.Edit()
				b.PutEntity(creature(string(rune('A'+i%26))+string(rune('a'+i/26)), 0, 0))
				b.SetTick(i)
				return b.Commit(time.Time{}), nil
			})
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := st.Snapshot()
				if int64(s.NumEntities()) != s.Tick || len(s.EntityIDs()) != s.NumEntities() {
					t.Errorf("torn snapshot: tick=%d entities=%d ids=%d", s.Tick, s.NumEntities(), len(s.EntityIDs()))
					return
				}
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int64(200), st.Snapshot().Tick)
}
