package world

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
)

// Report records which top-level fields a patch carried.
type Report uint8

const (
	ReportedEntities Report = 1 << iota
	ReportedSpecies
	ReportedGroups
	ReportedTick
	ReportedWidth
	ReportedHeight
)

var reportNames = []struct {
	r    Report
	name string
}{
	{ReportedEntities, "particles"},
	{ReportedSpecies, "species"},
	{ReportedGroups, "groups"},
	{ReportedTick, "tickCount"},
	{ReportedWidth, "worldWidth"},
	{ReportedHeight, "worldHeight"},
}

// Has reports whether all bits of f are set.
func (r Report) Has(f Report) bool { return r&f == f }

func (r Report) String() string {
	if r == 0 {
		return "none"
	}
	var parts []string
	for _, n := range reportNames {
		if r.Has(n.r) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Snapshot is a complete, immutable view of the world at one point in
// client-observed time. Snapshots are only produced by a Builder.
type Snapshot struct {
	Tick   int64
	Width  float64
	Height float64

	// Version counts committed patches since the store was created.
	Version uint64
	// Reported is the set of fields carried by the patch that produced this
	// snapshot.
	Reported  Report
	AppliedAt time.Time

	entities map[string]*Entity
	species  map[string]*Species
	groups   map[string]*Group

	entityIDs  []string
	speciesIDs []string
	groupIDs   []string
}

// Bounds assumed until the server reports its own.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

var empty = &Snapshot{
	Width:    DefaultWidth,
	Height:   DefaultHeight,
	entities: map[string]*Entity{},
	species:  map[string]*Species{},
	groups:   map[string]*Group{},
}

// Empty returns the snapshot of a world nothing has been reported for.
func Empty() *Snapshot { return empty }

// Entity looks up an entity by id.
func (s *Snapshot) Entity(id string) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// Species looks up a species by id.
func (s *Snapshot) Species(id string) (*Species, bool) {
	sp, ok := s.species[id]
	return sp, ok
}

// Group looks up a group by id.
func (s *Snapshot) Group(id string) (*Group, bool) {
	g, ok := s.groups[id]
	return g, ok
}

// EntityIDs returns all entity ids in sorted order. The slice is shared.
func (s *Snapshot) EntityIDs() []string { return s.entityIDs }

// SpeciesIDs returns all species ids in sorted order. The slice is shared.
func (s *Snapshot) SpeciesIDs() []string { return s.speciesIDs }

// GroupIDs returns all group ids in sorted order. The slice is shared.
func (s *Snapshot) GroupIDs() []string { return s.groupIDs }

// NumEntities returns the number of entities.
func (s *Snapshot) NumEntities() int { return len(s.entities) }

// NumSpecies returns the number of species.
func (s *Snapshot) NumSpecies() int { return len(s.species) }

// NumGroups returns the number of groups.
func (s *Snapshot) NumGroups() int { return len(s.groups) }

// Entities calls fn for each entity in id order until fn returns false.
func (s *Snapshot) Entities(fn func(*Entity) bool) {
	for _, id := range s.entityIDs {
		if !fn(s.entities[id]) {
			return
		}
	}
}

// Groups calls fn for each group in id order until fn returns false.
func (s *Snapshot) Groups(fn func(*Group) bool) {
	for _, id := range s.groupIDs {
		if !fn(s.groups[id]) {
			return
		}
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s *Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("tick", s.Tick),
		slog.Uint64("version", s.Version),
		slog.Int("entities", len(s.entities)),
		slog.Int("species", len(s.species)),
		slog.Int("groups", len(s.groups)),
		slog.String("reported", s.Reported.String()),
	)
}

// Builder derives a new snapshot from a base without touching the base.
// Maps are copied on first write.
type Builder struct {
	base *Snapshot
	next Snapshot

	entitiesDirty bool
	speciesDirty  bool
	groupsDirty   bool
}

// Edit starts a new snapshot derived from s.
func (s *Snapshot) Edit() *Builder {
	b := &Builder{base: s, next: *s}
	b.next.Reported = 0
	return b
}

func (b *Builder) ensureEntities() {
	if !b.entitiesDirty {
		b.next.entities = maps.Clone(b.base.entities)
		b.entitiesDirty = true
	}
}

func (b *Builder) ensureSpecies() {
	if !b.speciesDirty {
		b.next.species = maps.Clone(b.base.species)
		b.speciesDirty = true
	}
}

func (b *Builder) ensureGroups() {
	if !b.groupsDirty {
		b.next.groups = maps.Clone(b.base.groups)
		b.groupsDirty = true
	}
}

// Base returns the snapshot being derived from.
func (b *Builder) Base() *Snapshot { return b.base }

// PutEntity inserts or replaces the entity with e.ID.
func (b *Builder) PutEntity(e *Entity) {
	b.ensureEntities()
	b.next.entities[e.ID] = e
}

// PutSpecies inserts or replaces the species with sp.ID.
func (b *Builder) PutSpecies(sp *Species) {
	b.ensureSpecies()
	b.next.species[sp.ID] = sp
}

// PutGroup inserts or replaces the group with g.ID.
func (b *Builder) PutGroup(g *Group) {
	b.ensureGroups()
	b.next.groups[g.ID] = g
}

// ResetEntities drops every entity. Only used for a full resync.
func (b *Builder) ResetEntities() {
	b.next.entities = make(map[string]*Entity)
	b.entitiesDirty = true
}

// ResetSpecies drops every species. Only used for a full resync.
func (b *Builder) ResetSpecies() {
	b.next.species = make(map[string]*Species)
	b.speciesDirty = true
}

// ResetGroups drops every group. Only used for a full resync.
func (b *Builder) ResetGroups() {
	b.next.groups = make(map[string]*Group)
	b.groupsDirty = true
}

// SetTick replaces the tick counter.
func (b *Builder) SetTick(t int64) { b.next.Tick = t }

// SetWidth replaces the world width.
func (b *Builder) SetWidth(w float64) { b.next.Width = w }

// SetHeight replaces the world height.
func (b *Builder) SetHeight(h float64) { b.next.Height = h }

// MarkReported records that the patch carried the given fields.
func (b *Builder) MarkReported(r Report) { b.next.Reported |= r }

// Commit finalizes the new snapshot. The builder must not be used afterwards.
func (b *Builder) Commit(at time.Time) *Snapshot {
	s := b.next
	s.Version = b.base.Version + 1
	s.AppliedAt = at
	if b.entitiesDirty {
		s.entityIDs = sortedKeys(s.entities)
	}
	if b.speciesDirty {
		s.speciesIDs = sortedKeys(s.species)
	}
	if b.groupsDirty {
		s.groupIDs = sortedKeys(s.groups)
	}
	return &s
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
