// Package world defines the client-side model of the simulated world and the
// store that publishes consistent snapshots of it.
package world

import "math"

// Kind distinguishes mobile creatures from stationary plants.
type Kind string

const (
	KindCreature Kind = "creature"
	KindPlant    Kind = "plant"
)

// Diet is the feeding classification of a creature.
type Diet string

const (
	DietHerbivore Diet = "herbivore"
	DietCarnivore Diet = "carnivore"
	DietOmnivore  Diet = "omnivore"
)

// Valid reports whether d is one of the known diet classes.
func (d Diet) Valid() bool {
	switch d {
	case DietHerbivore, DietCarnivore, DietOmnivore:
		return true
	}
	return false
}

// ReproductionMode describes how a species produces offspring.
type ReproductionMode string

const (
	SelfReplicating ReproductionMode = "self_replicating"
	TwoParents      ReproductionMode = "two_parents"
)

// Valid reports whether m is a known reproduction mode.
func (m ReproductionMode) Valid() bool {
	return m == SelfReplicating || m == TwoParents
}

// Vec2 is a 2D vector in world units.
type Vec2 struct {
	X, Y float64
}

// Len returns the vector magnitude.
func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Angle returns the heading of v in radians.
func (v Vec2) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// Vitals are the numeric state values the simulation reports per entity.
type Vitals struct {
	Energy         float64
	Hunger         float64
	Size           float64
	Age            float64
	LastReproduced float64 // Tick of last reproduction
	LastAte        float64 // Tick of last feeding
}

// Behavior holds the behavioral parameters of an entity or species template.
type Behavior struct {
	ReproductionRate  float64
	EnergyConsumption float64
	MaxSpeed          float64
	VisionRange       float64
	SocialDistance    float64
}

// Field flags which parts of an entity record were present on the wire.
type Field uint16

const (
	FieldPosition Field = 1 << iota
	FieldVelocity
	FieldEnergy
	FieldHunger
	FieldSize
	FieldVisionRange
)

// drawFields must be present for an entity to be drawn at all.
const drawFields = FieldPosition | FieldSize

// Entity is one simulated actor. Entities held by a Snapshot are shared
// between snapshots and must not be modified.
type Entity struct {
	ID        string
	Kind      Kind
	SpeciesID string
	Color     string

	Position Vec2
	Velocity Vec2
	Vitals   Vitals
	Behavior Behavior

	Diet          Diet
	Reproduction  ReproductionMode
	PackMentality float64

	// Group membership
	GroupID     string
	TimeInGroup float64
	IsChild     bool

	Present Field
}

// Has reports whether all fields in f were present in the entity's payload.
func (e *Entity) Has(f Field) bool {
	return e.Present&f == f
}

// IsPlant reports whether the entity is drawn in the background layer.
func (e *Entity) IsPlant() bool {
	return e.Kind == KindPlant
}

// Drawable reports whether the entity has the numeric fields needed to place
// and size it, and that those fields are finite.
func (e *Entity) Drawable() bool {
	if e == nil || !e.Has(drawFields) {
		return false
	}
	return finite(e.Position.X) && finite(e.Position.Y) && finite(e.Vitals.Size)
}

// InGroup reports whether the entity reports membership of a group.
func (e *Entity) InGroup() bool {
	return e.GroupID != ""
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Species is a named population descriptor reported by the simulation.
type Species struct {
	ID           string
	Name         string
	Color        string
	Kind         Kind
	Base         Behavior
	Diet         Diet
	Reproduction ReproductionMode
	Population   int // As reported, never computed locally
}
