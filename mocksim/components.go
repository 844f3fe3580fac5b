package mocksim

import "github.com/pthm-cable/soupview/world"

// Position is an entity's world position.
type Position struct {
	X, Y float32
}

// Velocity is an entity's per-tick displacement.
type Velocity struct {
	X, Y float32
}

// Vitals holds the drifting physiological state.
type Vitals struct {
	Energy float32
	Hunger float32
	Size   float32
	Age    float32
}

// Organism holds identity and the species rules copied at spawn.
type Organism struct {
	ID        string
	SpeciesID string
	Kind      world.Kind
	Color     string

	Diet         world.Diet
	Reproduction world.ReproductionMode

	// Rules
	ReproductionRate  float32
	EnergyConsumption float32
	MaxSpeed          float32
	VisionRange       float32
	SocialDistance    float32

	// Group membership
	PackMentality float32
	GroupID       string
	TimeInGroup   float32
	IsChild       bool
}
