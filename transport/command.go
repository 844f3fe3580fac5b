package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/pthm-cable/soupview/world"
)

// Command is an outbound control message.
type Command interface {
	// Type is the wire discriminator.
	Type() string
	Validate() error
}

// Pause asks the simulation to stop advancing.
type Pause struct{}

// Type implements Command.
func (Pause) Type() string { return "pause" }

// Validate implements Command.
func (Pause) Validate() error { return nil }

// Resume asks a paused simulation to continue.
type Resume struct{}

// Type implements Command.
func (Resume) Type() string { return "start" }

// Validate implements Command.
func (Resume) Validate() error { return nil }

// Rules are the behavioral parameters of a new species.
type Rules struct {
	ReproductionRate  float64    `json:"reproductionRate"`
	EnergyConsumption float64    `json:"energyConsumption"`
	MaxSpeed          float64    `json:"maxSpeed"`
	VisionRange       float64    `json:"visionRange"`
	SocialDistance    float64    `json:"socialDistance"`
	ParticleType      world.Kind `json:"particleType"`
}

// AddSpecies asks the simulation to seed a new species.
type AddSpecies struct {
	Name              string                 `json:"name"`
	Color             string                 `json:"color"`
	Diet              world.Diet             `json:"diet"`
	ReproductionStyle world.ReproductionMode `json:"reproductionStyle"`
	Rules             Rules                  `json:"rules"`
	InitialCount      int                    `json:"initialCount"`
}

// Bounds on the seeded population size.
const (
	MinInitialCount = 1
	MaxInitialCount = 50
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Type implements Command.
func (AddSpecies) Type() string { return "add_species" }

// Validate implements Command.
func (a AddSpecies) Validate() error {
	var errs []error
	if a.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !hexColor.MatchString(a.Color) {
		errs = append(errs, fmt.Errorf("color %q: want #rrggbb", a.Color))
	}
	if !a.Diet.Valid() {
		errs = append(errs, fmt.Errorf("diet %q: unknown", a.Diet))
	}
	if !a.ReproductionStyle.Valid() {
		errs = append(errs, fmt.Errorf("reproduction style %q: unknown", a.ReproductionStyle))
	}
	if a.InitialCount < MinInitialCount || a.InitialCount > MaxInitialCount {
		errs = append(errs, fmt.Errorf("initial count %d: want %d..%d", a.InitialCount, MinInitialCount, MaxInitialCount))
	}
	switch a.Rules.ParticleType {
	case world.KindCreature, world.KindPlant:
	default:
		errs = append(errs, fmt.Errorf("particle type %q: unknown", a.Rules.ParticleType))
	}
	if len(errs) > 0 {
		return fmt.Errorf("add_species: %w", errors.Join(errs...))
	}
	return nil
}

// Encode validates cmd and renders it as a wire message.
func Encode(cmd Command) ([]byte, error) {
	if a, ok := cmd.(*AddSpecies); ok {
		if a == nil {
			return nil, errors.New("add_species: nil command")
		}
		cmd = *a
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	switch c := cmd.(type) {
	case AddSpecies:
		return json.Marshal(struct {
			Type string `json:"type"`
			AddSpecies
		}{c.Type(), c})
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{cmd.Type()})
	}
}
