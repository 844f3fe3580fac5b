// Package display holds the user-adjustable visualization options read by
// the render loop every frame.
package display

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/pthm-cable/soupview/config"
)

var (
	// ErrUnknownOption is returned for names that are not registered.
	ErrUnknownOption = errors.New("unknown display option")
	// ErrInvalidValue is returned when a value has the wrong type or is NaN.
	ErrInvalidValue = errors.New("invalid display option value")
)

// OptionID names a display option.
type OptionID string

// Option IDs.
const (
	OptionGrid          OptionID = "show_grid"
	OptionVision        OptionID = "show_vision"
	OptionEnergy        OptionID = "show_energy"
	OptionHunger        OptionID = "show_hunger"
	OptionGroups        OptionID = "show_groups"
	OptionDiet          OptionID = "show_diet"
	OptionStats         OptionID = "show_stats"
	OptionParticleScale OptionID = "particle_scale"
	OptionGridSize      OptionID = "grid_size"
)

// Scale bounds.
const (
	MinParticleScale = 0.5
	MaxParticleScale = 2.0
	MinGridSize      = 5.0
	MaxGridSize      = 200.0
)

// ValueKind is the type of value an option holds.
type ValueKind uint8

const (
	KindToggle ValueKind = iota
	KindScale
)

// Descriptor defines an option for controls and key bindings.
type Descriptor struct {
	ID          OptionID
	Name        string // Display name
	Description string
	KeyLabel    string // Key label for display (e.g., "G"), empty if unbound
	Category    string // Grouping (e.g., "layers", "rings")
	Kind        ValueKind
	Min, Max    float64 // Scales only
	Step        float64 // Scales only, slider/key increment
}

// Options is a value copy of every option.
type Options struct {
	ShowGrid      bool
	ShowVision    bool
	ShowEnergy    bool
	ShowHunger    bool
	ShowGroups    bool
	ShowDiet      bool
	ShowStats     bool
	ParticleScale float64
	GridSize      float64
}

// Defaults returns the options a fresh viewer starts with.
func Defaults() Options {
	return Options{
		ShowGrid:      true,
		ShowEnergy:    true,
		ShowGroups:    true,
		ShowStats:     true,
		ParticleScale: 2,
		GridSize:      20,
	}
}

// FromConfig builds the initial options from the render config.
func FromConfig(cfg config.RenderConfig) Options {
	return Options{
		ShowGrid:      cfg.ShowGrid,
		ShowVision:    cfg.ShowVision,
		ShowEnergy:    cfg.ShowEnergy,
		ShowHunger:    cfg.ShowHunger,
		ShowGroups:    cfg.ShowGroups,
		ShowDiet:      cfg.ShowDiet,
		ShowStats:     cfg.ShowStats,
		ParticleScale: cfg.ParticleScale,
		GridSize:      cfg.GridSize,
	}
}

func (o *Options) toggle(id OptionID) *bool {
	switch id {
	case OptionGrid:
		return &o.ShowGrid
	case OptionVision:
		return &o.ShowVision
	case OptionEnergy:
		return &o.ShowEnergy
	case OptionHunger:
		return &o.ShowHunger
	case OptionGroups:
		return &o.ShowGroups
	case OptionDiet:
		return &o.ShowDiet
	case OptionStats:
		return &o.ShowStats
	}
	return nil
}

func (o *Options) scale(id OptionID) *float64 {
	switch id {
	case OptionParticleScale:
		return &o.ParticleScale
	case OptionGridSize:
		return &o.GridSize
	}
	return nil
}

// Store holds the current options. Writes are visible to the next read.
type Store struct {
	mu          sync.RWMutex
	opts        Options
	version     uint64
	descriptors []Descriptor
	byID        map[OptionID]Descriptor
}

// NewStore creates a store with the standard options registered. Scales in
// initial are clamped to their ranges.
func NewStore(initial Options) *Store {
	s := &Store{byID: make(map[OptionID]Descriptor)}
	s.registerDefaults()
	for _, d := range s.descriptors {
		if p := initial.scale(d.ID); p != nil {
			*p = d.clamp(*p)
		}
	}
	s.opts = initial
	return s
}

// registerDefaults adds the standard options.
func (s *Store) registerDefaults() {
	// Background and mid layers
	s.register(Descriptor{ID: OptionGrid, Name: "Grid", Description: "Low-opacity lattice at the grid size", KeyLabel: "G", Category: "layers"})
	s.register(Descriptor{ID: OptionGroups, Name: "Group Links", Description: "Dashed lines between group members", KeyLabel: "L", Category: "layers"})

	// Per-creature indicators
	s.register(Descriptor{ID: OptionVision, Name: "Vision Range", Description: "Ring at each creature's vision range", KeyLabel: "V", Category: "indicators"})
	s.register(Descriptor{ID: OptionEnergy, Name: "Energy", Description: "Energy ring and plant energy overlay", KeyLabel: "E", Category: "indicators"})
	s.register(Descriptor{ID: OptionHunger, Name: "Hunger", Description: "Hunger ring outside the energy ring", KeyLabel: "H", Category: "indicators"})
	s.register(Descriptor{ID: OptionDiet, Name: "Diet", Description: "Diet-colored dot above each creature", KeyLabel: "D", Category: "indicators"})

	// Scales
	s.register(Descriptor{ID: OptionParticleScale, Name: "Particle Scale", Description: "Body size multiplier", Category: "scale",
		Kind: KindScale, Min: MinParticleScale, Max: MaxParticleScale, Step: 0.1})
	s.register(Descriptor{ID: OptionGridSize, Name: "Grid Size", Description: "Grid cell size in world units", Category: "scale",
		Kind: KindScale, Min: MinGridSize, Max: MaxGridSize, Step: 5})

	// Panels
	s.register(Descriptor{ID: OptionStats, Name: "Statistics", Description: "Statistics panel", KeyLabel: "I", Category: "panels"})
}

func (s *Store) register(d Descriptor) {
	s.descriptors = append(s.descriptors, d)
	s.byID[d.ID] = d
}

func (d Descriptor) clamp(v float64) float64 {
	return math.Min(math.Max(v, d.Min), d.Max)
}

// Options returns a copy of the current options.
func (s *Store) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// Version increments on every successful change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// SetOption updates a single option. Toggles take a bool; scales take any
// numeric type and are clamped to their range.
func (s *Store) SetOption(name string, value any) error {
	d, ok := s.byID[OptionID(name)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOption, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch d.Kind {
	case KindToggle:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: %s wants bool, got %T", ErrInvalidValue, name, value)
		}
		*s.opts.toggle(d.ID) = b
	case KindScale:
		f, ok := toFloat(value)
		if !ok || math.IsNaN(f) {
			return fmt.Errorf("%w: %s wants a number, got %v", ErrInvalidValue, name, value)
		}
		*s.opts.scale(d.ID) = d.clamp(f)
	}
	s.version++
	return nil
}

// Toggle flips a boolean option and returns its new state.
func (s *Store) Toggle(id OptionID) (bool, error) {
	d, ok := s.byID[id]
	if !ok || d.Kind != KindToggle {
		return false, fmt.Errorf("%w: %q is not a toggle", ErrUnknownOption, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.opts.toggle(id)
	*p = !*p
	s.version++
	return *p, nil
}

// Step moves a scale option by n steps, clamped to its range.
func (s *Store) Step(id OptionID, n int) (float64, error) {
	d, ok := s.byID[id]
	if !ok || d.Kind != KindScale {
		return 0, fmt.Errorf("%w: %q is not a scale", ErrUnknownOption, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.opts.scale(id)
	*p = d.clamp(*p + float64(n)*d.Step)
	s.version++
	return *p, nil
}

// Value returns the current value of an option as bool or float64.
func (s *Store) Value(id OptionID) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.opts.toggle(id); p != nil {
		return *p, nil
	}
	if p := s.opts.scale(id); p != nil {
		return *p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOption, id)
}

// Get returns a descriptor by ID.
func (s *Store) Get(id OptionID) (Descriptor, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// All returns all registered options in registration order.
func (s *Store) All() []Descriptor {
	return s.descriptors
}

// ByCategory returns options filtered by category.
func (s *Store) ByCategory(category string) []Descriptor {
	var result []Descriptor
	for _, d := range s.descriptors {
		if d.Category == category {
			result = append(result, d)
		}
	}
	return result
}

// Categories returns all unique categories in order.
func (s *Store) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, d := range s.descriptors {
		if !seen[d.Category] {
			seen[d.Category] = true
			cats = append(cats, d.Category)
		}
	}
	return cats
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
