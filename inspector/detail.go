package inspector

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/soupview/world"
)

// EntityDetail is the context card for one entity.
type EntityDetail struct {
	ID          string
	Kind        world.Kind
	SpeciesID   string
	SpeciesName string
	Color       string
	Position    world.Vec2

	Energy float64
	Hunger float64
	Age    float64

	// Creatures only
	Diet          world.Diet
	Reproduction  world.ReproductionMode
	PackMentality float64
	Speed         float64
	IsChild       bool
	GroupID       string
	TimeInGroup   float64
}

// Detail returns the card for entity id, or false if it is not in snap.
func Detail(snap *world.Snapshot, id string) (EntityDetail, bool) {
	e, ok := snap.Entity(id)
	if !ok {
		return EntityDetail{}, false
	}

	d := EntityDetail{
		ID:            e.ID,
		Kind:          e.Kind,
		SpeciesID:     e.SpeciesID,
		Color:         e.Color,
		Position:      e.Position,
		Energy:        e.Vitals.Energy,
		Hunger:        e.Vitals.Hunger,
		Age:           e.Vitals.Age,
		Diet:          e.Diet,
		Reproduction:  e.Reproduction,
		PackMentality: e.PackMentality,
		Speed:         e.Velocity.Len(),
		IsChild:       e.IsChild,
		GroupID:       e.GroupID,
		TimeInGroup:   e.TimeInGroup,
	}
	if sp, ok := snap.Species(e.SpeciesID); ok {
		d.SpeciesName = sp.Name
	}
	return d, true
}

// Title is the card heading.
func (d EntityDetail) Title() string {
	if d.Kind == world.KindPlant {
		return "Plant"
	}
	return "Creature"
}

// Lines returns the card body as label/value rows.
func (d EntityDetail) Lines() []string {
	lines := []string{
		fmt.Sprintf("Energy: %.1f", d.Energy),
		fmt.Sprintf("Hunger: %.1f", d.Hunger),
		fmt.Sprintf("Age: %.0f", d.Age),
	}
	if d.SpeciesName != "" {
		lines = append([]string{"Species: " + d.SpeciesName}, lines...)
	}
	if d.Kind == world.KindPlant {
		return lines
	}

	lines = append(lines,
		"Diet: "+capitalize(string(d.Diet)),
		"Reproduction: "+capitalize(strings.ReplaceAll(string(d.Reproduction), "_", " ")),
		fmt.Sprintf("Pack Mentality: %.1f", d.PackMentality),
		fmt.Sprintf("Speed: %.1f", d.Speed),
	)
	if d.IsChild {
		lines = append(lines, "Status: Child")
	}
	if d.GroupID != "" {
		lines = append(lines, fmt.Sprintf("Group Time: %.0f", d.TimeInGroup))
	}
	return lines
}

func capitalize(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
