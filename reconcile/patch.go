// Package reconcile turns the inbound stream of partial world updates into
// consistent snapshots.
package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pthm-cable/soupview/world"
)

var (
	// ErrMalformed marks a message that is not a JSON object of the
	// expected shape.
	ErrMalformed = errors.New("malformed patch")
	// ErrEmptyPatch marks a well-formed message that carries none of the
	// recognized fields.
	ErrEmptyPatch = errors.New("patch has no recognized fields")
)

// Patch is one decoded update. A nil map means the field was absent; an
// empty non-nil map means it was reported with no records.
type Patch struct {
	Entities map[string]*world.Entity
	Species  map[string]*world.Species
	Groups   map[string]*world.Group

	Tick   int64
	Width  float64
	Height float64

	Reported   world.Report
	ReceivedAt time.Time

	// Dropped names scalar fields that were present but out of range. They
	// are treated as unreported.
	Dropped []string
}

// Empty reports whether the patch carries no recognized field.
func (p *Patch) Empty() bool { return p.Reported == 0 }

type wireVec struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (v *wireVec) complete() bool {
	return v != nil && v.X != nil && v.Y != nil
}

func (v *wireVec) vec() world.Vec2 {
	return world.Vec2{X: *v.X, Y: *v.Y}
}

type wireAttributes struct {
	Energy            *float64 `json:"energy"`
	Hunger            *float64 `json:"hunger"`
	Size              *float64 `json:"size"`
	Age               float64  `json:"age"`
	LastReproduced    float64  `json:"lastReproduced"`
	LastAte           float64  `json:"lastAte"`
	Diet              string   `json:"diet"`
	ReproductionStyle string   `json:"reproductionStyle"`
	IsChild           bool     `json:"isChild"`
	GroupID           *string  `json:"groupId"`
	TimeInGroup       float64  `json:"timeInGroup"`
	PackMentality     float64  `json:"packMentality"`
}

type wireRules struct {
	ReproductionRate  float64  `json:"reproductionRate"`
	EnergyConsumption float64  `json:"energyConsumption"`
	MaxSpeed          float64  `json:"maxSpeed"`
	VisionRange       *float64 `json:"visionRange"`
	SocialDistance    float64  `json:"socialDistance"`
	ParticleType      string   `json:"particleType"`
}

func (r *wireRules) behavior() world.Behavior {
	if r == nil {
		return world.Behavior{}
	}
	b := world.Behavior{
		ReproductionRate:  r.ReproductionRate,
		EnergyConsumption: r.EnergyConsumption,
		MaxSpeed:          r.MaxSpeed,
		SocialDistance:    r.SocialDistance,
	}
	if r.VisionRange != nil {
		b.VisionRange = *r.VisionRange
	}
	return b
}

type wireEntity struct {
	ID         string          `json:"id"`
	Position   *wireVec        `json:"position"`
	Velocity   *wireVec        `json:"velocity"`
	Attributes *wireAttributes `json:"attributes"`
	Rules      *wireRules      `json:"rules"`
	SpeciesID  string          `json:"speciesId"`
	Color      string          `json:"color"`
}

type wireSpecies struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Color             string     `json:"color"`
	BaseRules         *wireRules `json:"baseRules"`
	Diet              string     `json:"diet"`
	ReproductionStyle string     `json:"reproductionStyle"`
	Population        float64    `json:"population"`
}

type wireGroup struct {
	ID        string   `json:"id"`
	SpeciesID string   `json:"speciesId"`
	MemberIDs []string `json:"memberIds"`
	ParentIDs []string `json:"parentIds"`
	ChildID   *string  `json:"childId"`
}

type wirePatch struct {
	Particles   *map[string]*wireEntity  `json:"particles"`
	Species     *map[string]*wireSpecies `json:"species"`
	Groups      *map[string]*wireGroup   `json:"groups"`
	TickCount   *float64                 `json:"tickCount"`
	WorldWidth  *float64                 `json:"worldWidth"`
	WorldHeight *float64                 `json:"worldHeight"`
}

// Decode parses one inbound message. It returns ErrMalformed for anything
// that is not a JSON object of the expected shape and ErrEmptyPatch when no
// recognized field is present.
func Decode(data []byte) (Patch, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Patch{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}
	var w wirePatch
	if err := json.Unmarshal(data, &w); err != nil {
		return Patch{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var p Patch
	if w.Particles != nil {
		p.Reported |= world.ReportedEntities
		p.Entities = make(map[string]*world.Entity, len(*w.Particles))
		for id, we := range *w.Particles {
			if id == "" || we == nil {
				continue
			}
			p.Entities[id] = we.entity(id)
		}
	}
	if w.Species != nil {
		p.Reported |= world.ReportedSpecies
		p.Species = make(map[string]*world.Species, len(*w.Species))
		for id, ws := range *w.Species {
			if id == "" || ws == nil {
				continue
			}
			p.Species[id] = ws.species(id)
		}
	}
	if w.Groups != nil {
		p.Reported |= world.ReportedGroups
		p.Groups = make(map[string]*world.Group, len(*w.Groups))
		for id, wg := range *w.Groups {
			if id == "" || wg == nil {
				continue
			}
			p.Groups[id] = wg.group(id)
		}
	}
	if w.TickCount != nil {
		// Values at or beyond 2^63 do not convert to int64.
		if t := math.Round(*w.TickCount); t >= 0 && t < math.MaxInt64 {
			p.Reported |= world.ReportedTick
			p.Tick = int64(t)
		} else {
			p.Dropped = append(p.Dropped, "tickCount")
		}
	}
	if w.WorldWidth != nil {
		if *w.WorldWidth > 0 {
			p.Reported |= world.ReportedWidth
			p.Width = *w.WorldWidth
		} else {
			p.Dropped = append(p.Dropped, "worldWidth")
		}
	}
	if w.WorldHeight != nil {
		if *w.WorldHeight > 0 {
			p.Reported |= world.ReportedHeight
			p.Height = *w.WorldHeight
		} else {
			p.Dropped = append(p.Dropped, "worldHeight")
		}
	}

	if p.Empty() {
		return p, ErrEmptyPatch
	}
	return p, nil
}

// entity converts the wire record. The mapping key wins over the embedded id.
// Kind is left empty when unreported and resolved against the species later.
func (w *wireEntity) entity(id string) *world.Entity {
	e := &world.Entity{
		ID:        id,
		SpeciesID: w.SpeciesID,
		Color:     w.Color,
	}
	if w.Position.complete() {
		e.Position = w.Position.vec()
		e.Present |= world.FieldPosition
	}
	if w.Velocity.complete() {
		e.Velocity = w.Velocity.vec()
		e.Present |= world.FieldVelocity
	}
	if a := w.Attributes; a != nil {
		if a.Energy != nil {
			e.Vitals.Energy = *a.Energy
			e.Present |= world.FieldEnergy
		}
		if a.Hunger != nil {
			e.Vitals.Hunger = *a.Hunger
			e.Present |= world.FieldHunger
		}
		if a.Size != nil {
			e.Vitals.Size = *a.Size
			e.Present |= world.FieldSize
		}
		e.Vitals.Age = a.Age
		e.Vitals.LastReproduced = a.LastReproduced
		e.Vitals.LastAte = a.LastAte
		e.Diet = world.Diet(a.Diet)
		e.Reproduction = world.ReproductionMode(a.ReproductionStyle)
		e.IsChild = a.IsChild
		if a.GroupID != nil {
			e.GroupID = *a.GroupID
		}
		e.TimeInGroup = a.TimeInGroup
		e.PackMentality = a.PackMentality
	}
	if r := w.Rules; r != nil {
		e.Behavior = r.behavior()
		if r.VisionRange != nil {
			e.Present |= world.FieldVisionRange
		}
		e.Kind = parseKind(r.ParticleType)
	}
	return e
}

func (w *wireSpecies) species(id string) *world.Species {
	sp := &world.Species{
		ID:           id,
		Name:         w.Name,
		Color:        w.Color,
		Base:         w.BaseRules.behavior(),
		Diet:         world.Diet(w.Diet),
		Reproduction: world.ReproductionMode(w.ReproductionStyle),
		Population:   int(w.Population),
	}
	if w.BaseRules != nil {
		sp.Kind = parseKind(w.BaseRules.ParticleType)
	}
	return sp
}

func (w *wireGroup) group(id string) *world.Group {
	var child string
	if w.ChildID != nil {
		child = *w.ChildID
	}
	return world.NewGroup(id, w.SpeciesID, w.MemberIDs, w.ParentIDs, child)
}

func parseKind(s string) world.Kind {
	switch s {
	case "plant", "PLANT", "Plant":
		return world.KindPlant
	case "creature", "CREATURE", "Creature":
		return world.KindCreature
	}
	return ""
}
