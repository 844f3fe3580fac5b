package mocksim

import (
	"github.com/pthm-cable/soupview/transport"
	"github.com/pthm-cable/soupview/world"
)

type vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type attributes struct {
	Energy            float64                `json:"energy"`
	Hunger            float64                `json:"hunger"`
	Size              float64                `json:"size"`
	Age               float64                `json:"age"`
	Diet              world.Diet             `json:"diet,omitempty"`
	ReproductionStyle world.ReproductionMode `json:"reproductionStyle,omitempty"`
	IsChild           bool                   `json:"isChild"`
	GroupID           *string                `json:"groupId"`
	TimeInGroup       float64                `json:"timeInGroup"`
	PackMentality     float64                `json:"packMentality"`
}

type particle struct {
	ID         string          `json:"id"`
	Position   vec             `json:"position"`
	Velocity   vec             `json:"velocity"`
	Attributes attributes      `json:"attributes"`
	Rules      transport.Rules `json:"rules"`
	SpeciesID  string          `json:"speciesId"`
	Color      string          `json:"color"`
}

type species struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	Color             string                 `json:"color"`
	BaseRules         transport.Rules        `json:"baseRules"`
	Diet              world.Diet             `json:"diet"`
	ReproductionStyle world.ReproductionMode `json:"reproductionStyle"`
	Population        int                    `json:"population"`
}

type group struct {
	ID        string   `json:"id"`
	SpeciesID string   `json:"speciesId"`
	MemberIDs []string `json:"memberIds"`
}

type message struct {
	Particles   map[string]*particle `json:"particles,omitempty"`
	Species     map[string]*species  `json:"species,omitempty"`
	Groups      map[string]*group    `json:"groups,omitempty"`
	TickCount   int64                `json:"tickCount"`
	WorldWidth  float64              `json:"worldWidth,omitempty"`
	WorldHeight float64              `json:"worldHeight,omitempty"`
}

func toWire(pos *Position, vel *Velocity, vit *Vitals, org *Organism) *particle {
	p := &particle{
		ID:        org.ID,
		Position:  vec{float64(pos.X), float64(pos.Y)},
		Velocity:  vec{float64(vel.X), float64(vel.Y)},
		SpeciesID: org.SpeciesID,
		Color:     org.Color,
		Attributes: attributes{
			Energy:            float64(vit.Energy),
			Hunger:            float64(vit.Hunger),
			Size:              float64(vit.Size),
			Age:               float64(vit.Age),
			Diet:              org.Diet,
			ReproductionStyle: org.Reproduction,
			IsChild:           org.IsChild,
			TimeInGroup:       float64(org.TimeInGroup),
			PackMentality:     float64(org.PackMentality),
		},
		Rules: transport.Rules{
			ReproductionRate:  float64(org.ReproductionRate),
			EnergyConsumption: float64(org.EnergyConsumption),
			MaxSpeed:          float64(org.MaxSpeed),
			VisionRange:       float64(org.VisionRange),
			SocialDistance:    float64(org.SocialDistance),
			ParticleType:      org.Kind,
		},
	}
	if org.GroupID != "" {
		gid := org.GroupID
		p.Attributes.GroupID = &gid
	}
	return p
}
