// Package mocksim is a small synthetic ecology that speaks the simulation
// wire protocol. It backs the development mock server and end-to-end tests;
// its behavior is plausible rather than faithful.
package mocksim

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/soupview/transport"
	"github.com/pthm-cable/soupview/world"
)

// ErrUnknownCommand is returned by Apply for unrecognized command types.
var ErrUnknownCommand = errors.New("unknown command")

// Tunables.
const (
	PlantSpawnChance = 0.1 // Per tick
	MaxPlants        = 200
	MaxPopulation    = 100 // Per creature species
	EatRadius        = 6.0
	EatEnergy        = 15.0
	HungerRate       = 0.05
	PackChance       = 0.4
	ChildhoodTicks   = 600
	GridCellSize     = 32.0
)

// Sim is a running synthetic world. All methods are safe for concurrent use.
type Sim struct {
	mu      sync.Mutex
	rng     *rand.Rand
	width   float32
	height  float32
	tick    int64
	running bool

	mapper  *ecs.Map4[Position, Velocity, Vitals, Organism]
	filter  *ecs.Filter4[Position, Velocity, Vitals, Organism]
	posMap  *ecs.Map1[Position]
	velMap  *ecs.Map1[Velocity]
	vitMap  *ecs.Map1[Vitals]
	orgMap  *ecs.Map1[Organism]
	plants  *SpatialGrid
	prey    *SpatialGrid
	species map[string]*species
	groups  map[string]*group

	dirtyEntities map[ecs.Entity]bool
	dirtySpecies  map[string]bool
	dirtyGroups   map[string]bool
}

// New creates an empty, running world of the given size.
func New(width, height float64, seed uint64) *Sim {
	w := ecs.NewWorld()
	return &Sim{
		rng:           rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		width:         float32(width),
		height:        float32(height),
		running:       true,
		mapper:        ecs.NewMap4[Position, Velocity, Vitals, Organism](w),
		filter:        ecs.NewFilter4[Position, Velocity, Vitals, Organism](w),
		posMap:        ecs.NewMap1[Position](w),
		velMap:        ecs.NewMap1[Velocity](w),
		vitMap:        ecs.NewMap1[Vitals](w),
		orgMap:        ecs.NewMap1[Organism](w),
		plants:        NewSpatialGrid(float32(width), float32(height), GridCellSize),
		prey:          NewSpatialGrid(float32(width), float32(height), GridCellSize),
		species:       make(map[string]*species),
		groups:        make(map[string]*group),
		dirtyEntities: make(map[ecs.Entity]bool),
		dirtySpecies:  make(map[string]bool),
		dirtyGroups:   make(map[string]bool),
	}
}

// Running reports whether Step advances the world.
func (s *Sim) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tick returns the current tick.
func (s *Sim) Tick() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Apply handles one control message from a client.
func (s *Sim) Apply(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("decoding command: %w", err)
	}

	switch head.Type {
	case "pause":
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	case "start":
		s.mu.Lock()
		s.running = true
		s.mu.Unlock()
	case "add_species":
		var cmd transport.AddSpecies
		if err := json.Unmarshal(data, &cmd); err != nil {
			return fmt.Errorf("decoding add_species: %w", err)
		}
		if err := cmd.Validate(); err != nil {
			return err
		}
		s.AddSpecies(cmd)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, head.Type)
	}
	return nil
}

// AddSpecies registers a species and seeds its initial population.
func (s *Sim) AddSpecies(cmd transport.AddSpecies) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	sp := &species{
		ID:                id,
		Name:              cmd.Name,
		Color:             cmd.Color,
		BaseRules:         cmd.Rules,
		Diet:              cmd.Diet,
		ReproductionStyle: cmd.ReproductionStyle,
	}
	s.species[id] = sp
	s.dirtySpecies[id] = true

	for range cmd.InitialCount {
		s.spawn(sp, Position{s.rng.Float32() * s.width, s.rng.Float32() * s.height}, false)
	}
	return id
}

func (s *Sim) spawn(sp *species, pos Position, child bool) ecs.Entity {
	r := sp.BaseRules
	org := Organism{
		ID:                uuid.NewString(),
		SpeciesID:         sp.ID,
		Kind:              r.ParticleType,
		Color:             sp.Color,
		Diet:              sp.Diet,
		Reproduction:      sp.ReproductionStyle,
		ReproductionRate:  float32(r.ReproductionRate),
		EnergyConsumption: float32(r.EnergyConsumption),
		MaxSpeed:          float32(r.MaxSpeed),
		VisionRange:       float32(r.VisionRange),
		SocialDistance:    float32(r.SocialDistance),
		PackMentality:     s.rng.Float32(),
		IsChild:           child,
	}
	vit := Vitals{Energy: 100, Size: 3}
	if org.Kind == world.KindPlant {
		vit.Size = 2
		org.Diet = ""
	} else if org.PackMentality > 1-PackChance {
		org.GroupID = "pack-" + sp.ID
		g, ok := s.groups[org.GroupID]
		if !ok {
			g = &group{ID: org.GroupID, SpeciesID: sp.ID}
			s.groups[g.ID] = g
		}
		g.MemberIDs = append(g.MemberIDs, org.ID)
		s.dirtyGroups[g.ID] = true
	}
	if child {
		vit.Size = 2
		vit.Energy = 50
	}

	var vel Velocity
	e := s.mapper.NewEntity(&pos, &vel, &vit, &org)
	s.dirtyEntities[e] = true
	sp.Population++
	s.dirtySpecies[sp.ID] = true
	return e
}

// Step advances the world by one tick if it is running.
func (s *Sim) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.tick++

	if s.rng.Float32() < PlantSpawnChance {
		if sp := s.plantSpecies(); sp != nil && sp.Population < MaxPlants {
			s.spawn(sp, Position{s.rng.Float32() * s.width, s.rng.Float32() * s.height}, false)
		}
	}

	s.rebuildGrids()

	// Births are collected and spawned after the query, which locks the world.
	type birth struct {
		sp  *species
		pos Position
	}
	var births []birth

	query := s.filter.Query()
	for query.Next() {
		pos, vel, vit, org := query.Get()
		if org.Kind == world.KindPlant {
			continue
		}
		s.move(pos, vel, vit, org)
		s.feed(query.Entity(), pos, vit, org)
		s.dirtyEntities[query.Entity()] = true

		if org.IsChild && vit.Age >= ChildhoodTicks {
			org.IsChild = false
			vit.Size = 3
		}
		if sp := s.species[org.SpeciesID]; sp != nil && s.readyToBreed(vit, org, sp) {
			vit.Energy -= 40
			births = append(births, birth{sp, *pos})
		}
	}

	for _, b := range births {
		s.spawn(b.sp, b.pos, true)
	}
}

func (s *Sim) plantSpecies() *species {
	for _, sp := range s.species {
		if sp.BaseRules.ParticleType == world.KindPlant {
			return sp
		}
	}
	return nil
}

func (s *Sim) rebuildGrids() {
	s.plants.Clear()
	s.prey.Clear()
	query := s.filter.Query()
	for query.Next() {
		pos, _, _, org := query.Get()
		switch {
		case org.Kind == world.KindPlant:
			s.plants.Insert(query.Entity(), pos.X, pos.Y)
		case org.Diet != world.DietCarnivore:
			s.prey.Insert(query.Entity(), pos.X, pos.Y)
		}
	}
}

func (s *Sim) move(pos *Position, vel *Velocity, vit *Vitals, org *Organism) {
	vit.Age++
	if org.GroupID != "" {
		org.TimeInGroup++
	}

	// Random walk, biased toward food once hungry
	angle := s.rng.Float64() * 2 * math.Pi
	vel.X = 0.9*vel.X + 0.2*float32(math.Cos(angle))
	vel.Y = 0.9*vel.Y + 0.2*float32(math.Sin(angle))
	if vit.Hunger > 50 && org.VisionRange > 0 {
		if target, ok := s.foodGrid(org).Nearest(pos.X, pos.Y, org.VisionRange); ok {
			tp := s.posMap.Get(target)
			dx, dy := ToroidalDelta(pos.X, pos.Y, tp.X, tp.Y, s.width, s.height)
			if d := float32(math.Hypot(float64(dx), float64(dy))); d > 0 {
				vel.X += 0.3 * dx / d
				vel.Y += 0.3 * dy / d
			}
		}
	}
	if speed := float32(math.Hypot(float64(vel.X), float64(vel.Y))); speed > org.MaxSpeed && speed > 0 {
		vel.X *= org.MaxSpeed / speed
		vel.Y *= org.MaxSpeed / speed
	}
	pos.X = wrap(pos.X+vel.X, s.width)
	pos.Y = wrap(pos.Y+vel.Y, s.height)

	vit.Energy = max(0, vit.Energy-org.EnergyConsumption*0.1)
	vit.Hunger = min(100, vit.Hunger+HungerRate)
}

func (s *Sim) foodGrid(org *Organism) *SpatialGrid {
	if org.Diet == world.DietCarnivore {
		return s.prey
	}
	return s.plants
}

func (s *Sim) feed(self ecs.Entity, pos *Position, vit *Vitals, org *Organism) {
	target, ok := s.foodGrid(org).Nearest(pos.X, pos.Y, EatRadius)
	if !ok || target == self {
		return
	}
	if org.Diet == world.DietCarnivore {
		if prey := s.vitMap.Get(target); prey != nil {
			prey.Energy = max(0, prey.Energy-EatEnergy)
			s.dirtyEntities[target] = true
		}
	}
	vit.Energy = min(100, vit.Energy+EatEnergy)
	vit.Hunger = 0
}

func (s *Sim) readyToBreed(vit *Vitals, org *Organism, sp *species) bool {
	if org.IsChild || vit.Energy < 90 || sp.Population >= MaxPopulation {
		return false
	}
	return s.rng.Float32() < org.ReproductionRate*0.01
}

func wrap(v, size float32) float32 {
	v = float32(math.Mod(float64(v), float64(size)))
	if v < 0 {
		v += size
	}
	if v >= size {
		v = 0
	}
	return v
}

// Full renders the complete world state.
func (s *Sim) Full() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	particles := make(map[string]*particle)
	query := s.filter.Query()
	for query.Next() {
		p := toWire(query.Get())
		particles[p.ID] = p
	}
	return json.Marshal(message{
		Particles:   particles,
		Species:     s.species,
		Groups:      s.groups,
		TickCount:   s.tick,
		WorldWidth:  float64(s.width),
		WorldHeight: float64(s.height),
	})
}

// Delta renders the records changed since the previous Delta, plus the tick.
func (s *Sim) Delta() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := message{TickCount: s.tick}
	if len(s.dirtyEntities) > 0 {
		msg.Particles = make(map[string]*particle, len(s.dirtyEntities))
		for e := range s.dirtyEntities {
			p := toWire(s.posMap.Get(e), s.velMap.Get(e), s.vitMap.Get(e), s.orgMap.Get(e))
			msg.Particles[p.ID] = p
		}
	}
	if len(s.dirtySpecies) > 0 {
		msg.Species = make(map[string]*species, len(s.dirtySpecies))
		for id := range s.dirtySpecies {
			msg.Species[id] = s.species[id]
		}
	}
	if len(s.dirtyGroups) > 0 {
		msg.Groups = make(map[string]*group, len(s.dirtyGroups))
		for id := range s.dirtyGroups {
			msg.Groups[id] = s.groups[id]
		}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	clear(s.dirtyEntities)
	clear(s.dirtySpecies)
	clear(s.dirtyGroups)
	return data, nil
}
