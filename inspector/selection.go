package inspector

import (
	"github.com/pthm-cable/soupview/world"
)

// Selection tracks the species filter and the inspected entity.
type Selection struct {
	speciesID string
	entityID  string
}

// Species returns the selected species id, or "" for all.
func (s *Selection) Species() string { return s.speciesID }

// ToggleSpecies selects id, or clears the filter if id is already selected.
func (s *Selection) ToggleSpecies(id string) {
	if s.speciesID == id {
		s.speciesID = ""
		return
	}
	s.speciesID = id
}

// SelectEntity starts inspecting id.
func (s *Selection) SelectEntity(id string) { s.entityID = id }

// Deselect stops inspecting any entity.
func (s *Selection) Deselect() { s.entityID = "" }

// EntityID returns the inspected entity id, or "".
func (s *Selection) EntityID() string { return s.entityID }

// Entity resolves the inspected entity in snap. A selection whose entity is
// gone is dropped.
func (s *Selection) Entity(snap *world.Snapshot) (*world.Entity, bool) {
	if s.entityID == "" {
		return nil, false
	}
	e, ok := snap.Entity(s.entityID)
	if !ok {
		s.entityID = ""
		return nil, false
	}
	return e, true
}

// Stats computes statistics for the current species filter.
func (s *Selection) Stats(snap *world.Snapshot) Stats {
	return Compute(snap, s.speciesID)
}
