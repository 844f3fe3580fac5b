package world

// Group is a transient social or family cluster. Member and parent ids are
// unique and keep the order in which they were first seen.
type Group struct {
	ID        string
	SpeciesID string
	ChildID   string

	members []string
	parents []string
}

// NewGroup builds a group, dropping duplicate and empty ids from the member
// and parent lists.
func NewGroup(id, speciesID string, members, parents []string, childID string) *Group {
	return &Group{
		ID:        id,
		SpeciesID: speciesID,
		ChildID:   childID,
		members:   uniqueIDs(members),
		parents:   uniqueIDs(parents),
	}
}

// Members returns the member ids. The slice must not be modified.
func (g *Group) Members() []string { return g.members }

// Parents returns the parent ids, if the group is reproduction linked.
func (g *Group) Parents() []string { return g.parents }

// Size returns the number of unique member ids, resolvable or not.
func (g *Group) Size() int { return len(g.members) }

// Has reports whether id is a member.
func (g *Group) Has(id string) bool {
	for _, m := range g.members {
		if m == id {
			return true
		}
	}
	return false
}

// Resolve returns the members present in s, in member order. Dangling ids
// are skipped.
func (g *Group) Resolve(s *Snapshot) []*Entity {
	out := make([]*Entity, 0, len(g.members))
	for _, id := range g.members {
		if e, ok := s.Entity(id); ok {
			out = append(out, e)
		}
	}
	return out
}

func uniqueIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
