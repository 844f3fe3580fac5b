package reconcile

import (
	"github.com/pthm-cable/soupview/world"
)

// ApplyPatch merges p into cur and returns the resulting snapshot. cur is
// not modified.
//
// Keyed records present in the patch replace the stored record for that key
// wholesale; keys absent from the patch are untouched. Tick and world
// dimensions are last-writer-wins. A patch without recognized fields
// returns cur itself.
func ApplyPatch(cur *world.Snapshot, p Patch) *world.Snapshot {
	next, _ := apply(cur, p, false)
	return next
}

// Resync is ApplyPatch for the first message of a fresh connection: every
// keyed mapping the patch carries replaces the stored mapping entirely, so
// records the server no longer reports are dropped.
func Resync(cur *world.Snapshot, p Patch) *world.Snapshot {
	next, _ := apply(cur, p, true)
	return next
}

type applyResult struct {
	kindConflicts int
	tickRegressed bool
}

func apply(cur *world.Snapshot, p Patch, resync bool) (*world.Snapshot, applyResult) {
	var res applyResult
	if p.Empty() {
		return cur, res
	}

	b := cur.Edit()
	b.MarkReported(p.Reported)

	// Species first so entities without a kind tag can inherit one.
	if p.Reported.Has(world.ReportedSpecies) {
		if resync {
			b.ResetSpecies()
		}
		for _, sp := range p.Species {
			b.PutSpecies(sp)
		}
	}

	if p.Reported.Has(world.ReportedEntities) {
		if resync {
			b.ResetEntities()
		}
		for id, e := range p.Entities {
			ec := *e
			if conflict := settleKind(cur, p, &ec, id, resync); conflict {
				res.kindConflicts++
			}
			b.PutEntity(&ec)
		}
	}

	if p.Reported.Has(world.ReportedGroups) {
		if resync {
			b.ResetGroups()
		}
		for _, g := range p.Groups {
			b.PutGroup(g)
		}
	}

	if p.Reported.Has(world.ReportedTick) {
		if p.Tick < cur.Tick && !resync {
			res.tickRegressed = true
		}
		b.SetTick(p.Tick)
	}
	if p.Reported.Has(world.ReportedWidth) {
		b.SetWidth(p.Width)
	}
	if p.Reported.Has(world.ReportedHeight) {
		b.SetHeight(p.Height)
	}

	return b.Commit(p.ReceivedAt), res
}

// settleKind fills in a missing kind tag and keeps the kind of an already
// known entity fixed. It reports whether the payload tried to change it.
func settleKind(cur *world.Snapshot, p Patch, e *world.Entity, id string, resync bool) bool {
	if !resync {
		if prev, ok := cur.Entity(id); ok && prev.Kind != "" {
			if e.Kind != "" && e.Kind != prev.Kind {
				e.Kind = prev.Kind
				return true
			}
			e.Kind = prev.Kind
			return false
		}
	}
	if e.Kind != "" {
		return false
	}
	if sp, ok := p.Species[e.SpeciesID]; ok && sp.Kind != "" {
		e.Kind = sp.Kind
	} else if sp, ok := cur.Species(e.SpeciesID); ok && sp.Kind != "" {
		e.Kind = sp.Kind
	} else {
		e.Kind = world.KindCreature
	}
	return false
}
