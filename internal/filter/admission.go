package filter

import (
	"time"

	"livemap/internal/derive"
	"livemap/internal/entity"
)

// Reason names the rule that rejected an entity. The empty Reason admits.
type Reason string

const (
	Admitted         Reason = ""
	ReasonDisabled   Reason = "category disabled"
	ReasonExcluded   Reason = "species excluded"
	ReasonExpired    Reason = "expired"
	ReasonIsolated   Reason = "other species isolated"
	ReasonHidden     Reason = "hidden by user"
	ReasonNotLured   Reason = "no active lure"
	ReasonNoOpenSlot Reason = "no open slot"
	ReasonFaction    Reason = "faction filtered"
	ReasonStale      Reason = "not scanned recently"
	ReasonBelowTier  Reason = "below minimum tier"
	ReasonAboveTier  Reason = "above maximum tier"
)

// closeToNextTier holds the points margin for each open-slot filter level
// above 1.
var closeToNextTier = map[int]int{
	2: 1000,
	3: 2500,
	4: 5000,
}

// Creature applies the creature rules in order: exclusion, expiry,
// single-species isolation.
func (s State) Creature(c entity.Creature, now time.Time) Reason {
	switch {
	case s.Excluded(c.SpeciesID):
		return ReasonExcluded
	case c.Expired(now):
		return ReasonExpired
	case s.Isolated(c.SpeciesID):
		return ReasonIsolated
	}
	return Admitted
}

// LureCreature is like Creature without isolation, matching how lured
// spawns are shown.
func (s State) LureCreature(c entity.Creature, now time.Time) Reason {
	switch {
	case s.Excluded(c.SpeciesID):
		return ReasonExcluded
	case c.Expired(now):
		return ReasonExpired
	}
	return Admitted
}

func (s State) POI(p entity.PointOfInterest, now time.Time) Reason {
	if s.LuredOnly && !p.Lured(now) {
		return ReasonNotLured
	}
	return Admitted
}

// Control applies, in sequence, the open-slot, faction, staleness and tier
// range rules.
func (s State) Control(g entity.ControlStructure, now time.Time) Reason {
	f := s.Controls
	tier := ControlTier(g)

	if f.OpenSlots == 1 && !hasOpenSlot(g, tier) {
		return ReasonNoOpenSlot
	}
	if margin, ok := closeToNextTier[f.OpenSlots]; ok && !hasOpenSlot(g, tier) {
		if tier-1 >= len(derive.ControlLadder) || derive.ControlLadder[tier-1] > margin+g.Points {
			return ReasonNoOpenSlot
		}
	}
	if f.Faction != entity.FactionNone && f.Faction != g.Faction {
		return ReasonFaction
	}
	if f.MaxScanAgeHours > 0 && ScanAge(g, now) > time.Duration(f.MaxScanAgeHours)*time.Hour {
		return ReasonStale
	}
	if f.MinTier > 0 && tier < f.MinTier {
		return ReasonBelowTier
	}
	if f.MaxTier > 0 && tier > f.MaxTier {
		return ReasonAboveTier
	}
	return Admitted
}

// hasOpenSlot reports a structure with occupants and fewer of them than
// its tier allows.
func hasOpenSlot(g entity.ControlStructure, tier int) bool {
	n := len(g.Occupants)
	return n != 0 && tier > n
}
