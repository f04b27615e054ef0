// Package filter holds the immutable filter snapshot that a sync cycle is
// evaluated against, and the admission predicates built on it.
package filter

import (
	"maps"
	"time"

	"livemap/internal/derive"
	"livemap/internal/entity"
)

// ControlFilters narrows the control structures that are kept.
type ControlFilters struct {
	// OpenSlots is 0 (off), 1 (an open slot is required) or 2..4 (open slot
	// or within 1000/2500/5000 points of the next tier).
	OpenSlots       int
	Faction         entity.Faction
	MaxScanAgeHours int
	MinTier         int
	MaxTier         int
}

// NotifyRules decides which creature admissions raise an alert.
type NotifyRules struct {
	Species    map[int]bool
	Rarities   map[string]bool
	MinQuality float64
}

// State is a snapshot of every user setting that affects admission,
// visibility and alerting. It is captured once per cycle and never mutated
// afterwards; build a new one with Builder.
type State struct {
	show       map[entity.Category]bool
	excluded   map[int]bool
	reincluded map[int]bool

	ShowRanges  bool
	OnlySpecies int
	LuredOnly   bool
	Controls    ControlFilters
	Notify      NotifyRules

	CreatureOpacity    bool
	MinCreatureOpacity float64
	Staleness          []derive.StalenessStep
	ControlIconStyle   string
	PlaySound          bool
	PlayCries          bool
}

// Enabled reports whether cat is switched on. Lure creatures follow the
// creature toggle.
func (s State) Enabled(cat entity.Category) bool {
	if cat == entity.CategoryLureCreatures {
		cat = entity.CategoryCreatures
	}
	return s.show[cat]
}

// Excluded reports whether species is hidden for this cycle. A species that
// is pending re-inclusion is never excluded.
func (s State) Excluded(species int) bool {
	return s.excluded[species] && !s.reincluded[species]
}

// Isolated reports whether single-species mode hides species.
func (s State) Isolated(species int) bool {
	return s.OnlySpecies != 0 && species != s.OnlySpecies
}

// ExcludedList returns the excluded species in ascending order.
func (s State) ExcludedList() []int {
	return sortedKeys(s.excluded)
}

// ReincludedList returns the species pending re-inclusion.
func (s State) ReincludedList() []int {
	return sortedKeys(s.reincluded)
}

// Builder assembles a State. The zero Builder yields a snapshot with every
// category off.
type Builder struct {
	state State
}

func NewBuilder() *Builder {
	return &Builder{state: State{
		show:               make(map[entity.Category]bool),
		excluded:           make(map[int]bool),
		reincluded:         make(map[int]bool),
		MinCreatureOpacity: 0.25,
	}}
}

func (b *Builder) Show(cat entity.Category, on bool) *Builder {
	b.state.show[cat] = on
	return b
}

func (b *Builder) Exclude(species ...int) *Builder {
	for _, id := range species {
		b.state.excluded[id] = true
	}
	return b
}

func (b *Builder) Reinclude(species ...int) *Builder {
	for _, id := range species {
		b.state.reincluded[id] = true
	}
	return b
}

// With applies fn to the exported fields.
func (b *Builder) With(fn func(s *State)) *Builder {
	fn(&b.state)
	return b
}

// Build returns a copy that later builder calls cannot affect.
func (b *Builder) Build() State {
	s := b.state
	s.show = maps.Clone(b.state.show)
	s.excluded = maps.Clone(b.state.excluded)
	s.reincluded = maps.Clone(b.state.reincluded)
	s.Notify.Species = maps.Clone(b.state.Notify.Species)
	s.Notify.Rarities = maps.Clone(b.state.Notify.Rarities)
	s.Staleness = append([]derive.StalenessStep(nil), b.state.Staleness...)
	return s
}

// ControlTier is the tier used by every control structure filter.
func ControlTier(g entity.ControlStructure) int {
	return derive.TierFromPoints(g.Points, derive.ControlLadder)
}

// ScanAge is how long ago a structure was last scanned.
func ScanAge(g entity.ControlStructure, now time.Time) time.Duration {
	return now.Sub(g.LastScanned)
}
