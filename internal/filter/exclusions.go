package filter

import (
	"maps"
	"slices"

	"livemap/internal/entity"
)

// Exclusions tracks the excluded species list across preference changes.
// Species dropped from the list are kept as pending re-inclusions until
// the server acknowledges them, so the next poll returns their sightings
// even on an incremental cursor.
type Exclusions struct {
	excluded map[int]bool
	pending  map[int]bool
}

func NewExclusions(initial []int) *Exclusions {
	x := &Exclusions{
		excluded: make(map[int]bool),
		pending:  make(map[int]bool),
	}
	for _, id := range initial {
		x.excluded[id] = true
	}
	return x
}

// Set replaces the excluded list and returns the species that were newly
// re-included by the change. Excluding a species again cancels its pending
// re-inclusion.
func (x *Exclusions) Set(ids []int) []int {
	next := make(map[int]bool, len(ids))
	for _, id := range ids {
		next[id] = true
		delete(x.pending, id)
	}

	var reincluded []int
	for id := range x.excluded {
		if !next[id] {
			x.pending[id] = true
			reincluded = append(reincluded, id)
		}
	}
	x.excluded = next
	slices.Sort(reincluded)
	return reincluded
}

// Acknowledge drops the species the server reports as re-included.
func (x *Exclusions) Acknowledge(ids []int) {
	for _, id := range ids {
		delete(x.pending, id)
	}
}

func (x *Exclusions) Excluded() []int {
	return sortedKeys(x.excluded)
}

func (x *Exclusions) Pending() []int {
	return sortedKeys(x.pending)
}

// Apply copies the lists onto b.
func (x *Exclusions) Apply(b *Builder) *Builder {
	return b.Exclude(x.Excluded()...).Reinclude(x.Pending()...)
}

// Resets lists the polled categories whose cursor must be reset when the
// settings move from old to next: a category that was switched back on, or
// whose server-relevant filters changed.
func Resets(old, next State) []entity.Category {
	var out []entity.Category
	for _, cat := range entity.Polled {
		if next.Enabled(cat) && !old.Enabled(cat) {
			out = append(out, cat)
			continue
		}
		if !next.Enabled(cat) {
			continue
		}

		changed := false
		switch cat {
		case entity.CategoryCreatures:
			changed = old.OnlySpecies != 0 && next.OnlySpecies == 0
		case entity.CategoryPOIs:
			changed = old.LuredOnly != next.LuredOnly
		case entity.CategoryControls:
			changed = old.Controls != next.Controls || old.ControlIconStyle != next.ControlIconStyle
		}
		if changed {
			out = append(out, cat)
		}
	}
	return out
}

func sortedKeys(m map[int]bool) []int {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}
