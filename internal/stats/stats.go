// Package stats summarises the entities inside the viewport.
package stats

import (
	"cmp"
	"slices"
	"time"

	"livemap/internal/entity"
	"livemap/internal/geo"
	"livemap/internal/store"
)

type SpeciesCount struct {
	SpeciesID   int     `json:"species_id"`
	SpeciesName string  `json:"species_name"`
	Count       int     `json:"count"`
	Percent     float64 `json:"percent"`
}

type Summary struct {
	Creatures   int                     `json:"creatures"`
	Species     []SpeciesCount          `json:"species"`
	Controls    int                     `json:"controls"`
	Factions    map[string]int          `json:"factions"`
	POIs        int                     `json:"pois"`
	LuredPOIs   int                     `json:"lured_pois"`
	UnluredPOIs int                     `json:"unlured_pois"`
	Categories  map[entity.Category]int `json:"categories"`
}

// Compute counts the stored entities whose extent intersects view. Hidden
// and expired creatures are not counted.
func Compute(st *store.Store, view geo.Bounds, now time.Time) Summary {
	s := Summary{
		Factions:   make(map[string]int),
		Categories: make(map[entity.Category]int, len(entity.Categories)),
	}
	for _, cat := range entity.Categories {
		s.Categories[cat] = st.Len(cat)
	}

	species := make(map[int]*SpeciesCount)
	for _, t := range []*store.Table[string, entity.Creature]{st.Creatures, st.LureCreatures} {
		t.ForEach(func(_ string, e *store.Entry[entity.Creature]) {
			c := e.Record
			if e.Hidden || c.Expired(now) || !view.Contains(c.Position) {
				return
			}
			sc, ok := species[c.SpeciesID]
			if !ok {
				sc = &SpeciesCount{SpeciesID: c.SpeciesID, SpeciesName: c.SpeciesName}
				species[c.SpeciesID] = sc
			}
			sc.Count++
			s.Creatures++
		})
	}
	for _, sc := range species {
		sc.Percent = 100 * float64(sc.Count) / float64(s.Creatures)
		s.Species = append(s.Species, *sc)
	}
	slices.SortFunc(s.Species, func(a, b SpeciesCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.SpeciesID, b.SpeciesID)
	})

	st.Controls.ForEach(func(_ string, e *store.Entry[entity.ControlStructure]) {
		if view.Contains(e.Record.Position) {
			s.Controls++
			s.Factions[e.Record.Faction.String()]++
		}
	})

	st.POIs.ForEach(func(_ string, e *store.Entry[entity.PointOfInterest]) {
		if !view.Contains(e.Record.Position) {
			return
		}
		s.POIs++
		if e.Record.Lured(now) {
			s.LuredPOIs++
		} else {
			s.UnluredPOIs++
		}
	})
	return s
}
