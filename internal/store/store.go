// Package store keeps the per-category entity tables of one session.
package store

import (
	"cmp"

	"livemap/internal/entity"
	"livemap/internal/geo"
	"livemap/internal/render"
)

// Store groups the independent tables of every category.
type Store struct {
	Creatures     *Table[string, entity.Creature]
	LureCreatures *Table[string, entity.Creature]
	POIs          *Table[string, entity.PointOfInterest]
	Controls      *Table[string, entity.ControlStructure]
	Scans         *Table[geo.LatLng, entity.ScanSample]
	SpawnTimers   *Table[string, entity.SpawnTimer]
	Zones         *Table[string, entity.ExclusionZone]
}

func New(surface render.Surface) *Store {
	return &Store{
		Creatures:     NewTable[string, entity.Creature](string(entity.CategoryCreatures), surface, cmp.Compare[string]),
		LureCreatures: NewTable[string, entity.Creature](string(entity.CategoryLureCreatures), surface, cmp.Compare[string]),
		POIs:          NewTable[string, entity.PointOfInterest](string(entity.CategoryPOIs), surface, cmp.Compare[string]),
		Controls:      NewTable[string, entity.ControlStructure](string(entity.CategoryControls), surface, cmp.Compare[string]),
		Scans:         NewTable[geo.LatLng, entity.ScanSample](string(entity.CategoryScans), surface, compareLatLng),
		SpawnTimers:   NewTable[string, entity.SpawnTimer](string(entity.CategorySpawnTimers), surface, cmp.Compare[string]),
		Zones:         NewTable[string, entity.ExclusionZone](string(entity.CategoryZones), surface, cmp.Compare[string]),
	}
}

func compareLatLng(a, b geo.LatLng) int {
	if c := cmp.Compare(a.Lat, b.Lat); c != 0 {
		return c
	}
	return cmp.Compare(a.Lng, b.Lng)
}

// Clear empties the tables of one category and returns how many entries
// were removed.
func (s *Store) Clear(cat entity.Category) int {
	switch cat {
	case entity.CategoryCreatures:
		return s.Creatures.Clear()
	case entity.CategoryLureCreatures:
		return s.LureCreatures.Clear()
	case entity.CategoryPOIs:
		return s.POIs.Clear()
	case entity.CategoryControls:
		return s.Controls.Clear()
	case entity.CategoryScans:
		return s.Scans.Clear()
	case entity.CategorySpawnTimers:
		return s.SpawnTimers.Clear()
	case entity.CategoryZones:
		return s.Zones.Clear()
	}
	return 0
}

// Len returns the entry count of one category.
func (s *Store) Len(cat entity.Category) int {
	switch cat {
	case entity.CategoryCreatures:
		return s.Creatures.Len()
	case entity.CategoryLureCreatures:
		return s.LureCreatures.Len()
	case entity.CategoryPOIs:
		return s.POIs.Len()
	case entity.CategoryControls:
		return s.Controls.Len()
	case entity.CategoryScans:
		return s.Scans.Len()
	case entity.CategorySpawnTimers:
		return s.SpawnTimers.Len()
	case entity.CategoryZones:
		return s.Zones.Len()
	}
	return 0
}

// Mutations sums the mutation counters of all tables.
func (s *Store) Mutations() int {
	return s.Creatures.Mutations() +
		s.LureCreatures.Mutations() +
		s.POIs.Mutations() +
		s.Controls.Mutations() +
		s.Scans.Mutations() +
		s.SpawnTimers.Mutations() +
		s.Zones.Mutations()
}
