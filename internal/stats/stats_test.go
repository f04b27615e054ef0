package stats

import (
	"testing"
	"time"

	"livemap/internal/entity"
	"livemap/internal/geo"
	"livemap/internal/markers"
	"livemap/internal/render"
	"livemap/internal/store"
)

var (
	now  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	view = geo.NewBounds(geo.LatLng{Lat: 40, Lng: -74}, geo.LatLng{Lat: 40.01, Lng: -73.99})
	in   = geo.LatLng{Lat: 40.005, Lng: -73.995}
	out  = geo.LatLng{Lat: 41, Lng: -73.995}
)

func TestCompute(t *testing.T) {
	st := store.New(render.NewHeadless(view, 15))
	addCreature := func(id string, species int, pos geo.LatLng, expires time.Time) *store.Entry[entity.Creature] {
		c := entity.Creature{EncounterID: id, SpeciesID: species, Position: pos, Expires: expires}
		e, _ := st.Creatures.Upsert(id, c, markers.PointExtent(pos))
		return e
	}
	later := now.Add(time.Minute)
	addCreature("a", 16, in, later)
	addCreature("b", 16, in, later)
	addCreature("c", 25, in, later)
	addCreature("d", 25, out, later)
	addCreature("e", 25, in, now)
	addCreature("f", 25, in, later).Hidden = true

	lure := now.Add(10 * time.Minute)
	st.POIs.Upsert("s1", entity.PointOfInterest{ID: "s1", Position: in, LureExpires: &lure}, markers.PointExtent(in))
	st.POIs.Upsert("s2", entity.PointOfInterest{ID: "s2", Position: in}, markers.PointExtent(in))
	st.Controls.Upsert("g1", entity.ControlStructure{ID: "g1", Position: in, Faction: entity.FactionRed}, markers.PointExtent(in))
	st.Controls.Upsert("g2", entity.ControlStructure{ID: "g2", Position: out, Faction: entity.FactionBlue}, markers.PointExtent(out))

	s := Compute(st, view, now)
	if s.Creatures != 3 {
		t.Errorf("creatures = %d, want 3", s.Creatures)
	}
	if len(s.Species) != 2 || s.Species[0].SpeciesID != 16 || s.Species[0].Count != 2 {
		t.Errorf("species = %+v", s.Species)
	}
	if s.LuredPOIs != 1 || s.UnluredPOIs != 1 {
		t.Errorf("pois lured=%d unlured=%d", s.LuredPOIs, s.UnluredPOIs)
	}
	if s.Controls != 1 || s.Factions["Valor"] != 1 || s.Factions["Mystic"] != 0 {
		t.Errorf("controls = %d, factions = %v", s.Controls, s.Factions)
	}
	if s.Categories[entity.CategoryCreatures] != 6 {
		t.Errorf("stored creatures = %d", s.Categories[entity.CategoryCreatures])
	}
}
