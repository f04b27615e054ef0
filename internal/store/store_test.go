package store

import (
	"testing"
	"time"

	"livemap/internal/entity"
	"livemap/internal/geo"
	"livemap/internal/render"
)

func newSurface() *render.Headless {
	return render.NewHeadless(geo.NewBounds(geo.LatLng{Lat: 0, Lng: 0}, geo.LatLng{Lat: 1, Lng: 1}), 15)
}

func TestUpsertPreservesHandle(t *testing.T) {
	surface := newSurface()
	s := New(surface)

	poi := entity.PointOfInterest{ID: "a", Position: geo.LatLng{Lat: 0.5, Lng: 0.5}}
	h := surface.Register(render.Marker{})
	s.POIs.Replace("a", poi, geo.PointBounds(poi.Position), h)

	poi.Name = "Fountain"
	e, changed := s.POIs.Upsert("a", poi, geo.PointBounds(poi.Position))
	if !changed {
		t.Error("expected changed record")
	}
	if e.Handle != h {
		t.Errorf("handle = %v, want %v", e.Handle, h)
	}

	before := s.Mutations()
	if _, changed := s.POIs.Upsert("a", poi, geo.PointBounds(poi.Position)); changed {
		t.Error("identical upsert reported a change")
	}
	if s.Mutations() != before {
		t.Error("identical upsert counted as mutation")
	}
}

func TestReplaceReleasesPreviousHandle(t *testing.T) {
	surface := newSurface()
	s := New(surface)

	old := surface.Register(render.Marker{})
	indicator := surface.Register(render.Marker{Kind: render.KindCircle})
	e := s.POIs.Replace("a", entity.PointOfInterest{ID: "a"}, geo.Bounds{}, old)
	e.Indicator = indicator
	surface.Attach(old)
	e.Shown = true

	fresh := surface.Register(render.Marker{})
	e = s.POIs.Replace("a", entity.PointOfInterest{ID: "a"}, geo.Bounds{}, fresh)

	if _, _, ok := surface.Lookup(old); ok {
		t.Error("previous handle still registered")
	}
	if _, _, ok := surface.Lookup(indicator); ok {
		t.Error("previous indicator still registered")
	}
	if e.Handle != fresh || e.Shown || e.Indicator != 0 {
		t.Errorf("unexpected entry state %+v", e)
	}
}

func TestRemove(t *testing.T) {
	surface := newSurface()
	s := New(surface)

	h := surface.Register(render.Marker{})
	s.Creatures.Replace("enc", entity.Creature{EncounterID: "enc", Expires: time.Now()}, geo.Bounds{}, h)

	if !s.Creatures.Remove("enc") {
		t.Fatal("expected removal")
	}
	if _, _, ok := surface.Lookup(h); ok {
		t.Error("handle not released on removal")
	}

	before := s.Mutations()
	if s.Creatures.Remove("enc") {
		t.Error("removing an absent key reported success")
	}
	if s.Mutations() != before {
		t.Error("removing an absent key counted as mutation")
	}
}

func TestIndependentKeySpaces(t *testing.T) {
	s := New(newSurface())

	s.Creatures.Upsert("same", entity.Creature{EncounterID: "same"}, geo.Bounds{})
	s.LureCreatures.Upsert("same", entity.Creature{EncounterID: "same", SpeciesID: 2}, geo.Bounds{})
	s.POIs.Upsert("same", entity.PointOfInterest{ID: "same"}, geo.Bounds{})

	c, _ := s.Creatures.Get("same")
	if c.Record.SpeciesID != 0 {
		t.Error("lure creature overwrote creature entry")
	}
	if s.Len(entity.CategoryCreatures) != 1 || s.Len(entity.CategoryPOIs) != 1 {
		t.Error("unexpected table sizes")
	}
}

func TestForEachOrderAndRemoval(t *testing.T) {
	s := New(newSurface())
	for _, p := range []geo.LatLng{{Lat: 2, Lng: 1}, {Lat: 1, Lng: 5}, {Lat: 1, Lng: 2}} {
		s.Scans.Upsert(p, entity.ScanSample{Position: p}, geo.PointBounds(p))
	}

	var seen []geo.LatLng
	s.Scans.ForEach(func(k geo.LatLng, _ *Entry[entity.ScanSample]) {
		seen = append(seen, k)
		s.Scans.Remove(k)
	})

	want := []geo.LatLng{{Lat: 1, Lng: 2}, {Lat: 1, Lng: 5}, {Lat: 2, Lng: 1}}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("visit order %v, want %v", seen, want)
		}
	}
	if s.Scans.Len() != 0 {
		t.Error("expected empty table")
	}
}
