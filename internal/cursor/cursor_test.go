package cursor

import (
	"testing"

	"livemap/internal/entity"
	"livemap/internal/geo"
)

var view = geo.NewBounds(geo.LatLng{Lat: 40, Lng: -74}, geo.LatLng{Lat: 40.01, Lng: -73.99})

func TestInitialStateForcesFullFetch(t *testing.T) {
	m := NewManager(DefaultEpsilon)

	for _, cat := range entity.Polled {
		if m.Cursor(cat) != Unset {
			t.Errorf("%s: cursor initially set", cat)
		}
		if !m.ShouldReset(cat, view) {
			t.Errorf("%s: expected full fetch before the first poll", cat)
		}
	}
}

func TestAdvanceAndContainment(t *testing.T) {
	m := NewManager(DefaultEpsilon)
	m.Advance(entity.CategoryCreatures, "c1", view)

	if m.ShouldReset(entity.CategoryCreatures, view) {
		t.Error("same bounds should poll incrementally")
	}

	nudged := geo.NewBounds(
		geo.LatLng{Lat: view.SW.Lat + 0.0001, Lng: view.SW.Lng + 0.0001},
		geo.LatLng{Lat: view.NE.Lat + 0.0001, Lng: view.NE.Lng + 0.0001},
	)
	if m.ShouldReset(entity.CategoryCreatures, nudged) {
		t.Error("movement inside epsilon should poll incrementally")
	}

	moved := geo.NewBounds(
		geo.LatLng{Lat: view.SW.Lat + 0.02, Lng: view.SW.Lng},
		geo.LatLng{Lat: view.NE.Lat + 0.02, Lng: view.NE.Lng},
	)
	if !m.ShouldReset(entity.CategoryCreatures, moved) {
		t.Error("viewport outside the fetched bounds must reset")
	}
}

func TestForceResetIsPerCategory(t *testing.T) {
	m := NewManager(DefaultEpsilon)
	for _, cat := range entity.Polled {
		m.Advance(cat, "x", view)
	}

	m.ForceReset(entity.CategoryPOIs)

	if !m.ShouldReset(entity.CategoryPOIs, view) {
		t.Error("forced category should reset")
	}
	if m.Cursor(entity.CategoryPOIs) != Unset {
		t.Error("forced category keeps its cursor")
	}
	if m.ShouldReset(entity.CategoryCreatures, view) {
		t.Error("creature cursor should be unaffected")
	}

	m.Advance(entity.CategoryPOIs, "y", view)
	if m.ShouldReset(entity.CategoryPOIs, view) {
		t.Error("advance should clear the forced reset")
	}
}
