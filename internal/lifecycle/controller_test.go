package lifecycle

import (
	"testing"
	"time"

	"livemap/internal/entity"
	"livemap/internal/filter"
	"livemap/internal/geo"
	"livemap/internal/markers"
	"livemap/internal/render"
	"livemap/internal/store"
)

var (
	now  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	view = geo.NewBounds(geo.LatLng{Lat: 40, Lng: -74}, geo.LatLng{Lat: 40.01, Lng: -73.99})
	p    = geo.LatLng{Lat: 40.005, Lng: -73.995}
	away = geo.NewBounds(geo.LatLng{Lat: 41, Lng: -74}, geo.LatLng{Lat: 41.01, Lng: -73.99})
)

func setup(t *testing.T) (*render.Headless, *store.Store, *Controller) {
	t.Helper()
	surface := render.NewHeadless(view, 15)
	return surface, store.New(surface), New(surface)
}

func creaturesOn() *filter.Builder {
	return filter.NewBuilder().Show(entity.CategoryCreatures, true)
}

func addCreature(st *store.Store, id string, expires time.Time) *store.Entry[entity.Creature] {
	c := entity.Creature{EncounterID: id, SpeciesID: 25, Position: p, Expires: expires}
	e, _ := st.Creatures.Upsert(id, c, markers.PointExtent(c.Position))
	return e
}

func TestRunIsIdempotent(t *testing.T) {
	surface, st, ctl := setup(t)
	f := creaturesOn().Build()
	addCreature(st, "e1", now.Add(time.Minute))

	first := ctl.Run(st, f, now)
	if first.Attached != 1 {
		t.Fatalf("first run attached %d", first.Attached)
	}
	_, attaches, detaches := surface.Counts()

	second := ctl.Run(st, f, now)
	if !second.Empty() {
		t.Errorf("second run changed %+v", second.Changes)
	}
	if _, a, d := surface.Counts(); a != attaches || d != detaches {
		t.Errorf("surface calls changed: attaches %d→%d detaches %d→%d", attaches, a, detaches, d)
	}
}

func TestExpiryRemovesCreature(t *testing.T) {
	surface, st, ctl := setup(t)
	f := creaturesOn().Build()
	e := addCreature(st, "e1", now.Add(60*time.Second))

	ctl.Run(st, f, now)
	h := e.Handle
	if _, attached, _ := surface.Lookup(h); !attached {
		t.Fatal("creature not shown")
	}

	r := ctl.Run(st, f, now.Add(61*time.Second))
	if r.Removed != 1 || st.Creatures.Len() != 0 {
		t.Fatalf("removed = %d, len = %d", r.Removed, st.Creatures.Len())
	}
	if _, _, ok := surface.Lookup(h); ok {
		t.Error("handle not released")
	}
}

func TestExpiryBoundaryIsExpired(t *testing.T) {
	_, st, ctl := setup(t)
	addCreature(st, "e1", now)

	if r := ctl.Run(st, creaturesOn().Build(), now); r.Removed != 1 {
		t.Errorf("creature expiring exactly now was kept")
	}
}

func TestPanAwaySuspendsAnimation(t *testing.T) {
	surface, st, ctl := setup(t)
	f := creaturesOn().Build()
	e := addCreature(st, "e1", now.Add(time.Hour))
	ctl.Run(st, f, now)
	surface.SetAnimation(e.Handle, render.AnimationBounce)

	surface.SetViewport(away, 15)
	r := ctl.Run(st, f, now)
	if r.Detached != 1 || e.Shown || st.Creatures.Len() != 1 {
		t.Fatalf("detached = %d shown = %v len = %d", r.Detached, e.Shown, st.Creatures.Len())
	}
	if surface.Animation(e.Handle) != render.AnimationNone || e.SuspendedAnimation != render.AnimationBounce {
		t.Error("animation not suspended")
	}

	surface.SetViewport(view, 15)
	r = ctl.Run(st, f, now)
	if r.Attached != 1 || surface.Animation(e.Handle) != render.AnimationBounce {
		t.Error("animation not restored on pan back")
	}
}

func TestRangeIndicators(t *testing.T) {
	surface, st, ctl := setup(t)
	f := creaturesOn().With(func(s *filter.State) { s.ShowRanges = true }).Build()
	e := addCreature(st, "e1", now.Add(time.Hour))

	if r := ctl.Run(st, f, now); r.IndicatorsAttached != 0 {
		t.Error("indicator attached below the zoom threshold")
	}

	surface.SetViewport(view, markers.RangeZoom)
	if r := ctl.Run(st, f, now); r.IndicatorsAttached != 1 || !e.IndicatorShown {
		t.Fatal("indicator missing at range zoom")
	}
	ind := e.Indicator

	surface.SetViewport(away, markers.RangeZoom)
	ctl.Run(st, f, now)
	if _, attached, _ := surface.Lookup(ind); attached {
		t.Error("indicator stays attached while its marker is hidden")
	}

	surface.SetViewport(view, markers.RangeZoom)
	off := creaturesOn().Build()
	ctl.Run(st, off, now)
	if e.IndicatorShown {
		t.Error("indicator shown with ranges disabled")
	}
}

func TestFilterChangeRemovesControl(t *testing.T) {
	_, st, ctl := setup(t)
	g := entity.ControlStructure{ID: "g1", Position: p, Faction: entity.FactionRed, Points: 5000, LastScanned: now.Add(-time.Minute)}
	st.Controls.Upsert(g.ID, g, markers.PointExtent(g.Position))

	show := filter.NewBuilder().Show(entity.CategoryControls, true)
	ctl.Run(st, show.Build(), now)
	if st.Controls.Len() != 1 {
		t.Fatal("control not kept")
	}

	blueOnly := show.With(func(s *filter.State) { s.Controls.Faction = entity.FactionBlue }).Build()
	ctl.Run(st, blueOnly, now)
	if st.Controls.Len() != 0 {
		t.Error("control of another faction kept")
	}
}

func TestDisabledCategoryIsCleared(t *testing.T) {
	_, st, ctl := setup(t)
	addCreature(st, "e1", now.Add(time.Hour))
	st.LureCreatures.Upsert("l1", entity.Creature{EncounterID: "l1", Position: p, Expires: now.Add(time.Hour)}, markers.PointExtent(p))

	r := ctl.Run(st, filter.NewBuilder().Build(), now)
	if st.Creatures.Len() != 0 || st.LureCreatures.Len() != 0 || r.Removed != 2 {
		t.Errorf("creatures = %d lure = %d removed = %d", st.Creatures.Len(), st.LureCreatures.Len(), r.Removed)
	}
}

func TestHiddenCreatureStaysDetached(t *testing.T) {
	_, st, ctl := setup(t)
	f := creaturesOn().Build()
	e := addCreature(st, "e1", now.Add(time.Hour))
	ctl.Run(st, f, now)

	e.Hidden = true
	if r := ctl.Run(st, f, now); r.Detached != 1 || st.Creatures.Len() != 1 {
		t.Errorf("hidden creature: %+v", r)
	}
}

func TestExpiredLureRebuildsMarkerOnce(t *testing.T) {
	surface, st, ctl := setup(t)
	f := filter.NewBuilder().Show(entity.CategoryPOIs, true).Build()
	until := now.Add(time.Minute)
	poi := entity.PointOfInterest{ID: "s1", Position: p, LureExpires: &until}
	st.POIs.Upsert(poi.ID, poi, markers.PointExtent(poi.Position))

	ctl.Run(st, f, now)
	e, _ := st.POIs.Get("s1")
	lured := e.Handle
	if lured == 0 || !e.Shown {
		t.Fatalf("lured POI not attached: handle=%d shown=%v", lured, e.Shown)
	}

	later := until.Add(time.Second)
	ctl.Run(st, f, later)
	e, _ = st.POIs.Get("s1")
	if e.Handle == lured {
		t.Error("marker kept after lure expired")
	}
	if e.Record.LureExpires != nil {
		t.Error("lure expiry still set")
	}
	if !e.Shown {
		t.Error("rebuilt marker not attached")
	}
	if _, _, ok := surface.Lookup(lured); ok {
		t.Error("old marker not released")
	}

	rebuilt := e.Handle
	ctl.Run(st, f, later.Add(time.Minute))
	if e, _ = st.POIs.Get("s1"); e.Handle != rebuilt {
		t.Errorf("marker rebuilt again: %d -> %d", rebuilt, e.Handle)
	}
}
