package engine

import (
	"strconv"
	"time"

	"livemap/internal/entity"
	"livemap/internal/filter"
	"livemap/internal/markers"
	"livemap/internal/render"
	"livemap/internal/store"
	"livemap/internal/upstream"
)

// admission is a creature that entered the store during this merge.
type admission struct {
	table *store.Table[string, entity.Creature]
	key   string
}

type merger struct {
	engine   *Engine
	filters  filter.State
	now      time.Time
	admitted []admission
}

func (m *merger) merge(req upstream.PollRequest, resp upstream.PollResponse) {
	st := m.engine.store

	if req.Enabled(entity.CategoryCreatures) {
		for _, c := range resp.Creatures {
			m.creature(st.Creatures, c, m.filters.Creature(c, m.now), markers.Creature)
		}
		for _, c := range resp.LureCreatures {
			m.creature(st.LureCreatures, c, m.filters.LureCreature(c, m.now), markers.LureCreature)
		}
	}
	if req.Enabled(entity.CategoryPOIs) {
		for _, p := range resp.POIs {
			m.poi(p)
		}
	}
	if req.Enabled(entity.CategoryControls) {
		for _, g := range resp.Controls {
			m.control(g)
		}
	}
	if req.Enabled(entity.CategoryScans) {
		for _, sc := range resp.Scans {
			m.scan(sc)
		}
	}
	if req.Enabled(entity.CategorySpawnTimers) {
		for _, sp := range resp.SpawnTimers {
			m.spawn(sp)
		}
	}
	if req.Zones && m.filters.Enabled(entity.CategoryZones) {
		for _, z := range resp.Zones {
			m.zone(z)
		}
	}
}

type creatureMarker func(entity.Creature, filter.State, time.Time) render.Marker

func (m *merger) creature(t *store.Table[string, entity.Creature], c entity.Creature, reason filter.Reason, build creatureMarker) {
	if reason != filter.Admitted {
		return
	}
	s := m.engine.surface

	if prev, ok := t.Get(c.EncounterID); ok {
		c = c.KeepKnown(prev.Record)
	}
	e, changed := t.Upsert(c.EncounterID, c, markers.PointExtent(c.Position))
	switch {
	case e.Handle == 0:
		e.Handle = s.Register(build(c, m.filters, m.now))
		m.admitted = append(m.admitted, admission{table: t, key: c.EncounterID})
	case changed:
		mk := build(c, m.filters, m.now)
		s.Move(e.Handle, c.Position)
		s.SetIcon(e.Handle, mk.Icon)
		s.SetOpacity(e.Handle, mk.Opacity)
	}
}

// poi replaces the handle when the lure state flips, otherwise updates in
// place.
func (m *merger) poi(p entity.PointOfInterest) {
	if m.filters.POI(p, m.now) != filter.Admitted {
		return
	}
	t := m.engine.store.POIs
	s := m.engine.surface
	extent := markers.PointExtent(p.Position)

	if e, ok := t.Get(p.ID); ok && e.Handle != 0 && e.Record.Lured(m.now) != p.Lured(m.now) {
		t.Replace(p.ID, p, extent, s.Register(markers.POI(p, m.now)))
		return
	}

	e, changed := t.Upsert(p.ID, p, extent)
	switch {
	case e.Handle == 0:
		e.Handle = s.Register(markers.POI(p, m.now))
	case changed:
		s.Move(e.Handle, p.Position)
		s.SetIcon(e.Handle, markers.POIIcon(p, m.now))
	}
}

// control de-renders rejected structures and rebuilds the visual of a
// structure whose faction changed.
func (m *merger) control(g entity.ControlStructure) {
	t := m.engine.store.Controls
	s := m.engine.surface

	if m.filters.Control(g, m.now) != filter.Admitted {
		t.Remove(g.ID)
		return
	}

	extent := markers.PointExtent(g.Position)
	if e, ok := t.Get(g.ID); ok && e.Handle != 0 && e.Record.Faction != g.Faction {
		t.Replace(g.ID, g, extent, s.Register(markers.Control(g, m.filters, m.now)))
		return
	}

	e, changed := t.Upsert(g.ID, g, extent)
	switch {
	case e.Handle == 0:
		e.Handle = s.Register(markers.Control(g, m.filters, m.now))
	case changed:
		mk := markers.Control(g, m.filters, m.now)
		s.SetIcon(e.Handle, mk.Icon)
		s.SetOpacity(e.Handle, mk.Opacity)
	}
}

// scan only moves the timestamp of a sample seen before.
func (m *merger) scan(sc entity.ScanSample) {
	t := m.engine.store.Scans
	s := m.engine.surface

	if e, ok := t.Get(sc.Position); ok {
		if sc.LastModified.After(e.Record.LastModified) {
			t.Upsert(sc.Position, sc, e.Extent)
		}
		return
	}

	e, _ := t.Upsert(sc.Position, sc, markers.ScanExtent(sc))
	e.Handle = s.Register(markers.Scan(sc, m.now))
}

func (m *merger) spawn(sp entity.SpawnTimer) {
	t := m.engine.store.SpawnTimers
	s := m.engine.surface

	e, _ := t.Upsert(sp.ID, sp, markers.PointExtent(sp.Position))
	if e.Handle == 0 {
		e.Handle = s.Register(markers.Spawn(sp, s.Zoom(), m.now))
	}
}

func (m *merger) zone(z entity.ExclusionZone) {
	t := m.engine.store.Zones
	s := m.engine.surface

	e, changed := t.Upsert(z.Name, z, markers.ZoneExtent(z))
	switch {
	case e.Handle == 0:
		e.Handle = s.Register(markers.Zone(z))
	case changed:
		t.Replace(z.Name, z, markers.ZoneExtent(z), s.Register(markers.Zone(z)))
	}
}

func formatTimestamp(ts int64) string {
	return strconv.FormatInt(ts, 10)
}
