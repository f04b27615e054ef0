// Package lifecycle reconciles stored entities with the viewport and the
// current filter snapshot after every merge.
package lifecycle

import (
	"fmt"
	"log/slog"
	"time"

	"livemap/internal/entity"
	"livemap/internal/filter"
	"livemap/internal/geo"
	"livemap/internal/markers"
	"livemap/internal/render"
	"livemap/internal/store"
)

type Action string

const (
	ActionAttached Action = "attached"
	ActionDetached Action = "detached"
	ActionRemoved  Action = "removed"
)

// Change is one visible transition made during a run.
type Change struct {
	Category entity.Category `json:"category"`
	Key      string          `json:"key"`
	Action   Action          `json:"action"`
}

// Report summarises a run.
type Report struct {
	Attached           int      `json:"attached"`
	Detached           int      `json:"detached"`
	Removed            int      `json:"removed"`
	IndicatorsAttached int      `json:"indicators_attached"`
	IndicatorsDetached int      `json:"indicators_detached"`
	Changes            []Change `json:"changes,omitempty"`
}

func (r *Report) record(cat entity.Category, key string, a Action) {
	switch a {
	case ActionAttached:
		r.Attached++
	case ActionDetached:
		r.Detached++
	case ActionRemoved:
		r.Removed++
	}
	r.Changes = append(r.Changes, Change{Category: cat, Key: key, Action: a})
}

// Empty reports a run that changed nothing visible.
func (r Report) Empty() bool {
	return len(r.Changes) == 0 && r.IndicatorsAttached == 0 && r.IndicatorsDetached == 0
}

type Controller struct {
	surface render.Surface
	logger  *slog.Logger
}

func New(surface render.Surface) *Controller {
	return &Controller{
		surface: surface,
		logger:  slog.With("component", "lifecycle"),
	}
}

// rules describes how one category is reconciled.
type rules[V any] struct {
	category entity.Category
	// reject reports the record as expired or filtered out.
	reject func(V) bool
	// suppress hides the record without removing it.
	suppress func(e *store.Entry[V]) bool
	marker   func(V) render.Marker
	// indicator builds the radius indicator; nil when the category has none.
	indicator func(V) render.Marker
	// refresh updates time-dependent styling of a shown marker.
	refresh func(h render.Handle, v V)
}

// Run applies the transition rules to every stored entity. Running it twice
// on an unchanged store and viewport makes no attach or detach calls.
func (c *Controller) Run(st *store.Store, f filter.State, now time.Time) Report {
	var report Report

	for _, cat := range entity.Categories {
		if !f.Enabled(cat) {
			c.clear(st, cat, &report)
		}
	}

	view := c.surface.Viewport()
	zoom := c.surface.Zoom()
	ranges := markers.ShowRanges(f, zoom)

	runTable(c, st.Creatures, rules[entity.Creature]{
		category: entity.CategoryCreatures,
		reject:   func(v entity.Creature) bool { return f.Creature(v, now) != filter.Admitted },
		suppress: func(e *store.Entry[entity.Creature]) bool { return e.Hidden },
		marker:   func(v entity.Creature) render.Marker { return markers.Creature(v, f, now) },
		indicator: func(v entity.Creature) render.Marker {
			return markers.CreatureRange(v)
		},
		refresh: func(h render.Handle, v entity.Creature) {
			if f.CreatureOpacity {
				c.surface.SetOpacity(h, markers.CreatureOpacity(v, f, now))
			}
		},
	}, view, ranges, &report)

	runTable(c, st.LureCreatures, rules[entity.Creature]{
		category: entity.CategoryLureCreatures,
		reject:   func(v entity.Creature) bool { return f.LureCreature(v, now) != filter.Admitted },
		suppress: func(e *store.Entry[entity.Creature]) bool { return e.Hidden },
		marker:   func(v entity.Creature) render.Marker { return markers.LureCreature(v, f, now) },
	}, view, ranges, &report)

	c.expireLures(st, now)
	runTable(c, st.POIs, rules[entity.PointOfInterest]{
		category:  entity.CategoryPOIs,
		reject:    func(v entity.PointOfInterest) bool { return f.POI(v, now) != filter.Admitted },
		marker:    func(v entity.PointOfInterest) render.Marker { return markers.POI(v, now) },
		indicator: markers.POIRange,
	}, view, ranges, &report)

	runTable(c, st.Controls, rules[entity.ControlStructure]{
		category:  entity.CategoryControls,
		reject:    func(v entity.ControlStructure) bool { return f.Control(v, now) != filter.Admitted },
		marker:    func(v entity.ControlStructure) render.Marker { return markers.Control(v, f, now) },
		indicator: markers.ControlRange,
		refresh: func(h render.Handle, v entity.ControlStructure) {
			m := markers.Control(v, f, now)
			c.surface.SetOpacity(h, m.Opacity)
		},
	}, view, ranges, &report)

	runTable(c, st.Scans, rules[entity.ScanSample]{
		category: entity.CategoryScans,
		reject:   func(v entity.ScanSample) bool { return v.Expired(now) },
		marker:   func(v entity.ScanSample) render.Marker { return markers.Scan(v, now) },
		refresh: func(h render.Handle, v entity.ScanSample) {
			c.surface.SetFillColor(h, markers.ScanColor(v, now))
		},
	}, view, ranges, &report)

	runTable(c, st.SpawnTimers, rules[entity.SpawnTimer]{
		category: entity.CategorySpawnTimers,
		marker:   func(v entity.SpawnTimer) render.Marker { return markers.Spawn(v, zoom, now) },
		refresh: func(h render.Handle, v entity.SpawnTimer) {
			icon, z := markers.SpawnStyle(v, zoom, now)
			c.surface.SetIcon(h, icon)
			c.surface.SetZIndex(h, z)
		},
	}, view, ranges, &report)

	runTable(c, st.Zones, rules[entity.ExclusionZone]{
		category: entity.CategoryZones,
		marker:   markers.Zone,
	}, view, ranges, &report)

	if !report.Empty() {
		c.logger.Debug("Lifecycle run completed",
			"operation", "Run",
			"attached", report.Attached,
			"detached", report.Detached,
			"removed", report.Removed,
			"indicators_attached", report.IndicatorsAttached,
			"indicators_detached", report.IndicatorsDetached)
	}
	return report
}

func (c *Controller) clear(st *store.Store, cat entity.Category, report *Report) {
	if n := st.Clear(cat); n > 0 {
		report.Removed += n
		report.Changes = append(report.Changes, Change{Category: cat, Key: "*", Action: ActionRemoved})
		c.logger.Debug("Cleared disabled category", "operation", "Run", "category", cat, "count", n)
	}
}

// expireLures rebuilds the marker of POIs whose lure ran out since the last
// merge. The expiry is cleared so each POI is rebuilt once.
func (c *Controller) expireLures(st *store.Store, now time.Time) {
	st.POIs.ForEach(func(key string, e *store.Entry[entity.PointOfInterest]) {
		if e.Handle == 0 || e.Record.LureExpires == nil || e.Record.Lured(now) {
			return
		}
		rec := e.Record
		rec.LureExpires = nil
		st.POIs.Replace(key, rec, markers.PointExtent(rec.Position), c.surface.Register(markers.POI(rec, now)))
	})
}

func keyString(k any) string {
	switch v := k.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func runTable[K comparable, V any](c *Controller, t *store.Table[K, V], r rules[V], view geo.Bounds, ranges bool, report *Report) {
	t.ForEach(func(key K, e *store.Entry[V]) {
		if r.reject != nil && r.reject(e.Record) {
			t.Remove(key)
			report.record(r.category, keyString(key), ActionRemoved)
			return
		}

		if e.Handle == 0 {
			e.Handle = c.surface.Register(r.marker(e.Record))
			e.Shown = false
		}

		visible := view.Intersects(e.Extent)
		if r.suppress != nil && r.suppress(e) {
			visible = false
		}

		switch {
		case visible && !e.Shown:
			attach(c.surface, e)
			report.record(r.category, keyString(key), ActionAttached)
		case !visible && e.Shown:
			detach(c.surface, e)
			report.record(r.category, keyString(key), ActionDetached)
		}

		if e.Shown && r.refresh != nil {
			r.refresh(e.Handle, e.Record)
		}
		if r.indicator != nil {
			indicator(c.surface, e, r.indicator, ranges, report)
		}
	})
}

func attach[V any](s render.Surface, e *store.Entry[V]) {
	s.Attach(e.Handle)
	e.Shown = true
	if e.SuspendedAnimation != render.AnimationNone && !e.AnimationDisabled {
		s.SetAnimation(e.Handle, e.SuspendedAnimation)
	}
	e.SuspendedAnimation = render.AnimationNone
}

func detach[V any](s render.Surface, e *store.Entry[V]) {
	if a := s.Animation(e.Handle); a != render.AnimationNone {
		e.SuspendedAnimation = a
		s.SetAnimation(e.Handle, render.AnimationNone)
	}
	s.Detach(e.Handle)
	e.Shown = false
}

// indicator keeps the radius indicator in line with the composite range
// condition. It only exists while the base marker is shown.
func indicator[V any](s render.Surface, e *store.Entry[V], build func(V) render.Marker, ranges bool, report *Report) {
	want := ranges && e.Shown
	switch {
	case want && e.Indicator == 0:
		e.Indicator = s.Register(build(e.Record))
		fallthrough
	case want && !e.IndicatorShown:
		s.Attach(e.Indicator)
		e.IndicatorShown = true
		report.IndicatorsAttached++
	case !want && e.IndicatorShown:
		s.Detach(e.Indicator)
		e.IndicatorShown = false
		report.IndicatorsDetached++
	}
}
