package engine

import (
	"livemap/internal/entity"
	"livemap/internal/filter"
	"livemap/internal/lifecycle"
	"livemap/internal/markers"
	"livemap/internal/render"
	"livemap/internal/selection"
	"livemap/internal/shared/errors"
	"livemap/internal/store"
	"livemap/internal/upstream"
)

// RedrawCreatures rebuilds every creature visual, for changes that affect
// all of them at once such as the opacity ramp or the notify lists. Alerts
// are not delivered again.
func (e *Engine) RedrawCreatures(f filter.State) lifecycle.Report {
	now := e.now()
	var admitted []admission

	for _, t := range []*store.Table[string, entity.Creature]{e.store.Creatures, e.store.LureCreatures} {
		t.ForEach(func(key string, entry *store.Entry[entity.Creature]) {
			rec := entry.Record
			t.Replace(key, rec, entry.Extent, e.surface.Register(markers.Creature(rec, f, now)))
			admitted = append(admitted, admission{table: t, key: key})
		})
	}

	report := e.lifecycle.Run(e.store, f, now)
	e.evaluate(admitted, f, now, true)
	e.observer.Report(report)
	e.logger.Debug("Creatures redrawn", "operation", "RedrawCreatures", "count", len(admitted))
	return report
}

// HideCreature hides one creature until it expires.
func (e *Engine) HideCreature(f filter.State, encounterID string) (lifecycle.Report, error) {
	entry, ok := e.store.Creatures.Get(encounterID)
	if !ok {
		entry, ok = e.store.LureCreatures.Get(encounterID)
	}
	if !ok {
		return lifecycle.Report{}, errors.NotFoundf("creature %s not found", encounterID)
	}
	entry.Hidden = true
	return e.Reconcile(f), nil
}

// Creature returns the stored creature for encounterID.
func (e *Engine) Creature(encounterID string) (entity.Creature, bool) {
	if entry, ok := e.store.Creatures.Get(encounterID); ok {
		return entry.Record, true
	}
	if entry, ok := e.store.LureCreatures.Get(encounterID); ok {
		return entry.Record, true
	}
	return entity.Creature{}, false
}

// ApplyScout merges a scout result into the stored creature, or records
// the scout error on it. Existing attributes are kept on failure.
func (e *Engine) ApplyScout(f filter.State, encounterID string, res upstream.ScoutResult, scoutErr error) (entity.Creature, error) {
	for _, t := range []*store.Table[string, entity.Creature]{e.store.Creatures, e.store.LureCreatures} {
		entry, ok := t.Get(encounterID)
		if !ok {
			continue
		}
		if scoutErr != nil {
			entry.ScoutError = scoutErr.Error()
			return entry.Record, scoutErr
		}

		entry.ScoutError = ""
		updated := res.Apply(entry.Record)
		if _, changed := t.Upsert(encounterID, updated, markers.PointExtent(updated.Position)); changed && entry.Handle != 0 {
			mk := markers.Creature(updated, f, e.now())
			e.surface.Move(entry.Handle, updated.Position)
			e.surface.SetOpacity(entry.Handle, mk.Opacity)
		}
		return updated, nil
	}
	return entity.Creature{}, errors.NotFoundf("creature %s not found", encounterID)
}

// Select feeds a selection event to one entity and returns its new state.
// Clicking a creature also stops its animation for good.
func (e *Engine) Select(cat entity.Category, key string, ev selection.Event) (selection.State, error) {
	st := e.store
	switch cat {
	case entity.CategoryCreatures:
		return selectCreature(e.surface, st.Creatures, key, ev)
	case entity.CategoryLureCreatures:
		return selectCreature(e.surface, st.LureCreatures, key, ev)
	case entity.CategoryPOIs:
		return selectIn(st.POIs, key, ev)
	case entity.CategoryControls:
		return selectIn(st.Controls, key, ev)
	case entity.CategorySpawnTimers:
		return selectIn(st.SpawnTimers, key, ev)
	case entity.CategoryZones:
		return selectIn(st.Zones, key, ev)
	}
	return selection.Closed, errors.Validationf("category %q has no selectable entities", cat)
}

func selectIn[V any](t *store.Table[string, V], key string, ev selection.Event) (selection.State, error) {
	entry, ok := t.Get(key)
	if !ok {
		return selection.Closed, errors.NotFoundf("%s %s not found", t.Name(), key)
	}
	entry.Selection = selection.Next(entry.Selection, ev)
	return entry.Selection, nil
}

func selectCreature(s render.Surface, t *store.Table[string, entity.Creature], key string, ev selection.Event) (selection.State, error) {
	state, err := selectIn(t, key, ev)
	if err != nil {
		return state, err
	}
	if ev == selection.Click {
		entry, _ := t.Get(key)
		entry.AnimationDisabled = true
		entry.SuspendedAnimation = render.AnimationNone
		if entry.Handle != 0 {
			s.SetAnimation(entry.Handle, render.AnimationNone)
		}
	}
	return state, nil
}
