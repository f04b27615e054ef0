package session

import (
	"context"
	"slices"

	"livemap/internal/engine"
	"livemap/internal/entity"
	"livemap/internal/filter"
	"livemap/internal/geo"
	"livemap/internal/lifecycle"
	"livemap/internal/prefs"
	"livemap/internal/selection"
	"livemap/internal/shared/errors"
	"livemap/internal/stats"
	"livemap/internal/upstream"
)

const maxZoom = 22

// Viewport is the map state reported by the browser.
type Viewport struct {
	Bounds geo.Bounds `json:"bounds"`
	Zoom   int        `json:"zoom"`
}

func (v Viewport) Validate() error {
	b := v.Bounds
	switch {
	case b.IsEmpty():
		return errors.Validation("viewport bounds are empty")
	case b.SW.Lat < -90 || b.NE.Lat > 90 || b.SW.Lat > b.NE.Lat:
		return errors.Validation("viewport latitude out of range")
	case b.SW.Lng < -180 || b.NE.Lng > 180:
		return errors.Validation("viewport longitude out of range")
	case v.Zoom < 0 || v.Zoom > maxZoom:
		return errors.Validationf("zoom must be between 0 and %d", maxZoom)
	}
	return nil
}

// SetViewport records the browser viewport and reconciles the visuals
// against it. The next poll decides on its own whether cursors reset.
func (s *Session) SetViewport(ctx context.Context, v Viewport) (lifecycle.Report, error) {
	if err := v.Validate(); err != nil {
		return lifecycle.Report{}, err
	}
	var report lifecycle.Report
	err := s.do(ctx, func() error {
		s.surface.SetViewport(v.Bounds, v.Zoom)
		report = s.engine.Reconcile(s.filters)
		return nil
	})
	return report, err
}

func (s *Session) Viewport(ctx context.Context) (Viewport, error) {
	var v Viewport
	err := s.do(ctx, func() error {
		v = Viewport{Bounds: s.surface.Viewport(), Zoom: s.surface.Zoom()}
		return nil
	})
	return v, err
}

func (s *Session) Preferences(ctx context.Context) (prefs.Preferences, error) {
	var p prefs.Preferences
	err := s.do(ctx, func() error {
		p = s.prefs
		return nil
	})
	return p, err
}

// UpdatePreferences saves p and switches the session to it. Categories
// whose server-side result set changed get a full fetch on the next poll;
// creature visuals are rebuilt when their styling or alert rules changed.
func (s *Session) UpdatePreferences(ctx context.Context, p prefs.Preferences) (prefs.Preferences, error) {
	logger := s.logger.With("operation", "UpdatePreferences")

	p.ID = s.prefsID
	if err := s.prefStore.Put(ctx, p); err != nil {
		return prefs.Preferences{}, err
	}

	err := s.do(ctx, func() error {
		old := s.filters
		s.prefs = p
		reincluded := s.exclusions.Set(p.Excluded)
		s.filters = s.buildFilters()
		s.version++

		resets := filter.Resets(old, s.filters)
		s.engine.ForceReset(resets...)

		if creatureStyleChanged(old, s.filters) {
			s.engine.RedrawCreatures(s.filters)
		} else {
			s.engine.Reconcile(s.filters)
		}
		logger.Info("Preferences applied", "resets", resets, "reincluded", reincluded)
		return nil
	})
	return p, err
}

func creatureStyleChanged(old, next filter.State) bool {
	return old.CreatureOpacity != next.CreatureOpacity ||
		old.MinCreatureOpacity != next.MinCreatureOpacity ||
		old.Notify.MinQuality != next.Notify.MinQuality ||
		!sameKeys(old.Notify.Species, next.Notify.Species) ||
		!sameKeys(old.Notify.Rarities, next.Notify.Rarities)
}

func sameKeys[K comparable](a, b map[K]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// Scout fetches the detailed attributes of one creature. A backend failure
// is stored on the creature and returned; its known attributes are kept.
func (s *Session) Scout(ctx context.Context, encounterID string) (entity.Creature, error) {
	var c entity.Creature
	err := s.do(ctx, func() error {
		var ok bool
		c, ok = s.engine.Creature(encounterID)
		if !ok {
			return errors.NotFoundf("creature %s not found", encounterID)
		}
		return nil
	})
	if err != nil {
		return entity.Creature{}, err
	}

	res, scoutErr := s.backend.Scout(ctx, encounterID, c.Expires)

	var updated entity.Creature
	err = s.do(ctx, func() error {
		var applyErr error
		updated, applyErr = s.engine.ApplyScout(s.filters, encounterID, res, scoutErr)
		return applyErr
	})
	return updated, err
}

func (s *Session) HideCreature(ctx context.Context, encounterID string) error {
	return s.do(ctx, func() error {
		_, err := s.engine.HideCreature(s.filters, encounterID)
		return err
	})
}

// ChangeLocation moves the search location. The new location is shown at
// once and rolled back if the backend refuses it.
func (s *Session) ChangeLocation(ctx context.Context, p geo.LatLng) (geo.LatLng, error) {
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return geo.LatLng{}, errors.Validationf("location %s out of range", p)
	}

	var previous geo.LatLng
	err := s.do(ctx, func() error {
		previous, s.location = s.location, p
		return nil
	})
	if err != nil {
		return geo.LatLng{}, err
	}

	if err := s.backend.ChangeLocation(ctx, p); err != nil {
		s.logger.Warn("Location change failed, rolling back",
			"operation", "ChangeLocation", "location", p.String(), "error", err)
		rollbackErr := s.do(context.WithoutCancel(ctx), func() error {
			if s.location == p {
				s.location = previous
			}
			return nil
		})
		if rollbackErr != nil {
			return previous, rollbackErr
		}
		return previous, err
	}
	return p, nil
}

func (s *Session) Location(ctx context.Context) (geo.LatLng, error) {
	var p geo.LatLng
	err := s.do(ctx, func() error {
		p = s.location
		return nil
	})
	return p, err
}

// SetSearch toggles the backend search and returns the confirmed status.
func (s *Session) SetSearch(ctx context.Context, on bool) (upstream.SearchStatus, error) {
	if err := s.backend.SetSearch(ctx, on); err != nil {
		return upstream.SearchStatus{}, err
	}
	st, err := s.backend.SearchStatus(ctx)
	if err != nil {
		return upstream.SearchStatus{}, err
	}
	s.publisher.Status(st)
	err = s.do(ctx, func() error {
		s.status = st
		return nil
	})
	return st, err
}

// SearchStatus returns the status from the last status tick.
func (s *Session) SearchStatus(ctx context.Context) (upstream.SearchStatus, error) {
	var st upstream.SearchStatus
	err := s.do(ctx, func() error {
		st = s.status
		return nil
	})
	return st, err
}

func (s *Session) PointHistory(ctx context.Context, spawnPointID string) ([]upstream.SpeciesCount, error) {
	if spawnPointID == "" {
		return nil, errors.Validation("spawn point id is required")
	}
	return s.backend.PointHistory(ctx, spawnPointID)
}

// AreaHistory queries b, or the current viewport when b is empty.
func (s *Session) AreaHistory(ctx context.Context, b geo.Bounds) ([]upstream.PointSummary, error) {
	if b.IsEmpty() {
		v, err := s.Viewport(ctx)
		if err != nil {
			return nil, err
		}
		b = v.Bounds
	}
	return s.backend.AreaHistory(ctx, b)
}

func (s *Session) Stats(ctx context.Context) (stats.Summary, error) {
	var sum stats.Summary
	err := s.do(ctx, func() error {
		sum = stats.Compute(s.engine.Store(), s.surface.Viewport(), s.engine.Now())
		return nil
	})
	return sum, err
}

func (s *Session) Select(ctx context.Context, cat entity.Category, key string, ev selection.Event) (selection.State, error) {
	var st selection.State
	err := s.do(ctx, func() error {
		var selErr error
		st, selErr = s.engine.Select(cat, key, ev)
		return selErr
	})
	return st, err
}

// Notices returns the recent poll failures, oldest first.
func (s *Session) Notices(ctx context.Context) ([]engine.Notice, error) {
	var out []engine.Notice
	err := s.do(ctx, func() error {
		out = slices.Clone(s.notices)
		return nil
	})
	return out, err
}

func (s *Session) DismissNotice(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		i := slices.IndexFunc(s.notices, func(n engine.Notice) bool { return n.ID == id })
		if i < 0 {
			return errors.NotFoundf("notice %s not found", id)
		}
		s.notices = slices.Delete(s.notices, i, i+1)
		return nil
	})
}

// SyncState summarises the last applied poll.
type SyncState struct {
	InFlight  bool  `json:"in_flight"`
	Admitted  int   `json:"admitted"`
	Mutations int   `json:"mutations"`
	Dropped   int   `json:"dropped"`
	Alerts    int   `json:"alerts"`
	Failed    bool  `json:"failed"`
	Excluded  []int `json:"excluded"`
	Pending   []int `json:"pending_reinclusion"`
}

func (s *Session) SyncState(ctx context.Context) (SyncState, error) {
	var st SyncState
	err := s.do(ctx, func() error {
		r := s.lastResult
		st = SyncState{
			InFlight:  s.engine.InFlight(),
			Admitted:  r.Admitted,
			Mutations: r.Mutations,
			Dropped:   r.Dropped,
			Alerts:    len(r.Alerts),
			Failed:    r.Err != nil,
			Excluded:  s.exclusions.Excluded(),
			Pending:   s.exclusions.Pending(),
		}
		return nil
	})
	return st, err
}
