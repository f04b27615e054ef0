package session

import (
	"context"
	"fmt"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"livemap/internal/derive"
	"livemap/internal/entity"
	"livemap/internal/filter"
	"livemap/internal/geo"
	"livemap/internal/markers"
	"livemap/internal/selection"
	"livemap/internal/store"
)

// Snapshot exports the entities currently shown on the map.
func (s *Session) Snapshot(ctx context.Context) (*geojson.FeatureCollection, error) {
	var fc *geojson.FeatureCollection
	err := s.do(ctx, func() error {
		fc = export(s.engine.Store(), s.filters, s.surface.Zoom(), s.engine.Now())
		return nil
	})
	return fc, err
}

func point(p geo.LatLng) *geojson.Feature {
	return geojson.NewPointFeature([]float64{p.Lng, p.Lat})
}

func base(f *geojson.Feature, cat entity.Category, key string, sel selection.State) *geojson.Feature {
	f.ID = string(cat) + ":" + key
	f.SetProperty("category", string(cat))
	f.SetProperty("key", key)
	f.SetProperty("selection", sel.String())
	return f
}

func export(st *store.Store, f filter.State, zoom int, now time.Time) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	creatures := func(cat entity.Category, t *store.Table[string, entity.Creature]) {
		t.ForEach(func(key string, e *store.Entry[entity.Creature]) {
			if !e.Shown {
				return
			}
			c := e.Record
			ft := base(point(c.Position), cat, key, e.Selection)
			ft.SetProperty("species_id", c.SpeciesID)
			ft.SetProperty("species_name", c.SpeciesName)
			ft.SetProperty("rarity", c.Rarity)
			ft.SetProperty("origin", string(c.Origin))
			ft.SetProperty("expires", c.Expires.Format(time.RFC3339))
			ft.SetProperty("countdown", derive.NewCountdown(c.Expires, now).String())
			ft.SetProperty("icon", markers.CreatureIcon(c).URL)
			ft.SetProperty("opacity", markers.CreatureOpacity(c, f, now))
			if q, ok := derive.Quality(c.Attack, c.Defense, c.Stamina); ok {
				ft.SetProperty("quality", q)
			}
			if e.ScoutError != "" {
				ft.SetProperty("scout_error", e.ScoutError)
			}
			fc.AddFeature(ft)
		})
	}
	creatures(entity.CategoryCreatures, st.Creatures)
	creatures(entity.CategoryLureCreatures, st.LureCreatures)

	st.POIs.ForEach(func(key string, e *store.Entry[entity.PointOfInterest]) {
		if !e.Shown {
			return
		}
		p := e.Record
		ft := base(point(p.Position), entity.CategoryPOIs, key, e.Selection)
		ft.SetProperty("name", p.Name)
		ft.SetProperty("lured", p.Lured(now))
		if p.Lured(now) {
			ft.SetProperty("lure_expires", p.LureExpires.Format(time.RFC3339))
		}
		ft.SetProperty("icon", markers.POIIcon(p, now).URL)
		fc.AddFeature(ft)
	})

	st.Controls.ForEach(func(key string, e *store.Entry[entity.ControlStructure]) {
		if !e.Shown {
			return
		}
		g := e.Record
		ft := base(point(g.Position), entity.CategoryControls, key, e.Selection)
		ft.SetProperty("name", g.Name)
		ft.SetProperty("faction", g.Faction.String())
		ft.SetProperty("points", g.Points)
		ft.SetProperty("tier", filter.ControlTier(g))
		ft.SetProperty("occupants", len(g.Occupants))
		ft.SetProperty("icon", markers.ControlIcon(g, f.ControlIconStyle).URL)
		fc.AddFeature(ft)
	})

	st.Scans.ForEach(func(key geo.LatLng, e *store.Entry[entity.ScanSample]) {
		if !e.Shown {
			return
		}
		ft := base(point(key), entity.CategoryScans, key.String(), e.Selection)
		ft.SetProperty("last_modified", e.Record.LastModified.Format(time.RFC3339))
		ft.SetProperty("radius", markers.ScanRadiusMeters)
		ft.SetProperty("color", markers.ScanColor(e.Record, now))
		fc.AddFeature(ft)
	})

	st.SpawnTimers.ForEach(func(key string, e *store.Entry[entity.SpawnTimer]) {
		if !e.Shown {
			return
		}
		sp := e.Record
		phase, hue := derive.HueFromSpawnPhase(sp.AppearOffset, derive.OffsetInHour(now))
		icon, z := markers.SpawnStyle(sp, zoom, now)
		ft := base(point(sp.Position), entity.CategorySpawnTimers, key, e.Selection)
		ft.SetProperty("phase", phase.String())
		ft.SetProperty("hue", hue)
		ft.SetProperty("icon", icon.URL)
		ft.SetProperty("z_index", z)
		ft.SetProperty("appears", offsetLabel(sp.AppearOffset))
		ft.SetProperty("disappears", offsetLabel(sp.DisappearOffset))
		ft.SetProperty("uncertain", sp.Uncertain)
		fc.AddFeature(ft)
	})

	st.Zones.ForEach(func(key string, e *store.Entry[entity.ExclusionZone]) {
		if !e.Shown {
			return
		}
		z := e.Record
		ring := make([][]float64, 0, len(z.Vertices)+1)
		for _, v := range z.Vertices {
			ring = append(ring, []float64{v.Lng, v.Lat})
		}
		ring = append(ring, ring[0])
		ft := base(geojson.NewPolygonFeature([][][]float64{ring}), entity.CategoryZones, key, e.Selection)
		ft.SetProperty("forbidden", z.Forbidden)
		ft.SetProperty("color", markers.Zone(z).FillColor)
		fc.AddFeature(ft)
	})

	return fc
}

// offsetLabel renders seconds into the hour as "mm:ss".
func offsetLabel(offset int) string {
	return fmt.Sprintf("%02d:%02d", offset/60, offset%60)
}
