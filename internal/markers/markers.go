// Package markers turns entity records into render markers.
package markers

import (
	"fmt"
	"strconv"
	"time"

	"livemap/internal/derive"
	"livemap/internal/entity"
	"livemap/internal/filter"
	"livemap/internal/geo"
	"livemap/internal/render"
)

const (
	// RangeZoom is the minimum zoom at which radius indicators are drawn.
	RangeZoom = 16

	RangeRadiusMeters = 40
	ScanRadiusMeters  = 70

	creatureIconSize = 30
	poiZIndex        = 2
	scanFillOpacity  = 0.1
)

var factionColors = map[entity.Faction]string{
	entity.FactionNone:   "#999999",
	entity.FactionBlue:   "#0051CF",
	entity.FactionRed:    "#FF260E",
	entity.FactionYellow: "#FECC23",
}

const (
	creatureRangeColor = "#C233F2"
	poiRangeColor      = "#3EB0FF"
	forbiddenZoneColor = "#D62728"
	allowedZoneColor   = "#2CA02C"
)

func CreatureIcon(c entity.Creature) render.Icon {
	name := strconv.Itoa(c.SpeciesID)
	if c.Form != nil && *c.Form > 0 {
		name += "-" + strconv.Itoa(*c.Form)
	}
	return render.Icon{URL: "static/icons/" + name + ".png", Size: creatureIconSize}
}

// CreatureOpacity applies the quality ramp when enabled, otherwise keeps
// creatures fully opaque.
func CreatureOpacity(c entity.Creature, s filter.State, now time.Time) float64 {
	if !s.CreatureOpacity {
		return 1
	}
	q, known := derive.Quality(c.Attack, c.Defense, c.Stamina)
	return derive.CreatureOpacity(q, known, s.MinCreatureOpacity, c.Expires.Sub(now))
}

func Creature(c entity.Creature, s filter.State, now time.Time) render.Marker {
	return render.Marker{
		Kind:     render.KindMarker,
		Layer:    string(entity.CategoryCreatures),
		Position: c.Position,
		Icon:     CreatureIcon(c),
		Opacity:  CreatureOpacity(c, s, now),
	}
}

func LureCreature(c entity.Creature, s filter.State, now time.Time) render.Marker {
	m := Creature(c, s, now)
	m.Layer = string(entity.CategoryLureCreatures)
	return m
}

func POIIcon(p entity.PointOfInterest, now time.Time) render.Icon {
	name := "Pstop"
	if p.Lured(now) {
		name = "PstopLured"
	}
	return render.Icon{URL: "static/forts/" + name + ".png"}
}

func POI(p entity.PointOfInterest, now time.Time) render.Marker {
	return render.Marker{
		Kind:     render.KindMarker,
		Layer:    string(entity.CategoryPOIs),
		Position: p.Position,
		Icon:     POIIcon(p, now),
		Opacity:  1,
		ZIndex:   poiZIndex,
	}
}

// ControlIcon is static/forts/<style>/<faction>[_<tier>].png; uncontested
// structures carry no tier suffix.
func ControlIcon(g entity.ControlStructure, style string) render.Icon {
	if style == "" {
		style = "classic"
	}
	tier := filter.ControlTier(g)
	name := g.Faction.String()
	if g.Faction != entity.FactionNone {
		name += "_" + strconv.Itoa(tier)
	}
	return render.Icon{
		URL:  "static/forts/" + style + "/" + name + ".png",
		Size: derive.ControlIconSize(tier),
	}
}

func Control(g entity.ControlStructure, s filter.State, now time.Time) render.Marker {
	return render.Marker{
		Kind:     render.KindMarker,
		Layer:    string(entity.CategoryControls),
		Position: g.Position,
		Icon:     ControlIcon(g, s.ControlIconStyle),
		Opacity:  derive.StalenessOpacity(filter.ScanAge(g, now), s.Staleness),
	}
}

// ScanColor fades from green to red over the scan lifetime.
func ScanColor(sc entity.ScanSample, now time.Time) string {
	hue := derive.HueFromAge(now.Sub(sc.LastModified), entity.ScanLifetime)
	return fmt.Sprintf("hsl(%s,100%%,50%%)", strconv.FormatFloat(hue, 'f', -1, 64))
}

func Scan(sc entity.ScanSample, now time.Time) render.Marker {
	return render.Marker{
		Kind:      render.KindCircle,
		Layer:     string(entity.CategoryScans),
		Position:  sc.Position,
		Radius:    ScanRadiusMeters,
		FillColor: ScanColor(sc, now),
		Opacity:   scanFillOpacity,
	}
}

// SpawnStyle returns the icon and z-index for a spawn timer at now.
func SpawnStyle(sp entity.SpawnTimer, zoom int, now time.Time) (render.Icon, int) {
	_, hue := derive.HueFromSpawnPhase(sp.AppearOffset, derive.OffsetInHour(now))
	name := "hsl-" + strconv.Itoa(int(hue))
	if hue == 275 {
		name += "-light"
	}
	size := derive.SpawnIconSize(zoom)
	return render.Icon{URL: "static/icons/" + name + ".png", Size: size}, derive.SpawnZIndex(hue)
}

func Spawn(sp entity.SpawnTimer, zoom int, now time.Time) render.Marker {
	icon, z := SpawnStyle(sp, zoom, now)
	return render.Marker{
		Kind:     render.KindMarker,
		Layer:    string(entity.CategorySpawnTimers),
		Position: sp.Position,
		Icon:     icon,
		Opacity:  1,
		ZIndex:   z,
	}
}

func Zone(z entity.ExclusionZone) render.Marker {
	color := allowedZoneColor
	if z.Forbidden {
		color = forbiddenZoneColor
	}
	return render.Marker{
		Kind:      render.KindPolygon,
		Layer:     string(entity.CategoryZones),
		Position:  geo.PolygonCenter(z.Vertices),
		Path:      z.Vertices,
		FillColor: color,
		Opacity:   0.5,
	}
}

// Range is the radius indicator drawn around a creature, POI or control
// structure.
func Range(layer string, center geo.LatLng, color string) render.Marker {
	return render.Marker{
		Kind:      render.KindCircle,
		Layer:     layer + ".range",
		Position:  center,
		Radius:    RangeRadiusMeters,
		FillColor: color,
		Opacity:   0.2,
	}
}

func CreatureRange(c entity.Creature) render.Marker {
	return Range(string(entity.CategoryCreatures), c.Position, creatureRangeColor)
}

func POIRange(p entity.PointOfInterest) render.Marker {
	return Range(string(entity.CategoryPOIs), p.Position, poiRangeColor)
}

func ControlRange(g entity.ControlStructure) render.Marker {
	return Range(string(entity.CategoryControls), g.Position, factionColors[g.Faction])
}

// ShowRanges is the composite condition under which radius indicators may
// exist.
func ShowRanges(s filter.State, zoom int) bool {
	return s.ShowRanges && zoom >= RangeZoom
}

// Extent helpers return the bounds used for viewport containment.
func PointExtent(p geo.LatLng) geo.Bounds {
	return geo.PointBounds(p)
}

func ScanExtent(sc entity.ScanSample) geo.Bounds {
	return geo.CircleBounds(sc.Position, ScanRadiusMeters)
}

func ZoneExtent(z entity.ExclusionZone) geo.Bounds {
	return geo.PolygonBounds(z.Vertices)
}
