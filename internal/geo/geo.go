package geo

import (
	"fmt"
	"math"
)

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p LatLng) String() string {
	return fmt.Sprintf("%v|%v", p.Lat, p.Lng)
}

// Bounds is an axis-aligned box described by its south-west and north-east
// corners. The zero value is the empty box.
type Bounds struct {
	SW LatLng `json:"sw"`
	NE LatLng `json:"ne"`
}

func NewBounds(sw, ne LatLng) Bounds {
	return Bounds{SW: sw, NE: ne}
}

// PointBounds is the degenerate box around a single coordinate.
func PointBounds(p LatLng) Bounds {
	return Bounds{SW: p, NE: p}
}

func (b Bounds) IsEmpty() bool {
	return b == (Bounds{}) || b.SW.Lat > b.NE.Lat || b.SW.Lng > b.NE.Lng
}

func (b Bounds) Contains(p LatLng) bool {
	if b.IsEmpty() {
		return false
	}
	return p.Lat >= b.SW.Lat && p.Lat <= b.NE.Lat &&
		p.Lng >= b.SW.Lng && p.Lng <= b.NE.Lng
}

// ContainsBounds reports whether o lies fully inside b.
func (b Bounds) ContainsBounds(o Bounds) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return b.Contains(o.SW) && b.Contains(o.NE)
}

func (b Bounds) Intersects(o Bounds) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return b.SW.Lat <= o.NE.Lat && o.SW.Lat <= b.NE.Lat &&
		b.SW.Lng <= o.NE.Lng && o.SW.Lng <= b.NE.Lng
}

// Expand grows the box by eps degrees on every side.
func (b Bounds) Expand(eps float64) Bounds {
	if b.IsEmpty() {
		return b
	}
	return Bounds{
		SW: LatLng{Lat: b.SW.Lat - eps, Lng: b.SW.Lng - eps},
		NE: LatLng{Lat: b.NE.Lat + eps, Lng: b.NE.Lng + eps},
	}
}

// Extend returns the smallest box containing both b and p.
func (b Bounds) Extend(p LatLng) Bounds {
	if b == (Bounds{}) {
		return PointBounds(p)
	}
	return Bounds{
		SW: LatLng{Lat: math.Min(b.SW.Lat, p.Lat), Lng: math.Min(b.SW.Lng, p.Lng)},
		NE: LatLng{Lat: math.Max(b.NE.Lat, p.Lat), Lng: math.Max(b.NE.Lng, p.Lng)},
	}
}

func (b Bounds) Center() LatLng {
	return LatLng{Lat: (b.SW.Lat + b.NE.Lat) / 2, Lng: (b.SW.Lng + b.NE.Lng) / 2}
}
