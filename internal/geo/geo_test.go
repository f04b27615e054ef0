package geo

import (
	"math"
	"testing"
)

func TestBoundsContainment(t *testing.T) {
	b := NewBounds(LatLng{Lat: 10, Lng: 20}, LatLng{Lat: 11, Lng: 21})

	tests := []struct {
		name string
		p    LatLng
		want bool
	}{
		{"inside", LatLng{Lat: 10.5, Lng: 20.5}, true},
		{"on edge", LatLng{Lat: 10, Lng: 21}, true},
		{"north", LatLng{Lat: 11.1, Lng: 20.5}, false},
		{"west", LatLng{Lat: 10.5, Lng: 19.9}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Contains(tt.p); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}

	if (Bounds{}).Contains(LatLng{}) {
		t.Error("empty bounds must not contain anything")
	}
}

func TestBoundsIntersectsAndExpand(t *testing.T) {
	a := NewBounds(LatLng{Lat: 0, Lng: 0}, LatLng{Lat: 1, Lng: 1})
	b := NewBounds(LatLng{Lat: 0.5, Lng: 0.5}, LatLng{Lat: 2, Lng: 2})
	c := NewBounds(LatLng{Lat: 1.01, Lng: 1.01}, LatLng{Lat: 2, Lng: 2})

	if !a.Intersects(b) {
		t.Error("expected overlapping boxes to intersect")
	}
	if a.Intersects(c) {
		t.Error("expected disjoint boxes not to intersect")
	}
	if !a.Expand(0.02).Intersects(c) {
		t.Error("expected expanded box to reach the neighbour")
	}
	if !a.Expand(0.1).ContainsBounds(a) {
		t.Error("expanded box must contain the original")
	}
}

func TestPolygonHelpers(t *testing.T) {
	square := []LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 2}, {Lat: 2, Lng: 2}, {Lat: 2, Lng: 0}}

	b := PolygonBounds(square)
	if b.SW != (LatLng{}) || b.NE != (LatLng{Lat: 2, Lng: 2}) {
		t.Errorf("unexpected polygon bounds %+v", b)
	}

	c := PolygonCenter(square)
	if math.Abs(c.Lat-1) > 0.01 || math.Abs(c.Lng-1) > 0.01 {
		t.Errorf("unexpected centroid %+v", c)
	}
}

func TestCircleBoundsCoversRadius(t *testing.T) {
	center := LatLng{Lat: 52.5, Lng: 13.4}
	b := CircleBounds(center, 70)

	north := LatLng{Lat: b.NE.Lat, Lng: center.Lng}
	if d := Distance(center, north); math.Abs(d-70) > 0.5 {
		t.Errorf("north edge at %.2fm, want ~70m", d)
	}
}
