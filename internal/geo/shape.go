package geo

import "math"

const earthRadiusMeters = 6371008.8

// CircleBounds approximates the bounding box of a circle of radius meters.
func CircleBounds(center LatLng, radius float64) Bounds {
	dLat := radius / earthRadiusMeters * 180 / math.Pi
	cos := math.Cos(center.Lat * math.Pi / 180)
	if cos < 1e-9 {
		cos = 1e-9
	}
	dLng := dLat / cos
	return Bounds{
		SW: LatLng{Lat: center.Lat - dLat, Lng: center.Lng - dLng},
		NE: LatLng{Lat: center.Lat + dLat, Lng: center.Lng + dLng},
	}
}

// PolygonBounds returns the bounding box of the vertex list.
func PolygonBounds(vertices []LatLng) Bounds {
	var b Bounds
	for _, v := range vertices {
		b = b.Extend(v)
	}
	return b
}

// PolygonCenter is the spherical centroid of the vertices, used to anchor
// a popup on an area shape.
func PolygonCenter(vertices []LatLng) LatLng {
	if len(vertices) == 0 {
		return LatLng{}
	}

	var x, y, z float64
	for _, v := range vertices {
		lat := v.Lat * math.Pi / 180
		lng := v.Lng * math.Pi / 180
		x += math.Cos(lat) * math.Cos(lng)
		y += math.Cos(lat) * math.Sin(lng)
		z += math.Sin(lat)
	}

	hyp := math.Sqrt(x*x + y*y)
	return LatLng{
		Lat: math.Atan2(z, hyp) * 180 / math.Pi,
		Lng: math.Atan2(y, x) * 180 / math.Pi,
	}
}

// Distance is the haversine distance in meters.
func Distance(a, b LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
