// Package render describes the rendering surface the sync engine drives.
// The engine only registers markers, attaches and detaches them, and
// queries the viewport; drawing is up to the implementation.
package render

import "livemap/internal/geo"

// Handle identifies a registered marker. The zero Handle is "no marker".
type Handle uint64

type Kind int

const (
	KindMarker Kind = iota
	KindCircle
	KindPolygon
)

type Animation int

const (
	AnimationNone Animation = iota
	AnimationBounce
)

type Icon struct {
	URL  string `json:"url"`
	Size int    `json:"size"`
}

// Marker is everything needed to register a visual for one entity.
type Marker struct {
	Kind      Kind
	Layer     string
	Position  geo.LatLng
	Radius    float64
	Path      []geo.LatLng
	Icon      Icon
	Opacity   float64
	FillColor string
	ZIndex    int
	Animation Animation
}

// Surface is the capability set consumed from the map widget.
type Surface interface {
	// Register creates a detached marker.
	Register(m Marker) Handle
	Attach(h Handle)
	Detach(h Handle)
	// Release detaches h if needed and forgets it.
	Release(h Handle)

	SetIcon(h Handle, icon Icon)
	SetOpacity(h Handle, opacity float64)
	SetFillColor(h Handle, color string)
	SetZIndex(h Handle, z int)
	SetAnimation(h Handle, a Animation)
	Animation(h Handle) Animation
	Move(h Handle, p geo.LatLng)

	Viewport() geo.Bounds
	Zoom() int
	Center(p geo.LatLng)
}
