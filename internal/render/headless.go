package render

import (
	"sync"

	"livemap/internal/geo"
)

type headlessMarker struct {
	Marker
	attached bool
}

// Headless is a Surface without a drawing backend. The viewport and zoom
// are pushed in by whoever owns the real map (the browser), and the marker
// state is kept so it can be inspected.
type Headless struct {
	mu       sync.RWMutex
	next     Handle
	markers  map[Handle]*headlessMarker
	viewport geo.Bounds
	zoom     int

	attaches int
	detaches int
}

func NewHeadless(viewport geo.Bounds, zoom int) *Headless {
	return &Headless{
		markers:  make(map[Handle]*headlessMarker),
		viewport: viewport,
		zoom:     zoom,
	}
}

func (s *Headless) Register(m Marker) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.markers[s.next] = &headlessMarker{Marker: m}
	return s.next
}

func (s *Headless) Attach(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.markers[h]; ok && !m.attached {
		m.attached = true
		s.attaches++
	}
}

func (s *Headless) Detach(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.markers[h]; ok && m.attached {
		m.attached = false
		s.detaches++
	}
}

func (s *Headless) Release(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.markers[h]; ok {
		if m.attached {
			s.detaches++
		}
		delete(s.markers, h)
	}
}

func (s *Headless) update(h Handle, fn func(m *headlessMarker)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.markers[h]; ok {
		fn(m)
	}
}

func (s *Headless) SetIcon(h Handle, icon Icon) {
	s.update(h, func(m *headlessMarker) { m.Icon = icon })
}

func (s *Headless) SetOpacity(h Handle, opacity float64) {
	s.update(h, func(m *headlessMarker) { m.Opacity = opacity })
}

func (s *Headless) SetFillColor(h Handle, color string) {
	s.update(h, func(m *headlessMarker) { m.FillColor = color })
}

func (s *Headless) SetZIndex(h Handle, z int) {
	s.update(h, func(m *headlessMarker) { m.ZIndex = z })
}

func (s *Headless) SetAnimation(h Handle, a Animation) {
	s.update(h, func(m *headlessMarker) { m.Animation = a })
}

func (s *Headless) Animation(h Handle) Animation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.markers[h]; ok {
		return m.Animation
	}
	return AnimationNone
}

func (s *Headless) Move(h Handle, p geo.LatLng) {
	s.update(h, func(m *headlessMarker) { m.Position = p })
}

func (s *Headless) Viewport() geo.Bounds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

func (s *Headless) Zoom() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zoom
}

// Center moves the viewport so that p is in the middle, keeping its size.
func (s *Headless) Center(p geo.LatLng) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.viewport.Center()
	dLat, dLng := p.Lat-c.Lat, p.Lng-c.Lng
	s.viewport = geo.Bounds{
		SW: geo.LatLng{Lat: s.viewport.SW.Lat + dLat, Lng: s.viewport.SW.Lng + dLng},
		NE: geo.LatLng{Lat: s.viewport.NE.Lat + dLat, Lng: s.viewport.NE.Lng + dLng},
	}
}

// SetViewport records the viewport reported by the map owner.
func (s *Headless) SetViewport(b geo.Bounds, zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewport = b
	s.zoom = zoom
}

// Lookup returns the current marker state for h.
func (s *Headless) Lookup(h Handle) (Marker, bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markers[h]
	if !ok {
		return Marker{}, false, false
	}
	return m.Marker, m.attached, true
}

// Counts returns the number of registered markers and the running attach
// and detach totals.
func (s *Headless) Counts() (registered, attaches, detaches int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers), s.attaches, s.detaches
}
