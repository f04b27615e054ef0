// Package cursor tracks the incremental polling position of every category.
package cursor

import (
	"livemap/internal/entity"
	"livemap/internal/geo"
)

// Cursor is an opaque server token. The empty Cursor means "unset".
type Cursor string

const Unset Cursor = ""

// DefaultEpsilon is the slack, in degrees, allowed around the last fetched
// bounds before a viewport counts as having moved away.
const DefaultEpsilon = 0.0005

type state struct {
	cursor Cursor
	bounds geo.Bounds
	forced bool
}

// Manager holds one cursor and last-fetched bounds per category, plus the
// region covered by the previous poll as reported by the server.
type Manager struct {
	epsilon  float64
	states   map[entity.Category]*state
	previous geo.Bounds
}

func NewManager(epsilon float64) *Manager {
	m := &Manager{
		epsilon: epsilon,
		states:  make(map[entity.Category]*state, len(entity.Polled)),
	}
	for _, cat := range entity.Polled {
		m.states[cat] = &state{}
	}
	return m
}

func (m *Manager) get(cat entity.Category) *state {
	s, ok := m.states[cat]
	if !ok {
		s = &state{}
		m.states[cat] = s
	}
	return s
}

func (m *Manager) Cursor(cat entity.Category) Cursor {
	return m.get(cat).cursor
}

func (m *Manager) Bounds(cat entity.Category) geo.Bounds {
	return m.get(cat).bounds
}

// ShouldReset reports whether the next poll for cat must be a full fetch:
// no cursor yet, a reset was forced, or bounds reach outside the last
// fetched bounds plus epsilon.
func (m *Manager) ShouldReset(cat entity.Category, bounds geo.Bounds) bool {
	s := m.get(cat)
	if s.forced || s.cursor == Unset {
		return true
	}
	return !s.bounds.Expand(m.epsilon).ContainsBounds(bounds)
}

// ForceReset makes the next poll of cat a full fetch. Other categories are
// not affected.
func (m *Manager) ForceReset(cat entity.Category) {
	s := m.get(cat)
	s.forced = true
	s.cursor = Unset
}

// Advance records a successful poll for cat. A cursor returned by the
// server always supersedes the previous one.
func (m *Manager) Advance(cat entity.Category, c Cursor, bounds geo.Bounds) {
	s := m.get(cat)
	s.cursor = c
	s.bounds = bounds
	s.forced = false
}

// Previous is the region covered by the last successful poll.
func (m *Manager) Previous() geo.Bounds {
	return m.previous
}

func (m *Manager) SetPrevious(b geo.Bounds) {
	m.previous = b
}
