// Package upstream is the HTTP client for the map backend.
package upstream

import (
	"livemap/internal/cursor"
	"livemap/internal/entity"
	"livemap/internal/geo"
)

// CategoryQuery is the per-category part of a poll.
type CategoryQuery struct {
	Enabled bool
	Cursor  cursor.Cursor
	Reset   bool
}

// PollRequest asks for everything changed since each cursor inside Bounds.
type PollRequest struct {
	Categories map[entity.Category]CategoryQuery
	Bounds     geo.Bounds
	Previous   geo.Bounds
	Excluded   []int
	Reincluded []int
	LuredOnly  bool
	Zones      bool
	Timestamp  int64
}

func (r PollRequest) Enabled(cat entity.Category) bool {
	return r.Categories[cat].Enabled
}

// PollResponse is a validated poll result. Cursors only holds the
// categories the server returned a cursor for.
type PollResponse struct {
	Creatures     []entity.Creature
	LureCreatures []entity.Creature
	POIs          []entity.PointOfInterest
	Controls      []entity.ControlStructure
	Scans         []entity.ScanSample
	SpawnTimers   []entity.SpawnTimer
	Zones         []entity.ExclusionZone

	Cursors    map[entity.Category]cursor.Cursor
	Covered    geo.Bounds
	Reincluded []int
	Timestamp  int64

	// Dropped counts records rejected by validation.
	Dropped int
}

// ScoutResult is the detail fetched for one encounter.
type ScoutResult struct {
	EncounterID  string           `json:"encounter_id"`
	Attack       *int             `json:"individual_attack"`
	Defense      *int             `json:"individual_defense"`
	Stamina      *int             `json:"individual_stamina"`
	CP           *int             `json:"cp"`
	Level        *float64         `json:"pokemon_level"`
	Moves        *entity.MovePair `json:"moves,omitempty"`
	CaptureProbs *[3]float64      `json:"capture_probs,omitempty"`
	Position     *geo.LatLng      `json:"position,omitempty"`
	WorkerLevel  *int             `json:"worker_level"`
	Gender       *int             `json:"gender"`
	Height       *float64         `json:"height"`
	Weight       *float64         `json:"weight"`
}

// Apply copies the known fields of r onto c. Unknown fields keep the
// creature's existing values.
func (r ScoutResult) Apply(c entity.Creature) entity.Creature {
	if r.Attack != nil && r.Defense != nil && r.Stamina != nil {
		c.Attack, c.Defense, c.Stamina = r.Attack, r.Defense, r.Stamina
	}
	if r.CP != nil {
		c.CP = r.CP
	}
	if r.Level != nil {
		c.Level = r.Level
	}
	if r.Moves != nil {
		c.Moves = r.Moves
	}
	if r.CaptureProbs != nil {
		c.CaptureProbs = r.CaptureProbs
	}
	if r.Position != nil {
		c.Position = *r.Position
	}
	if r.WorkerLevel != nil {
		c.WorkerLevel = r.WorkerLevel
	}
	if r.Gender != nil {
		c.Gender = r.Gender
	}
	if r.Height != nil {
		c.Height = r.Height
	}
	if r.Weight != nil {
		c.Weight = r.Weight
	}
	return c
}

// SearchStatus reports whether the backend search loop is running.
type SearchStatus struct {
	Running bool `json:"status"`
}

// SpeciesCount is one row of a history query.
type SpeciesCount struct {
	SpeciesID   int    `json:"pokemon_id"`
	SpeciesName string `json:"pokemon_name"`
	Count       int    `json:"count"`
}

// pollParams maps the polled categories to the backend's query names.
var pollParams = map[entity.Category]struct{ enabled, last string }{
	entity.CategoryCreatures:   {"pokemon", "lastpokemon"},
	entity.CategoryPOIs:        {"pokestops", "lastpokestops"},
	entity.CategoryControls:    {"gyms", "lastgyms"},
	entity.CategoryScans:       {"scanned", "lastslocs"},
	entity.CategorySpawnTimers: {"spawnpoints", "lastspawns"},
}
