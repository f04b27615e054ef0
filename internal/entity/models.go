package entity

import (
	"time"

	"livemap/internal/geo"
)

type Category string

const (
	CategoryCreatures     Category = "creatures"
	CategoryLureCreatures Category = "lure_creatures"
	CategoryPOIs          Category = "pois"
	CategoryControls      Category = "controls"
	CategoryScans         Category = "scans"
	CategorySpawnTimers   Category = "spawn_timers"
	CategoryZones         Category = "zones"
)

// Categories lists every category in merge order.
var Categories = []Category{
	CategoryCreatures,
	CategoryLureCreatures,
	CategoryPOIs,
	CategoryControls,
	CategoryScans,
	CategorySpawnTimers,
	CategoryZones,
}

// Polled lists the categories that carry a server-side cursor.
var Polled = []Category{
	CategoryCreatures,
	CategoryPOIs,
	CategoryControls,
	CategoryScans,
	CategorySpawnTimers,
}

// Origin tags how a creature sighting was discovered.
type Origin string

const (
	OriginNormal Origin = ""
	OriginNearby Origin = "nearby"
	OriginLured  Origin = "lured"
)

type MovePair struct {
	Quick         int     `json:"move_1"`
	Charge        int     `json:"move_2"`
	RatingAttack  *string `json:"rating_attack,omitempty"`
	RatingDefense *string `json:"rating_defense,omitempty"`
}

// Creature is one sighting, keyed by its encounter id. Optional attributes
// are nil until known.
type Creature struct {
	EncounterID     string
	SpawnPointID    string
	SpeciesID       int
	SpeciesName     string
	Rarity          string
	Position        geo.LatLng
	Expires         time.Time
	Origin          Origin
	Attack          *int
	Defense         *int
	Stamina         *int
	CP              *int
	Level           *float64
	Moves           *MovePair
	CaptureProbs    *[3]float64
	PreviousSpecies *int
	Gender          *int
	Height          *float64
	Weight          *float64
	WorkerLevel     *int
	Form            *int
}

func (c Creature) Expired(now time.Time) bool {
	return !c.Expires.After(now)
}

func (c Creature) HasSubStats() bool {
	return c.Attack != nil && c.Defense != nil && c.Stamina != nil
}

// KeepKnown fills the optional attributes c lacks from prev, so a repeated
// sighting without them does not erase what a scout already found.
func (c Creature) KeepKnown(prev Creature) Creature {
	if !c.HasSubStats() && prev.HasSubStats() {
		c.Attack, c.Defense, c.Stamina = prev.Attack, prev.Defense, prev.Stamina
	}
	fill(&c.CP, prev.CP)
	fill(&c.Level, prev.Level)
	fill(&c.Moves, prev.Moves)
	fill(&c.CaptureProbs, prev.CaptureProbs)
	fill(&c.PreviousSpecies, prev.PreviousSpecies)
	fill(&c.Gender, prev.Gender)
	fill(&c.Height, prev.Height)
	fill(&c.Weight, prev.Weight)
	fill(&c.WorkerLevel, prev.WorkerLevel)
	fill(&c.Form, prev.Form)
	return c
}

func fill[T any](dst **T, prev *T) {
	if *dst == nil {
		*dst = prev
	}
}

// PointOfInterest is a fixed map location that may carry a lure.
type PointOfInterest struct {
	ID           string
	Name         string
	ImageURL     string
	Sponsor      string
	Position     geo.LatLng
	LureExpires  *time.Time
	LastModified time.Time
	LastUpdated  time.Time
	LastScanned  time.Time
}

// Lured reports an active lure at now.
func (p PointOfInterest) Lured(now time.Time) bool {
	return p.LureExpires != nil && p.LureExpires.After(now)
}

type Faction int

const (
	FactionNone Faction = iota
	FactionBlue
	FactionRed
	FactionYellow
)

var factionNames = []string{"Uncontested", "Mystic", "Valor", "Instinct"}

func (f Faction) String() string {
	if f < 0 || int(f) >= len(factionNames) {
		return "Unknown"
	}
	return factionNames[f]
}

type Occupant struct {
	SpeciesID  int
	CP         int
	Attack     *int
	Defense    *int
	Stamina    *int
	OwnerName  string
	OwnerLevel int
}

// ControlStructure is a faction-owned structure with an occupant roster.
type ControlStructure struct {
	ID           string
	Name         string
	Position     geo.LatLng
	Faction      Faction
	Points       int
	Occupants    []Occupant
	LastScanned  time.Time
	LastModified time.Time
}

// ScanSample marks a location that was scanned, keyed by its coordinates.
type ScanSample struct {
	Position     geo.LatLng
	LastModified time.Time
}

// ScanLifetime is how long a scan sample stays on the map after its last
// modification.
const ScanLifetime = 15 * time.Minute

func (s ScanSample) Expired(now time.Time) bool {
	return s.LastModified.Before(now.Add(-ScanLifetime))
}

// SpawnTimer is a recurring spawn location with offsets inside the hour.
type SpawnTimer struct {
	ID              string
	Position        geo.LatLng
	AppearOffset    int
	DisappearOffset int
	Uncertain       bool
	Missed          int
}

// ExclusionZone is a named polygon where scanning is forbidden or allowed.
type ExclusionZone struct {
	Name      string
	Vertices  []geo.LatLng
	Forbidden bool
}
