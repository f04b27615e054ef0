// Package prefs stores the user's dashboard preferences and turns them
// into filter snapshots.
package prefs

import (
	"slices"
	"time"

	"livemap/internal/derive"
	"livemap/internal/entity"
	"livemap/internal/filter"
	"livemap/internal/shared/errors"
)

// DefaultID names the preference document of a single-user deployment.
const DefaultID = "default"

type StalenessStep struct {
	AfterHours float64 `json:"after_hours"`
	Opacity    float64 `json:"opacity"`
}

type ControlPrefs struct {
	OpenSlots       int    `json:"open_slots"`
	Faction         int    `json:"faction"`
	MaxScanAgeHours int    `json:"max_scan_age_hours"`
	MinTier         int    `json:"min_tier"`
	MaxTier         int    `json:"max_tier"`
	IconStyle       string `json:"icon_style"`
}

type Preferences struct {
	ID   string                   `json:"id"`
	Show map[entity.Category]bool `json:"show"`

	Excluded       []int    `json:"excluded"`
	NotifySpecies  []int    `json:"notify_species"`
	NotifyRarities []string `json:"notify_rarities"`
	MinQuality     float64  `json:"min_quality"`
	OnlySpecies    int      `json:"only_species"`
	LuredOnly      bool     `json:"lured_only"`

	Controls  ControlPrefs    `json:"controls"`
	Staleness []StalenessStep `json:"staleness"`

	ShowRanges         bool    `json:"show_ranges"`
	CreatureOpacity    bool    `json:"creature_opacity"`
	MinCreatureOpacity float64 `json:"min_creature_opacity"`
	PlaySound          bool    `json:"play_sound"`
	PlayCries          bool    `json:"play_cries"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Default mirrors a fresh dashboard: creatures, POIs and control
// structures on, everything else off.
func Default() Preferences {
	return Preferences{
		ID: DefaultID,
		Show: map[entity.Category]bool{
			entity.CategoryCreatures: true,
			entity.CategoryPOIs:      true,
			entity.CategoryControls:  true,
		},
		Staleness: []StalenessStep{
			{AfterHours: 1, Opacity: 0.9},
			{AfterHours: 6, Opacity: 0.7},
			{AfterHours: 12, Opacity: 0.5},
			{AfterHours: 24, Opacity: 0.3},
		},
		MinCreatureOpacity: 0.25,
		PlaySound:          true,
	}
}

func (p Preferences) Validate() error {
	for cat := range p.Show {
		if !slices.Contains(entity.Categories, cat) {
			return errors.Validationf("unknown category %q", cat)
		}
	}
	switch {
	case p.MinQuality < 0 || p.MinQuality > 100:
		return errors.Validationf("min_quality must be between 0 and 100, got %v", p.MinQuality)
	case p.OnlySpecies < 0:
		return errors.Validation("only_species must not be negative")
	case p.MinCreatureOpacity < 0 || p.MinCreatureOpacity > 1:
		return errors.Validation("min_creature_opacity must be between 0 and 1")
	case p.Controls.OpenSlots < 0 || p.Controls.OpenSlots > 4:
		return errors.Validationf("controls.open_slots must be between 0 and 4, got %d", p.Controls.OpenSlots)
	case p.Controls.Faction < int(entity.FactionNone) || p.Controls.Faction > int(entity.FactionYellow):
		return errors.Validationf("controls.faction %d is unknown", p.Controls.Faction)
	case p.Controls.MaxScanAgeHours < 0:
		return errors.Validation("controls.max_scan_age_hours must not be negative")
	case p.Controls.MinTier < 0 || p.Controls.MaxTier < 0:
		return errors.Validation("controls tiers must not be negative")
	case p.Controls.MinTier > 0 && p.Controls.MaxTier > 0 && p.Controls.MinTier > p.Controls.MaxTier:
		return errors.Validation("controls.min_tier is above controls.max_tier")
	}

	for i, step := range p.Staleness {
		if step.Opacity < 0 || step.Opacity > 1 {
			return errors.Validationf("staleness[%d].opacity must be between 0 and 1", i)
		}
		if i > 0 && step.AfterHours < p.Staleness[i-1].AfterHours {
			return errors.Validation("staleness steps must be in ascending order")
		}
	}
	return nil
}

// Builder starts a filter snapshot from p. Exclusions are not copied; the
// session tracks them separately so re-inclusions survive until the server
// acknowledges them.
func (p Preferences) Builder() *filter.Builder {
	b := filter.NewBuilder()
	for cat, on := range p.Show {
		b.Show(cat, on)
	}

	return b.With(func(s *filter.State) {
		s.ShowRanges = p.ShowRanges
		s.OnlySpecies = p.OnlySpecies
		s.LuredOnly = p.LuredOnly
		s.Controls = filter.ControlFilters{
			OpenSlots:       p.Controls.OpenSlots,
			Faction:         entity.Faction(p.Controls.Faction),
			MaxScanAgeHours: p.Controls.MaxScanAgeHours,
			MinTier:         p.Controls.MinTier,
			MaxTier:         p.Controls.MaxTier,
		}
		s.ControlIconStyle = p.Controls.IconStyle

		s.Notify = filter.NotifyRules{
			Species:    make(map[int]bool, len(p.NotifySpecies)),
			Rarities:   make(map[string]bool, len(p.NotifyRarities)),
			MinQuality: p.MinQuality,
		}
		for _, id := range p.NotifySpecies {
			s.Notify.Species[id] = true
		}
		for _, r := range p.NotifyRarities {
			s.Notify.Rarities[r] = true
		}

		s.Staleness = make([]derive.StalenessStep, 0, len(p.Staleness))
		for _, step := range p.Staleness {
			s.Staleness = append(s.Staleness, derive.StalenessStep{
				After:   time.Duration(step.AfterHours * float64(time.Hour)),
				Opacity: step.Opacity,
			})
		}

		s.CreatureOpacity = p.CreatureOpacity
		if p.MinCreatureOpacity > 0 {
			s.MinCreatureOpacity = p.MinCreatureOpacity
		}
		s.PlaySound = p.PlaySound
		s.PlayCries = p.PlayCries
	})
}
