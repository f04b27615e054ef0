package alert

import (
	"slices"
	"testing"
	"time"

	"livemap/internal/entity"
	"livemap/internal/filter"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func intp(v int) *int { return &v }

func rules(fn func(r *filter.NotifyRules)) filter.State {
	return filter.NewBuilder().With(func(s *filter.State) {
		s.Notify = filter.NotifyRules{Species: map[int]bool{}, Rarities: map[string]bool{}}
		fn(&s.Notify)
	}).Build()
}

func TestTriggers(t *testing.T) {
	perfect := entity.Creature{SpeciesID: 25, Rarity: "Rare", Attack: intp(15), Defense: intp(15), Stamina: intp(15)}
	unknown := entity.Creature{SpeciesID: 25, Rarity: "Rare"}

	tests := []struct {
		name  string
		c     entity.Creature
		rules func(r *filter.NotifyRules)
		want  []Trigger
	}{
		{"nothing configured", perfect, func(r *filter.NotifyRules) {}, nil},
		{"species", unknown, func(r *filter.NotifyRules) { r.Species[25] = true }, []Trigger{TriggerSpecies}},
		{"rarity", unknown, func(r *filter.NotifyRules) { r.Rarities["Rare"] = true }, []Trigger{TriggerRarity}},
		{"quality", perfect, func(r *filter.NotifyRules) { r.MinQuality = 90 }, []Trigger{TriggerQuality}},
		{"quality unknown", unknown, func(r *filter.NotifyRules) { r.MinQuality = 1 }, nil},
		{"all", perfect, func(r *filter.NotifyRules) {
			r.Species[25] = true
			r.Rarities["Rare"] = true
			r.MinQuality = 100
		}, []Trigger{TriggerSpecies, TriggerRarity, TriggerQuality}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Triggers(tt.c, rules(tt.rules).Notify)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Triggers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateOneAlertPerAdmission(t *testing.T) {
	e := NewEvaluator(Templates{Location: time.UTC})
	c := entity.Creature{
		EncounterID: "e1", SpeciesID: 25, SpeciesName: "Pikachu",
		Attack: intp(15), Defense: intp(14), Stamina: intp(13),
		Expires: now.Add(5*time.Minute + 3*time.Second),
	}
	f := rules(func(r *filter.NotifyRules) {
		r.Species[25] = true
		r.MinQuality = 80
	})

	a, ok := e.Evaluate(c, f, now)
	if !ok {
		t.Fatal("no alert")
	}
	if len(a.Triggers) != 2 {
		t.Errorf("triggers = %v", a.Triggers)
	}
	if a.Title != "Pikachu 93.3% (15/14/13)" {
		t.Errorf("title = %q", a.Title)
	}
	if a.Body != "12:05:03 PM (05m03s)" {
		t.Errorf("body = %q", a.Body)
	}
}

func TestRenderTags(t *testing.T) {
	e := NewEvaluator(Templates{Location: time.UTC})
	exp := now.Add(time.Minute)

	tests := []struct {
		name string
		c    entity.Creature
		want string
	}{
		{"plain", entity.Creature{SpeciesID: 1, SpeciesName: "Bulbasaur", Expires: exp}, "Bulbasaur"},
		{"nearby", entity.Creature{SpeciesID: 1, SpeciesName: "Bulbasaur", Origin: entity.OriginNearby, Expires: exp}, "Bulbasaur (Nearby Pokemon)"},
		{"lured", entity.Creature{SpeciesID: 1, SpeciesName: "Bulbasaur", Origin: entity.OriginLured, Expires: exp}, "Bulbasaur (Lured Pokemon)"},
		{"disguised", entity.Creature{SpeciesID: 132, SpeciesName: "Ditto", PreviousSpecies: intp(193), Expires: exp}, "Ditto (Yanma)"},
		{"prior species on other creature", entity.Creature{SpeciesID: 25, SpeciesName: "Pikachu", PreviousSpecies: intp(16), Expires: exp}, "Pikachu"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if title, _ := e.Render(tt.c, now); title != tt.want {
				t.Errorf("title = %q, want %q", title, tt.want)
			}
		})
	}
}

func TestSound(t *testing.T) {
	c := entity.Creature{SpeciesID: 25}
	build := func(sound, cries bool) filter.State {
		return filter.NewBuilder().With(func(s *filter.State) {
			s.PlaySound = sound
			s.PlayCries = cries
		}).Build()
	}

	if got := Sound(c, build(false, true)); got != "" {
		t.Errorf("muted sound = %q", got)
	}
	if got := Sound(c, build(true, false)); got != defaultSound {
		t.Errorf("default sound = %q", got)
	}
	if got := Sound(c, build(true, true)); got != "static/sounds/cries/25.ogg" {
		t.Errorf("cry = %q", got)
	}
}
