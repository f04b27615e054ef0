// Package alert decides which newly admitted creatures raise a notification
// and renders its payload.
package alert

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"livemap/internal/derive"
	"livemap/internal/entity"
	"livemap/internal/filter"
	"livemap/internal/geo"
)

type Trigger string

const (
	TriggerSpecies Trigger = "species"
	TriggerRarity  Trigger = "rarity"
	TriggerQuality Trigger = "quality"
)

const (
	DefaultQualityTitle = "<pkm> <prc>% (<atk>/<def>/<sta>)"
	DefaultTitle        = "<pkm>"
	DefaultBody         = "<dist> (<udist>)"

	defaultSound = "static/sounds/pokewho.mp3"
	// disguisedSpecies takes the appearance of another species.
	disguisedSpecies = 132
)

// disguiseHints names the species a disguised creature appeared as.
var disguiseHints = map[int]string{
	16:  "Pidgey",
	19:  "Rattata",
	41:  "Zubat",
	129: "Magikarp",
	161: "Sentret",
	163: "Hoothoot",
	193: "Yanma",
}

var originTags = map[entity.Origin]string{
	entity.OriginNearby: " (Nearby Pokemon)",
	entity.OriginLured:  " (Lured Pokemon)",
}

// Alert is the payload delivered for one admission.
type Alert struct {
	EncounterID string     `json:"encounter_id"`
	SpeciesID   int        `json:"species_id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Icon        string     `json:"icon"`
	Sound       string     `json:"sound,omitempty"`
	Position    geo.LatLng `json:"position"`
	Expires     time.Time  `json:"expires"`
	Triggers    []Trigger  `json:"triggers"`
}

// Notifier delivers alerts to the user.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, a Alert) error

func (f NotifierFunc) Notify(ctx context.Context, a Alert) error {
	return f(ctx, a)
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: slog.With("component", "alert")}
}

func (n *LogNotifier) Notify(_ context.Context, a Alert) error {
	n.logger.Info("Creature alert",
		"operation", "Notify",
		"encounter_id", a.EncounterID,
		"title", a.Title,
		"body", a.Body,
		"triggers", a.Triggers)
	return nil
}

// Templates holds the notification texts.
type Templates struct {
	QualityTitle string
	Title        string
	Body         string
	// Location renders the absolute expiry time; nil uses time.Local.
	Location *time.Location
}

func DefaultTemplates() Templates {
	return Templates{
		QualityTitle: DefaultQualityTitle,
		Title:        DefaultTitle,
		Body:         DefaultBody,
	}
}

type Evaluator struct {
	templates Templates
}

func NewEvaluator(t Templates) *Evaluator {
	if t.QualityTitle == "" {
		t.QualityTitle = DefaultQualityTitle
	}
	if t.Title == "" {
		t.Title = DefaultTitle
	}
	if t.Body == "" {
		t.Body = DefaultBody
	}
	if t.Location == nil {
		t.Location = time.Local
	}
	return &Evaluator{templates: t}
}

// Triggers lists the conditions c meets under rules, in a fixed order.
func Triggers(c entity.Creature, rules filter.NotifyRules) []Trigger {
	var out []Trigger
	if rules.Species[c.SpeciesID] {
		out = append(out, TriggerSpecies)
	}
	if c.Rarity != "" && rules.Rarities[c.Rarity] {
		out = append(out, TriggerRarity)
	}
	if q, ok := derive.Quality(c.Attack, c.Defense, c.Stamina); ok && rules.MinQuality > 0 && q >= rules.MinQuality {
		out = append(out, TriggerQuality)
	}
	return out
}

// Evaluate returns the single alert for a newly admitted creature, or false
// when no trigger matched.
func (e *Evaluator) Evaluate(c entity.Creature, f filter.State, now time.Time) (Alert, bool) {
	triggers := Triggers(c, f.Notify)
	if len(triggers) == 0 {
		return Alert{}, false
	}

	title, body := e.Render(c, now)
	return Alert{
		EncounterID: c.EncounterID,
		SpeciesID:   c.SpeciesID,
		Title:       title,
		Body:        body,
		Icon:        "static/sprites/" + strconv.Itoa(c.SpeciesID) + ".png",
		Sound:       Sound(c, f),
		Position:    c.Position,
		Expires:     c.Expires,
		Triggers:    triggers,
	}, true
}

// Render fills the title and body templates for c.
func (e *Evaluator) Render(c entity.Creature, now time.Time) (title, body string) {
	q, known := derive.Quality(c.Attack, c.Defense, c.Stamina)
	if known {
		title = strings.NewReplacer(
			"<prc>", strconv.FormatFloat(q, 'f', 1, 64),
			"<pkm>", c.SpeciesName,
			"<atk>", strconv.Itoa(*c.Attack),
			"<def>", strconv.Itoa(*c.Defense),
			"<sta>", strconv.Itoa(*c.Stamina),
		).Replace(e.templates.QualityTitle)
	} else {
		title = strings.ReplaceAll(e.templates.Title, "<pkm>", c.SpeciesName)
	}

	title += originTags[c.Origin]
	if hint, ok := disguiseHints[derefOr(c.PreviousSpecies, 0)]; ok && c.SpeciesID == disguisedSpecies {
		title += " (" + hint + ")"
	}

	body = strings.NewReplacer(
		"<dist>", c.Expires.In(e.templates.Location).Format("03:04:05 PM"),
		"<udist>", derive.NewCountdown(c.Expires, now).Short(),
	).Replace(e.templates.Body)
	return title, body
}

// Sound picks the species cry or the default sound, or nothing when sound
// is off.
func Sound(c entity.Creature, f filter.State) string {
	switch {
	case !f.PlaySound:
		return ""
	case f.PlayCries:
		return "static/sounds/cries/" + strconv.Itoa(c.SpeciesID) + ".ogg"
	default:
		return defaultSound
	}
}

func derefOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
