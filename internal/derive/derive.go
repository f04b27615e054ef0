// Package derive holds the pure functions that turn entity attributes and
// timestamps into display state: quality scores, tiers, colour ramps and
// countdowns.
package derive

import (
	"fmt"
	"math"
	"time"
)

const (
	// MaxSubStat is the upper bound of a single sub-stat.
	MaxSubStat = 15

	HourCycleSeconds = 3600
	// ActiveWindowSeconds is how long a spawn stays active after it appears.
	ActiveWindowSeconds = 900
	// UpcomingWindowSeconds is how early a spawn is flagged as about to appear.
	UpcomingWindowSeconds = 300

	hueFresh    = 120.0
	hueUpcoming = 200.0
	hueNeutral  = 275.0
)

// ControlLadder is the cumulative points ladder for control structure tiers.
var ControlLadder = []int{2000, 4000, 8000, 12000, 16000, 20000, 30000, 40000, 50000}

// Quality returns 100*(a+d+s)/45. The second result is false when any of
// the sub-stats is unknown; zero is a valid quality.
func Quality(attack, defense, stamina *int) (float64, bool) {
	if attack == nil || defense == nil || stamina == nil {
		return 0, false
	}
	return 100 * float64(*attack+*defense+*stamina) / (3 * MaxSubStat), true
}

// TierFromPoints returns the 1-based tier for points on an ascending ladder.
// Points below the first threshold are tier 1, points at or above the last
// threshold are tier len(ladder)+1.
func TierFromPoints(points int, ladder []int) int {
	tier := 1
	for tier-1 < len(ladder) && points >= ladder[tier-1] {
		tier++
	}
	return tier
}

// HueFromAge maps an age onto a hue from 120 (fresh) to 0 (old). Ages past
// fullRange stay at 0.
func HueFromAge(delta, fullRange time.Duration) float64 {
	if fullRange <= 0 {
		return 0
	}
	diff := float64(delta) / float64(fullRange)
	diff = math.Max(0, math.Min(1, diff))
	return (1 - diff) * hueFresh
}

// Phase is the position of a spawn point within its hour cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUpcoming
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseUpcoming:
		return "upcoming"
	default:
		return "idle"
	}
}

// HueFromSpawnPhase compares the appear offset of a spawn point with the
// current offset, both in seconds within the hour. The active window ramps
// green to red, the upcoming window ramps light to dark blue. The hue is
// rounded to a multiple of 5 so it maps onto a finite icon set.
func HueFromSpawnPhase(appearOffset, nowOffset int) (Phase, float64) {
	appear, now := appearOffset, nowOffset

	// offsets straddling the top of the hour
	if now < ActiveWindowSeconds && appear > HourCycleSeconds-ActiveWindowSeconds {
		now += HourCycleSeconds
	} else if now > HourCycleSeconds-ActiveWindowSeconds && appear < ActiveWindowSeconds {
		appear += HourCycleSeconds
	}

	diff := now - appear
	phase := PhaseIdle
	hue := hueNeutral
	switch {
	case diff >= 0 && diff <= ActiveWindowSeconds:
		phase = PhaseActive
		hue = (1 - float64(diff)/ActiveWindowSeconds) * hueFresh
	case diff < 0 && diff > -UpcomingWindowSeconds:
		phase = PhaseUpcoming
		hue = (1-float64(-diff)/UpcomingWindowSeconds)*50 + hueUpcoming
	}

	return phase, math.Round(hue/5) * 5
}

// OffsetInHour is the number of seconds elapsed since the top of the hour.
func OffsetInHour(t time.Time) int {
	return t.Minute()*60 + t.Second()
}

// Countdown is the decomposed time left until a target instant.
type Countdown struct {
	Total   time.Duration
	Hours   int
	Minutes int
	Seconds int
}

func NewCountdown(target, now time.Time) Countdown {
	total := target.Sub(now)
	secs := int64(total / time.Second)
	return Countdown{
		Total:   total,
		Hours:   int(secs / 3600 % 24),
		Minutes: int(secs / 60 % 60),
		Seconds: int(secs % 60),
	}
}

// Elapsed reports a non-positive total.
func (c Countdown) Elapsed() bool {
	return c.Total <= 0
}

func (c Countdown) String() string {
	if c.Elapsed() {
		return "expired"
	}
	s := ""
	if c.Hours > 0 {
		s = fmt.Sprintf("%dh:", c.Hours)
	}
	return s + fmt.Sprintf("%02dm:%02ds", c.Minutes, c.Seconds)
}

// Short renders the countdown without separators, as used in alert bodies.
func (c Countdown) Short() string {
	s := ""
	if c.Hours > 0 {
		s = fmt.Sprintf("%d:", c.Hours)
	}
	return s + fmt.Sprintf("%02dm%02ds", c.Minutes, c.Seconds)
}
