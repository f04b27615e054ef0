package derive

import (
	"math"
	"testing"
	"time"
)

func intp(v int) *int { return &v }

func TestQualityRange(t *testing.T) {
	for a := 0; a <= MaxSubStat; a++ {
		for d := 0; d <= MaxSubStat; d++ {
			for s := 0; s <= MaxSubStat; s++ {
				q, ok := Quality(intp(a), intp(d), intp(s))
				if !ok {
					t.Fatalf("Quality(%d,%d,%d) reported unavailable", a, d, s)
				}
				want := 100 * float64(a+d+s) / 45
				if q != want || q < 0 || q > 100 {
					t.Fatalf("Quality(%d,%d,%d) = %v, want %v", a, d, s, q, want)
				}
			}
		}
	}
}

func TestQualityUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		a, d, s *int
	}{
		{"no attack", nil, intp(0), intp(0)},
		{"no defense", intp(0), nil, intp(0)},
		{"no stamina", intp(0), intp(0), nil},
		{"none", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := Quality(tt.a, tt.d, tt.s); ok {
				t.Error("expected unavailable quality")
			}
		})
	}

	q, ok := Quality(intp(0), intp(0), intp(0))
	if !ok || q != 0 {
		t.Errorf("zero sub-stats should be a valid 0%% quality, got %v %v", q, ok)
	}
}

func TestTierFromPoints(t *testing.T) {
	tests := []struct {
		points int
		want   int
	}{
		{0, 1},
		{1999, 1},
		{2000, 2},
		{3999, 2},
		{8000, 4},
		{49999, 9},
		{50000, 10},
		{1000000, 10},
	}
	for _, tt := range tests {
		if got := TierFromPoints(tt.points, ControlLadder); got != tt.want {
			t.Errorf("TierFromPoints(%d) = %d, want %d", tt.points, got, tt.want)
		}
	}

	prev := TierFromPoints(0, ControlLadder)
	for p := 0; p <= 60000; p += 250 {
		tier := TierFromPoints(p, ControlLadder)
		if tier < prev {
			t.Fatalf("tier decreased at %d points: %d < %d", p, tier, prev)
		}
		prev = tier
	}
}

func TestHueFromAge(t *testing.T) {
	full := 15 * time.Minute
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{0, 120},
		{full / 2, 60},
		{full, 0},
		{2 * full, 0},
	}
	for _, tt := range tests {
		if got := HueFromAge(tt.age, full); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("HueFromAge(%v) = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestHueFromSpawnPhase(t *testing.T) {
	tests := []struct {
		name        string
		appear, now int
		wantPhase   Phase
		wantHue     float64
	}{
		{"just appeared", 600, 600, PhaseActive, 120},
		{"half way", 600, 1050, PhaseActive, 60},
		{"end of window", 600, 1500, PhaseActive, 0},
		{"after window", 600, 1600, PhaseIdle, 275},
		{"about to appear", 600, 599, PhaseUpcoming, 250},
		{"five minutes out", 600, 301, PhaseUpcoming, 200},
		{"far before", 600, 100, PhaseIdle, 275},
		{"rollover current side", 3500, 30, PhaseActive, 105},
		{"rollover appear side", 100, 3550, PhaseUpcoming, 225},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phase, hue := HueFromSpawnPhase(tt.appear, tt.now)
			if phase != tt.wantPhase {
				t.Errorf("phase = %v, want %v", phase, tt.wantPhase)
			}
			if hue != tt.wantHue {
				t.Errorf("hue = %v, want %v", hue, tt.wantHue)
			}
		})
	}
}

func TestCountdown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	c := NewCountdown(now.Add(time.Hour+5*time.Minute+3*time.Second), now)
	if c.Elapsed() {
		t.Fatal("future target reported as elapsed")
	}
	if c.Hours != 1 || c.Minutes != 5 || c.Seconds != 3 {
		t.Errorf("unexpected decomposition %+v", c)
	}
	if c.String() != "1h:05m:03s" {
		t.Errorf("String() = %q", c.String())
	}
	if c.Short() != "1:05m03s" {
		t.Errorf("Short() = %q", c.Short())
	}

	if !NewCountdown(now, now).Elapsed() {
		t.Error("target equal to now must be elapsed")
	}
	if got := NewCountdown(now.Add(-time.Second), now).String(); got != "expired" {
		t.Errorf("String() = %q, want expired", got)
	}
}

func TestStalenessOpacity(t *testing.T) {
	steps := []StalenessStep{
		{After: 10 * time.Minute, Opacity: 0.8},
		{After: 30 * time.Minute, Opacity: 0.5},
		{After: time.Hour, Opacity: 0.3},
	}
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{time.Minute, 1},
		{15 * time.Minute, 0.8},
		{45 * time.Minute, 0.5},
		{2 * time.Hour, 0.3},
	}
	for _, tt := range tests {
		if got := StalenessOpacity(tt.age, steps); got != tt.want {
			t.Errorf("StalenessOpacity(%v) = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestSpawnIconHelpers(t *testing.T) {
	if SpawnIconSize(10) != 1 {
		t.Errorf("SpawnIconSize(10) = %d, want 1", SpawnIconSize(10))
	}
	if SpawnIconSize(20) != 16 {
		t.Errorf("SpawnIconSize(20) = %d, want 16", SpawnIconSize(20))
	}
	if SpawnZIndex(120) != 200 || SpawnZIndex(0) != 100 {
		t.Error("active spawns should sort between 100 and 200")
	}
	if SpawnZIndex(275) != 1 {
		t.Error("idle spawns should sort at the bottom")
	}
}
