package derive

import (
	"math"
	"time"
)

// CreatureOpacity scales between minOpacity at 0% quality and 1 at 100%.
// Without known quality it fades over the last 30 seconds before expiry.
func CreatureOpacity(quality float64, known bool, minOpacity float64, untilExpiry time.Duration) float64 {
	if known {
		return clamp01(minOpacity + (1-minOpacity)*(quality/100))
	}
	return clamp01(untilExpiry.Seconds() / 30)
}

// StalenessStep is one rung of the staleness opacity ladder: structures
// scanned at least After ago are drawn with Opacity.
type StalenessStep struct {
	After   time.Duration
	Opacity float64
}

// StalenessOpacity picks the opacity for a structure last scanned age ago.
// Steps are expected in ascending After order; ages under the first step
// are fully opaque.
func StalenessOpacity(age time.Duration, steps []StalenessStep) float64 {
	opacity := 1.0
	for _, s := range steps {
		if age < s.After {
			return opacity
		}
		opacity = s.Opacity
	}
	return opacity
}

// ControlIconSize grows the control structure icon with its tier.
func ControlIconSize(tier int) int {
	switch {
	case tier < 5:
		return 32
	case tier < 8:
		return 40
	case tier < 10:
		return 48
	default:
		return 56
	}
}

// SpawnIconSize scales spawn timer icons with zoom, never below 1px.
func SpawnIconSize(zoom int) int {
	size := int(math.Round(1.6 * float64(zoom-10)))
	if size < 1 {
		return 1
	}
	return size
}

// SpawnZIndex orders spawn timers so that freshly active and soon to appear
// points draw above idle ones.
func SpawnZIndex(hue float64) int {
	switch {
	case hue >= 0 && hue <= hueFresh:
		return int(100 + hue/hueFresh*100)
	case hue >= hueUpcoming && hue <= hueUpcoming+50:
		return int((hue - hueUpcoming) / 50 * 100)
	default:
		return 1
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
