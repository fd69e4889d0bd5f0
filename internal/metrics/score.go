package metrics

import "math"

// Level buckets the congestion score.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

const (
	// BaselineUsedRatio is the built-up share that scores 5.
	BaselineUsedRatio = 0.30
	// UsedRatioSpread is the ratio change worth one z unit.
	UsedRatioSpread = 0.25
	// maxZ bounds z on both sides.
	maxZ = 2.0
)

// Score is the 0..10 congestion score derived from the used ratio.
type Score struct {
	Value     float64 `json:"score"`
	Level     Level   `json:"level"`
	UsedRatio float64 `json:"used_ratio"`
	Z         float64 `json:"z"`
}

// Score rates how built-up the land inside the disk is. Water is excluded
// from the denominator.
func (m Metrics) Score() Score {
	used := m.UsedRatio()
	z := (used - BaselineUsedRatio) / UsedRatioSpread
	z = math.Max(-maxZ, math.Min(maxZ, z))

	value := math.Max(0, math.Min(10, round1(z*5+5)))

	return Score{Value: value, Level: LevelFor(value), UsedRatio: used, Z: z}
}

// round1 rounds to one decimal, ties to even.
func round1(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}

// LevelFor maps a score to its level: above 7 is HIGH, above 4 MEDIUM.
func LevelFor(score float64) Level {
	switch {
	case score > 7:
		return LevelHigh
	case score > 4:
		return LevelMedium
	default:
		return LevelLow
	}
}
