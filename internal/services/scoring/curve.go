package scoring

import "math"

// Score thresholds of the grade bands
const (
	ScoreB       = 8_900_000
	ScoreA       = 9_200_000
	ScoreAA      = 9_500_000
	ScoreEX      = 9_800_000
	ScorePerfect = 10_000_000
)

// band applies to scores from From upward: constant + Offset + (score - Anchor) / Divisor.
// A zero Divisor makes the band flat.
type band struct {
	From    int
	Anchor  int
	Offset  float64
	Divisor float64
}

// Bands from highest to lowest; the first band whose From is reached applies.
// Adjacent bands meet at their boundaries so the curve is continuous below PM.
var bands = []band{
	{From: ScorePerfect, Offset: 2},
	{From: ScoreEX, Anchor: ScoreEX, Offset: 1, Divisor: 200_000},
	{From: ScoreAA, Anchor: ScoreAA, Offset: 0, Divisor: 300_000},
	{From: ScoreA, Anchor: ScoreA, Offset: -1, Divisor: 300_000},
	{From: ScoreB, Anchor: ScoreB, Offset: -2, Divisor: 300_000},
	{From: math.MinInt, Anchor: ScoreB, Offset: -2, Divisor: 300_000},
}

// Rating converts a raw score on a chart of the given constant into a play rating.
// Scores below the B band keep falling linearly but never below zero.
func Rating(score int, constant float64) float64 {
	for _, b := range bands {
		if score < b.From {
			continue
		}
		r := constant + b.Offset
		if b.Divisor > 0 {
			r += float64(score-b.Anchor) / b.Divisor
		}
		return math.Max(r, 0)
	}
	return 0
}
