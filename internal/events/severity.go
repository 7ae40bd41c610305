// Package events produces autonomous world events: weighted severity
// draws shaped by a slow mood curve, generation and parsing of the event
// narrative, and fan-out of its effects into country state.
package events

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Severity bands, mildest catastrophe to greatest fortune.
const (
	VeryBad  = "very-bad"
	Bad      = "bad"
	Neutral  = "neutral"
	Good     = "good"
	VeryGood = "very-good"
)

// Bands lists every severity band in a fixed draw order.
var Bands = []string{VeryBad, Bad, Neutral, Good, VeryGood}

// AutonomousWeights skews scheduled events toward the neutral and mildly
// negative: prosperity is earned, misfortune arrives on its own.
var AutonomousWeights = map[string]float64{
	VeryBad:  1,
	Bad:      3,
	Neutral:  4,
	Good:     2,
	VeryGood: 1,
}

// GlobalWeights governs world-spanning events. The very-good band is
// absent: windfalls that bless every nation at once read as unearned.
var GlobalWeights = map[string]float64{
	VeryBad: 1,
	Bad:     2,
	Neutral: 2,
	Good:    1,
}

// bandLean says how strongly the mood curve pushes each band: negative
// bands swell in dark years, positive ones in bright years.
var bandLean = map[string]float64{
	VeryBad:  -1,
	Bad:      -0.5,
	Neutral:  0,
	Good:     0.5,
	VeryGood: 1,
}

// moodInfluence bounds the mood multiplier to [0.5, 1.5] of a band's
// base weight, so no configured band ever drops out of the draw and no
// unconfigured band enters it.
const moodInfluence = 0.5

// moodPeriod is the rough length, in game years, of one swing of the
// mood curve.
const moodPeriod = 120.0

// Mood is a slow noise curve over game years. Around -1 the age is
// grim, around +1 it is golden.
type Mood struct {
	noise opensimplex.Noise
}

// NewMood builds a mood curve from a seed. The same seed gives the same
// history.
func NewMood(seed int64) *Mood {
	return &Mood{noise: opensimplex.NewNormalized(seed)}
}

// At evaluates the curve at a game year, in [-1, 1].
func (m *Mood) At(year int) float64 {
	return m.noise.Eval2(float64(year)/moodPeriod, 0)*2 - 1
}

// PickBand draws a severity band from weights, biased by mood. Only
// bands present in weights can be drawn.
func PickBand(rng *rand.Rand, weights map[string]float64, mood float64) string {
	var total float64
	adjusted := make([]float64, len(Bands))
	for i, band := range Bands {
		w, ok := weights[band]
		if !ok {
			continue
		}
		adjusted[i] = w * (1 + moodInfluence*mood*bandLean[band])
		total += adjusted[i]
	}
	if total <= 0 {
		return Neutral
	}
	r := rng.Float64() * total
	for i, band := range Bands {
		r -= adjusted[i]
		if r < 0 && adjusted[i] > 0 {
			return band
		}
	}
	return Neutral
}
