package scoring

import (
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"log/slog"
	"math"
)

var ErrInvalidWeights = errors.NewSentinel("invalid category weights")

const weightSumTolerance = 1e-6

// Weights are the linear coefficients of the four rubric categories.
type Weights struct {
	Effort                float64 `json:"effort"`
	Creativity            float64 `json:"creativity"`
	IntentClarity         float64 `json:"intent_clarity"`
	EmotionalIntelligence float64 `json:"emotional_intelligence"`
}

// DefaultWeights is the standard rubric.
var DefaultWeights = Weights{ //nolint:gochecknoglobals // read-only rubric
	Effort:                0.30,
	Creativity:            0.20,
	IntentClarity:         0.25,
	EmotionalIntelligence: 0.25,
}

// Validate checks that the weights are non-negative and add up to one.
func (w Weights) Validate() error {
	attrs := []slog.Attr{
		slog.Float64("effort", w.Effort),
		slog.Float64("creativity", w.Creativity),
		slog.Float64("intent_clarity", w.IntentClarity),
		slog.Float64("emotional_intelligence", w.EmotionalIntelligence),
	}
	for _, v := range []float64{w.Effort, w.Creativity, w.IntentClarity, w.EmotionalIntelligence} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrap(ErrInvalidWeights, "weight must be a non-negative number", attrs...)
		}
	}
	sum := w.Effort + w.Creativity + w.IntentClarity + w.EmotionalIntelligence
	if math.Abs(sum-1) > weightSumTolerance {
		return errors.Wrap(ErrInvalidWeights, "weights must sum to one",
			append(attrs, slog.Float64("sum", sum))...)
	}
	return nil
}

// Apply computes the weighted total of c, rounded to remove floating point noise.
func (w Weights) Apply(c models.CategoryScores) float64 {
	return round6(c.Effort*w.Effort +
		c.Creativity*w.Creativity +
		c.IntentClarity*w.IntentClarity +
		c.EmotionalIntelligence*w.EmotionalIntelligence)
}

// round6 rounds to six decimals so that exact decimal inputs such as 75.5 compare exactly against thresholds.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6 //nolint:mnd // six decimals
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
