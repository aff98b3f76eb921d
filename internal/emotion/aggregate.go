// Package emotion turns raw emotion provider predictions into the domain signals used during an interview.
package emotion

import (
	"cmp"
	"github.com/myrjola/hotline/internal/models"
	"slices"
	"time"
)

// TopN is the number of raw labels kept in a snapshot.
const TopN = 5

// Raw provider labels contributing to each domain signal. Labels are matched exactly.
var (
	confidenceLabels = []string{"Confidence", "Determination", "Pride"}
	hesitationLabels = []string{"Anxiety", "Doubt", "Confusion", "Embarrassment"}
	enthusiasmLabels = []string{"Joy", "Excitement", "Interest", "Amusement"}
	warmthLabels     = []string{"Admiration", "Love", "Gratitude"}
	discomfortLabels = []string{"Distress", "Fear", "Awkwardness"}
)

// Aggregate maps raw predictions into a snapshot stamped with at.
//
// Each domain signal is the maximum of its contributing labels. An empty input yields the empty snapshot.
func Aggregate(predictions []models.EmotionPrediction, at time.Time) models.EmotionSnapshot {
	if len(predictions) == 0 {
		return models.EmotionSnapshot{}
	}

	scores := make(map[string]float64, len(predictions))
	for _, p := range predictions {
		if current, ok := scores[p.Name]; !ok || p.Score > current {
			scores[p.Name] = p.Score
		}
	}

	ranked := slices.Clone(predictions)
	slices.SortStableFunc(ranked, func(a, b models.EmotionPrediction) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(ranked) > TopN {
		ranked = ranked[:TopN]
	}

	return models.EmotionSnapshot{
		Signals: models.EmotionSignals{
			Confidence: maxOf(scores, confidenceLabels),
			Hesitation: maxOf(scores, hesitationLabels),
			Enthusiasm: maxOf(scores, enthusiasmLabels),
			Warmth:     maxOf(scores, warmthLabels),
			Discomfort: maxOf(scores, discomfortLabels),
		},
		TopEmotions: ranked,
		At:          at,
	}
}

func maxOf(scores map[string]float64, labels []string) float64 {
	var m float64
	for _, label := range labels {
		m = max(m, scores[label])
	}
	return m
}
