package models

import "time"

// EmotionPrediction is a single raw label scored by the emotion provider.
type EmotionPrediction struct {
	Name  string  `json:"name" yaml:"name"`
	Score float64 `json:"score" yaml:"score"`
}

// EmotionSignals are the five domain signals, each an intensity in [0,1].
type EmotionSignals struct {
	Confidence float64 `json:"confidence"`
	Hesitation float64 `json:"hesitation"`
	Enthusiasm float64 `json:"enthusiasm"`
	Warmth     float64 `json:"warmth"`
	Discomfort float64 `json:"discomfort"`
}

// EmotionSnapshot is the aggregated emotional state of the suitor at one point in time.
type EmotionSnapshot struct {
	Signals     EmotionSignals      `json:"signals"`
	TopEmotions []EmotionPrediction `json:"top_emotions"`
	At          time.Time           `json:"at"`
}

// Dominant returns the highest scoring raw label, or false when the snapshot is empty.
func (s EmotionSnapshot) Dominant() (EmotionPrediction, bool) {
	if len(s.TopEmotions) == 0 {
		return EmotionPrediction{}, false
	}
	return s.TopEmotions[0], true
}
