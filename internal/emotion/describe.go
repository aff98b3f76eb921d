package emotion

import (
	"fmt"
	"github.com/myrjola/hotline/internal/models"
	"strings"
)

// Describe summarizes a snapshot in a sentence or two for the conversation driver.
func Describe(snapshot models.EmotionSnapshot) string {
	dominant, ok := snapshot.Dominant()
	if !ok {
		return "No emotion data available yet."
	}

	s := snapshot.Signals
	var parts []string
	if s.Hesitation > 0.5 {
		parts = append(parts, "The Suitor sounds anxious or hesitant")
	}
	if s.Confidence > 0.6 {
		parts = append(parts, "The Suitor sounds confident")
	}
	if s.Enthusiasm > 0.5 {
		parts = append(parts, "The Suitor sounds enthusiastic and engaged")
	}
	if s.Warmth > 0.4 {
		parts = append(parts, "The Suitor is expressing warmth or admiration")
	}
	if s.Discomfort > 0.5 {
		parts = append(parts, "The Suitor seems uncomfortable")
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("The Suitor's dominant vocal tone is %s", dominant.Name))
	}
	return strings.Join(parts, ". ") + "."
}

// Arc describes how the emotional state developed over the timeline by comparing its first and last thirds.
func Arc(timeline []models.EmotionSnapshot) string {
	total := len(timeline)
	if total < 2 { //nolint:mnd // need a start and an end
		return "Insufficient emotion data for arc analysis."
	}

	first := timeline[:max(1, total/3)]
	last := timeline[max(1, 2*total/3):]

	startConfidence := average(first, func(s models.EmotionSignals) float64 { return s.Confidence })
	endConfidence := average(last, func(s models.EmotionSignals) float64 { return s.Confidence })
	startHesitation := average(first, func(s models.EmotionSignals) float64 { return s.Hesitation })
	endHesitation := average(last, func(s models.EmotionSignals) float64 { return s.Hesitation })
	enthusiasm := average(timeline, func(s models.EmotionSignals) float64 { return s.Enthusiasm })
	warmth := average(timeline, func(s models.EmotionSignals) float64 { return s.Warmth })

	var parts []string
	switch {
	case startConfidence < endConfidence-0.1:
		parts = append(parts, "Confidence grew over the interview")
	case startConfidence > endConfidence+0.1:
		parts = append(parts, "Confidence declined over the interview")
	}

	switch {
	case startHesitation > 0.4 && endHesitation < 0.3:
		parts = append(parts, "Initial nervousness settled as the conversation progressed")
	case endHesitation > startHesitation+0.15:
		parts = append(parts, "Hesitation increased as the interview continued")
	}

	switch {
	case enthusiasm > 0.5:
		parts = append(parts, fmt.Sprintf("High overall enthusiasm (%s)", percent(enthusiasm)))
	case enthusiasm < 0.2:
		parts = append(parts, fmt.Sprintf("Low overall enthusiasm (%s)", percent(enthusiasm)))
	}

	if warmth > 0.4 {
		parts = append(parts, fmt.Sprintf("Consistently warm tone (%s)", percent(warmth)))
	}

	if len(parts) == 0 {
		parts = append(parts, "Emotionally stable throughout with no major shifts")
	}
	return "Emotional arc: " + strings.Join(parts, ". ") + "."
}

func average(snapshots []models.EmotionSnapshot, signal func(models.EmotionSignals) float64) float64 {
	if len(snapshots) == 0 {
		return 0
	}
	var sum float64
	for _, s := range snapshots {
		sum += signal(s.Signals)
	}
	return sum / float64(len(snapshots))
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100) //nolint:mnd // percentage
}
