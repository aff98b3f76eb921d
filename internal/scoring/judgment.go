package scoring

import (
	"bytes"
	"encoding/json"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

var ErrMalformedJudgment = errors.NewSentinel("malformed judgment")

const (
	DefaultCategoryScore   = 50
	DefaultFeedbackSummary = "Interview scored successfully."

	minCategoryScore = 0
	maxCategoryScore = 100
	minModifier      = -10
	maxModifier      = 10
)

// Judgment is the parsed, bounded content of a judgment model response.
type Judgment struct {
	Categories        models.CategoryScores
	Modifier          float64
	ModifierBreakdown *models.ModifierBreakdown
	ModifierReasons   []string
	Feedback          models.Feedback
	PerQuestionScores json.RawMessage
}

// ParseJudgment parses the model's text into a Judgment.
//
// Optional code fences around the JSON are removed. The response must be a JSON object, otherwise
// ErrMalformedJudgment is returned. Missing or unusable fields fall back to neutral defaults: category scores to
// DefaultCategoryScore and the modifier to zero. Every value is clamped to its bounds.
func ParseJudgment(text string) (Judgment, error) {
	body := stripCodeFence(text)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil || fields == nil {
		preview := body
		if len(preview) > 120 { //nolint:mnd // enough to recognize the response in logs
			preview = preview[:120]
		}
		attrs := []slog.Attr{slog.Int("length", len(body)), slog.String("preview", preview)}
		if err != nil {
			return Judgment{}, errors.Wrap(ErrMalformedJudgment, "parse judgment",
				append(attrs, slog.String("cause", err.Error()))...)
		}
		return Judgment{}, errors.Wrap(ErrMalformedJudgment, "judgment is not an object", attrs...)
	}

	categories := object(fields["category_scores"])
	if len(categories) == 0 {
		categories = object(fields["scores"])
	}

	j := Judgment{
		Categories: models.CategoryScores{
			Effort:                categoryScore(categories, "effort"),
			Creativity:            categoryScore(categories, "creativity"),
			IntentClarity:         categoryScore(categories, "intent_clarity"),
			EmotionalIntelligence: categoryScore(categories, "emotional_intelligence"),
		},
		Modifier:          0,
		ModifierBreakdown: nil,
		ModifierReasons:   stringList(fields["emotion_modifier_reasons"]),
		Feedback:          parseFeedback(fields["feedback"]),
		PerQuestionScores: nil,
	}

	if breakdown := object(fields["emotion_modifiers"]); breakdown != nil {
		b := models.ModifierBreakdown{
			ConfidenceBoost:       numberOr(breakdown["confidence_boost"], 0),
			AnxietyContext:        numberOr(breakdown["anxiety_context"], 0),
			EnthusiasmBonus:       numberOr(breakdown["enthusiasm_bonus"], 0),
			DiscomfortSensitivity: numberOr(breakdown["discomfort_sensitivity"], 0),
		}
		j.ModifierBreakdown = &b
		j.Modifier = clamp(b.Sum(), minModifier, maxModifier)
	} else {
		j.Modifier = clamp(numberOr(fields["emotion_modifier"], 0), minModifier, maxModifier)
	}

	if raw := bytes.TrimSpace(fields["per_question_scores"]); len(raw) > 0 && raw[0] == '[' {
		j.PerQuestionScores = json.RawMessage(raw)
	}

	return j, nil
}

// stripCodeFence removes a leading ``` line and a trailing ``` line.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func categoryScore(categories map[string]json.RawMessage, key string) float64 {
	return clamp(numberOr(categories[key], DefaultCategoryScore), minCategoryScore, maxCategoryScore)
}

// object decodes raw as a JSON object, returning nil for anything else.
func object(raw json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// numberOr accepts a JSON number or a numeric string. Anything else, including NaN and infinities, yields fallback.
func numberOr(raw json.RawMessage, fallback float64) float64 {
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return fallback
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return f
}

// stringList keeps the non-null entries of a JSON array, formatting non-string scalars as text.
func stringList(raw json.RawMessage) []string {
	items := []string{}
	var values []any
	if err := json.Unmarshal(raw, &values); err != nil {
		return items
	}
	for _, v := range values {
		switch t := v.(type) {
		case nil:
		case string:
			items = append(items, t)
		case float64:
			items = append(items, strconv.FormatFloat(t, 'f', -1, 64))
		case bool:
			items = append(items, strconv.FormatBool(t))
		default:
			b, _ := json.Marshal(t)
			items = append(items, string(b))
		}
	}
	return items
}

func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func parseFeedback(raw json.RawMessage) models.Feedback {
	fields := object(raw)
	summary := stringField(fields["summary"])
	if summary == "" {
		summary = DefaultFeedbackSummary
	}
	return models.Feedback{
		Summary:        summary,
		Strengths:      stringList(fields["strengths"]),
		Improvements:   stringList(fields["improvements"]),
		FavoriteMoment: stringField(fields["favorite_moment"]),
		HeartNote:      stringField(fields["heart_note"]),
	}
}
