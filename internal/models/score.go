package models

import (
	"encoding/json"
	"time"
)

// Verdict is the final screening decision.
type Verdict string

const (
	VerdictDate   Verdict = "date"
	VerdictNoDate Verdict = "no_date"
)

// Feedback is the structured, human readable part of a score.
type Feedback struct {
	Summary        string   `json:"summary"`
	Strengths      []string `json:"strengths"`
	Improvements   []string `json:"improvements"`
	FavoriteMoment string   `json:"favorite_moment"`
	HeartNote      string   `json:"heart_note"`
}

// ModifierBreakdown itemizes the emotion modifier when the judgment provides one.
type ModifierBreakdown struct {
	ConfidenceBoost       float64 `json:"confidence_boost"`
	AnxietyContext        float64 `json:"anxiety_context"`
	EnthusiasmBonus       float64 `json:"enthusiasm_bonus"`
	DiscomfortSensitivity float64 `json:"discomfort_sensitivity"`
}

// Sum adds up all components.
func (b ModifierBreakdown) Sum() float64 {
	return b.ConfidenceBoost + b.AnxietyContext + b.EnthusiasmBonus + b.DiscomfortSensitivity
}

// CategoryScores are the four rubric categories, each in [0,100].
type CategoryScores struct {
	Effort                float64 `json:"effort"`
	Creativity            float64 `json:"creativity"`
	IntentClarity         float64 `json:"intent_clarity"`
	EmotionalIntelligence float64 `json:"emotional_intelligence"`
}

// Score is the immutable scoring result of a completed session.
type Score struct {
	ID                     string             `json:"id"`
	SessionID              string             `json:"session_id"`
	Categories             CategoryScores     `json:"categories"`
	WeightedTotal          float64            `json:"weighted_total"`
	EmotionModifier        float64            `json:"emotion_modifier"`
	ModifierBreakdown      *ModifierBreakdown `json:"modifier_breakdown,omitempty"`
	EmotionModifierReasons []string           `json:"emotion_modifier_reasons"`
	FinalScore             float64            `json:"final_score"`
	VerdictThreshold       float64            `json:"verdict_threshold"`
	Verdict                Verdict            `json:"verdict"`
	Feedback               Feedback           `json:"feedback"`
	PerQuestionScores      json.RawMessage    `json:"per_question_scores,omitempty"`
	JudgeModel             string             `json:"judge_model"`
	InputTokens            int                `json:"input_tokens"`
	OutputTokens           int                `json:"output_tokens"`
	ScoringDuration        time.Duration      `json:"scoring_duration"`
	RawJudgment            string             `json:"raw_judgment"`
	CreatedAt              time.Time          `json:"created_at"`
}
