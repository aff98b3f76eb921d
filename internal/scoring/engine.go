// Package scoring turns a judgment model's response about a finished interview into a bounded, weighted score and a
// date or no-date verdict.
package scoring

import (
	"context"
	"github.com/google/uuid"
	"github.com/myrjola/hotline/internal/emotion"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"log/slog"
	"time"
)

var ErrJudgmentFailed = errors.NewSentinel("judgment call failed")

// JudgmentRequest is everything the judgment model needs to know about an interview.
type JudgmentRequest struct {
	Heart      models.Heart
	Snapshot   models.SessionSnapshot
	EmotionArc string
	Weights    Weights
}

// JudgmentResponse is the unparsed model output and its usage accounting.
type JudgmentResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Judge asks a language model to assess an interview.
type Judge interface {
	Judge(ctx context.Context, req JudgmentRequest) (JudgmentResponse, error)
}

// Input is a completed interview to be scored.
type Input struct {
	Heart    models.Heart
	Snapshot models.SessionSnapshot
	// Timeline is the suitor's emotion timeline. When empty it is reconstructed from the snapshot.
	Timeline []models.EmotionSnapshot
}

type Config struct {
	Weights          Weights
	VerdictThreshold float64
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine scores completed interviews.
type Engine struct {
	judge     Judge
	weights   Weights
	threshold float64
	tracer    trace.Tracer
	now       func() time.Time
	logger    *slog.Logger
}

func NewEngine(judge Judge, cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate weights")
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		judge:     judge,
		weights:   cfg.Weights,
		threshold: cfg.VerdictThreshold,
		tracer:    tp.Tracer("github.com/myrjola/hotline/internal/scoring"),
		now:       now,
		logger:    logger.With("source", "Engine"),
	}, nil
}

// Score obtains a judgment for in and normalizes it into a score record.
//
// A failed judgment call is wrapped in ErrJudgmentFailed and an unparseable response in ErrMalformedJudgment.
// Neither is retried here.
func (e *Engine) Score(ctx context.Context, in Input) (*models.Score, error) {
	sessionID := in.Snapshot.SessionID
	ctx, span := e.tracer.Start(ctx, "scoring.Score", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("session.questions_asked", in.Snapshot.QuestionsAsked),
	))
	defer span.End()

	timeline := in.Timeline
	if len(timeline) == 0 {
		timeline = TimelineFromSnapshot(in.Snapshot)
	}

	started := e.now()
	resp, err := e.judge.Judge(ctx, JudgmentRequest{
		Heart:      in.Heart,
		Snapshot:   in.Snapshot,
		EmotionArc: emotion.Arc(timeline),
		Weights:    e.weights,
	})
	duration := e.now().Sub(started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "judgment failed")
		return nil, errors.Join(
			errors.Wrap(ErrJudgmentFailed, "judge session", slog.String("session_id", sessionID)),
			err,
		)
	}

	judgment, err := ParseJudgment(resp.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed judgment")
		return nil, errors.Wrap(err, "parse judgment",
			slog.String("session_id", sessionID), slog.String("model", resp.Model))
	}

	score := Normalize(judgment, e.weights, e.threshold)
	score.ID = uuid.NewString()
	score.SessionID = sessionID
	score.JudgeModel = resp.Model
	score.InputTokens = resp.InputTokens
	score.OutputTokens = resp.OutputTokens
	score.ScoringDuration = duration
	score.RawJudgment = resp.Text
	score.CreatedAt = e.now().UTC()

	span.SetAttributes(
		attribute.Float64("score.final", score.FinalScore),
		attribute.String("score.verdict", string(score.Verdict)),
	)
	e.logger.LogAttrs(ctx, slog.LevelInfo, "session scored",
		slog.String("session_id", sessionID),
		slog.Float64("weighted_total", score.WeightedTotal),
		slog.Float64("emotion_modifier", score.EmotionModifier),
		slog.Float64("final_score", score.FinalScore),
		slog.String("verdict", string(score.Verdict)),
		slog.Duration("duration", duration))
	return &score, nil
}

// Normalize computes the weighted total, final score, and verdict of a parsed judgment.
func Normalize(j Judgment, weights Weights, threshold float64) models.Score {
	weighted := weights.Apply(j.Categories)
	final := round6(clamp(weighted+j.Modifier, minCategoryScore, maxCategoryScore))
	return models.Score{ //nolint:exhaustruct // identity and audit fields are filled by the caller
		Categories:             j.Categories,
		WeightedTotal:          weighted,
		EmotionModifier:        j.Modifier,
		ModifierBreakdown:      j.ModifierBreakdown,
		EmotionModifierReasons: j.ModifierReasons,
		FinalScore:             final,
		VerdictThreshold:       threshold,
		Verdict:                Decide(final, threshold),
		Feedback:               j.Feedback,
		PerQuestionScores:      j.PerQuestionScores,
	}
}

// Decide returns VerdictDate when finalScore reaches threshold.
func Decide(finalScore, threshold float64) models.Verdict {
	if finalScore >= threshold {
		return models.VerdictDate
	}
	return models.VerdictNoDate
}

// TimelineFromSnapshot collects the emotion snapshots attached to the suitor's utterances in order.
func TimelineFromSnapshot(snapshot models.SessionSnapshot) []models.EmotionSnapshot {
	var timeline []models.EmotionSnapshot
	for _, entry := range snapshot.Transcript {
		if entry.Speaker == models.SpeakerSuitor && entry.Emotion != nil {
			timeline = append(timeline, *entry.Emotion)
		}
	}
	if len(timeline) > 0 {
		return timeline
	}
	for _, turn := range snapshot.Turns {
		if turn.Emotion != nil {
			timeline = append(timeline, *turn.Emotion)
		}
	}
	return timeline
}
