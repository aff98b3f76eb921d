package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"github.com/jmoiron/sqlx"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"github.com/myrjola/hotline/internal/sqlite"
	"log/slog"
	"time"
)

type ScoreRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewScoreRepository(dbs *sqlite.Database, logger *slog.Logger) *ScoreRepository {
	return &ScoreRepository{
		dbs:    dbs,
		logger: logger.With("source", "ScoreRepository"),
	}
}

type scoreRow struct {
	ID                     string         `db:"id"`
	SessionID              string         `db:"session_id"`
	Effort                 float64        `db:"effort"`
	Creativity             float64        `db:"creativity"`
	IntentClarity          float64        `db:"intent_clarity"`
	EmotionalIntelligence  float64        `db:"emotional_intelligence"`
	WeightedTotal          float64        `db:"weighted_total"`
	EmotionModifier        float64        `db:"emotion_modifier"`
	ModifierBreakdown      sql.NullString `db:"modifier_breakdown"`
	EmotionModifierReasons string         `db:"emotion_modifier_reasons"`
	FinalScore             float64        `db:"final_score"`
	VerdictThreshold       float64        `db:"verdict_threshold"`
	Verdict                models.Verdict `db:"verdict"`
	Feedback               string         `db:"feedback"`
	PerQuestionScores      sql.NullString `db:"per_question_scores"`
	JudgeModel             string         `db:"judge_model"`
	InputTokens            int            `db:"input_tokens"`
	OutputTokens           int            `db:"output_tokens"`
	ScoringDurationMS      int64          `db:"scoring_duration_ms"`
	RawJudgment            string         `db:"raw_judgment"`
	CreatedAt              time.Time      `db:"created_at"`
}

// SaveScored stores the score and moves its session from scoring to scored in one transaction.
func (r *ScoreRepository) SaveScored(ctx context.Context, score *models.Score) error {
	attrs := []slog.Attr{slog.String("session_id", score.SessionID), slog.String("score_id", score.ID)}
	row, err := toScoreRow(score)
	if err != nil {
		return errors.Wrap(err, "encode score", attrs...)
	}

	err = r.dbs.WithTx(ctx, func(tx *sqlx.Tx) error {
		var res sql.Result
		if res, err = tx.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ? AND status = ?`,
			models.SessionStatusScored, score.SessionID, models.SessionStatusScoring); err != nil {
			return errors.Wrap(err, "mark session scored")
		}
		var affected int64
		if affected, err = res.RowsAffected(); err != nil {
			return errors.Wrap(err, "rows affected")
		}
		if affected != 1 {
			return errors.Wrap(models.ErrInvalidTransition, "session is not being scored")
		}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO scores (id, session_id, effort, creativity, intent_clarity,
                    emotional_intelligence, weighted_total, emotion_modifier, modifier_breakdown,
                    emotion_modifier_reasons, final_score, verdict_threshold, verdict, feedback,
                    per_question_scores, judge_model, input_tokens, output_tokens, scoring_duration_ms,
                    raw_judgment, created_at)
VALUES (:id, :session_id, :effort, :creativity, :intent_clarity, :emotional_intelligence, :weighted_total,
        :emotion_modifier, :modifier_breakdown, :emotion_modifier_reasons, :final_score, :verdict_threshold,
        :verdict, :feedback, :per_question_scores, :judge_model, :input_tokens, :output_tokens,
        :scoring_duration_ms, :raw_judgment, :created_at)`, row); err != nil {
			return errors.Wrap(err, "insert score")
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "save score transaction", attrs...)
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "score saved", append(attrs,
		slog.Float64("final_score", score.FinalScore),
		slog.String("verdict", string(score.Verdict)))...)
	return nil
}

// GetBySessionID returns the score of a scored session.
func (r *ScoreRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Score, error) {
	var row scoreRow
	if err := r.dbs.ReadOnly.GetContext(ctx, &row, `SELECT * FROM scores WHERE session_id = ?`, sessionID); err != nil {
		return nil, notFound(err, "read score")
	}
	score, err := row.toScore()
	if err != nil {
		return nil, errors.Wrap(err, "decode score", slog.String("session_id", sessionID))
	}
	return score, nil
}

func toScoreRow(score *models.Score) (scoreRow, error) {
	breakdown, err := nullJSON(score.ModifierBreakdown)
	if err != nil {
		return scoreRow{}, errors.Wrap(err, "encode modifier breakdown")
	}
	reasons := score.EmotionModifierReasons
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return scoreRow{}, errors.Wrap(err, "encode modifier reasons")
	}
	feedbackJSON, err := json.Marshal(score.Feedback)
	if err != nil {
		return scoreRow{}, errors.Wrap(err, "encode feedback")
	}
	perQuestion, err := nullJSON(score.PerQuestionScores)
	if err != nil {
		return scoreRow{}, errors.Wrap(err, "encode per question scores")
	}
	return scoreRow{
		ID:                     score.ID,
		SessionID:              score.SessionID,
		Effort:                 score.Categories.Effort,
		Creativity:             score.Categories.Creativity,
		IntentClarity:          score.Categories.IntentClarity,
		EmotionalIntelligence:  score.Categories.EmotionalIntelligence,
		WeightedTotal:          score.WeightedTotal,
		EmotionModifier:        score.EmotionModifier,
		ModifierBreakdown:      breakdown,
		EmotionModifierReasons: string(reasonsJSON),
		FinalScore:             score.FinalScore,
		VerdictThreshold:       score.VerdictThreshold,
		Verdict:                score.Verdict,
		Feedback:               string(feedbackJSON),
		PerQuestionScores:      perQuestion,
		JudgeModel:             score.JudgeModel,
		InputTokens:            score.InputTokens,
		OutputTokens:           score.OutputTokens,
		ScoringDurationMS:      score.ScoringDuration.Milliseconds(),
		RawJudgment:            score.RawJudgment,
		CreatedAt:              score.CreatedAt.UTC(),
	}, nil
}

func (row scoreRow) toScore() (*models.Score, error) {
	score := models.Score{
		ID:        row.ID,
		SessionID: row.SessionID,
		Categories: models.CategoryScores{
			Effort:                row.Effort,
			Creativity:            row.Creativity,
			IntentClarity:         row.IntentClarity,
			EmotionalIntelligence: row.EmotionalIntelligence,
		},
		WeightedTotal:          row.WeightedTotal,
		EmotionModifier:        row.EmotionModifier,
		ModifierBreakdown:      nil,
		EmotionModifierReasons: nil,
		FinalScore:             row.FinalScore,
		VerdictThreshold:       row.VerdictThreshold,
		Verdict:                row.Verdict,
		Feedback:               models.Feedback{}, //nolint:exhaustruct // filled by unmarshal
		PerQuestionScores:      nil,
		JudgeModel:             row.JudgeModel,
		InputTokens:            row.InputTokens,
		OutputTokens:           row.OutputTokens,
		ScoringDuration:        time.Duration(row.ScoringDurationMS) * time.Millisecond,
		RawJudgment:            row.RawJudgment,
		CreatedAt:              row.CreatedAt,
	}
	if row.ModifierBreakdown.Valid {
		score.ModifierBreakdown = &models.ModifierBreakdown{} //nolint:exhaustruct // filled by unmarshal
		if err := unmarshalNullJSON(row.ModifierBreakdown, score.ModifierBreakdown); err != nil {
			return nil, errors.Wrap(err, "decode modifier breakdown")
		}
	}
	if err := json.Unmarshal([]byte(row.EmotionModifierReasons), &score.EmotionModifierReasons); err != nil {
		return nil, errors.Wrap(err, "decode modifier reasons")
	}
	if err := json.Unmarshal([]byte(row.Feedback), &score.Feedback); err != nil {
		return nil, errors.Wrap(err, "decode feedback")
	}
	if row.PerQuestionScores.Valid {
		score.PerQuestionScores = json.RawMessage(row.PerQuestionScores.String)
	}
	return &score, nil
}
