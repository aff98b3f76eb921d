package repositories_test

import (
	"context"
	"encoding/json"
	"github.com/myrjola/hotline/internal/models"
	"github.com/myrjola/hotline/internal/repositories"
	"github.com/myrjola/hotline/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
	"time"
)

func testScore(sessionID string) *models.Score {
	return &models.Score{
		ID:        "score-1",
		SessionID: sessionID,
		Categories: models.CategoryScores{
			Effort:                80,
			Creativity:            70,
			IntentClarity:         90,
			EmotionalIntelligence: 60,
		},
		WeightedTotal:   75.5,
		EmotionModifier: 2,
		ModifierBreakdown: &models.ModifierBreakdown{
			ConfidenceBoost:       3,
			AnxietyContext:        0,
			EnthusiasmBonus:       1,
			DiscomfortSensitivity: -2,
		},
		EmotionModifierReasons: []string{"steady voice"},
		FinalScore:             77.5,
		VerdictThreshold:       65,
		Verdict:                models.VerdictDate,
		Feedback: models.Feedback{
			Summary:        "Warm and specific.",
			Strengths:      []string{"humour"},
			Improvements:   []string{},
			FavoriteMoment: "The sourdough story.",
			HeartNote:      "Worth a coffee.",
		},
		PerQuestionScores: json.RawMessage(`[{"question_index":0,"score":80}]`),
		JudgeModel:        "gpt-4o",
		InputTokens:       1234,
		OutputTokens:      56,
		ScoringDuration:   1500 * time.Millisecond,
		RawJudgment:       `{"category_scores":{}}`,
		CreatedAt:         t0.Add(10 * time.Minute),
	}
}

func TestScoreRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sessions, dbs, heart := newSessionRepo(t)
	logger := testhelpers.NewLogger(io.Discard)
	repo := repositories.NewScoreRepository(dbs, logger)

	row, err := sessions.Create(ctx, heart.ID, t0)
	require.NoError(t, err)
	require.NoError(t, sessions.Start(ctx, row.ID, t0))
	_, err = sessions.SaveConversation(ctx, finishedSnapshot(row.ID))
	require.NoError(t, err)

	want := testScore(row.ID)
	err = repo.SaveScored(ctx, want)
	require.ErrorIs(t, err, models.ErrInvalidTransition, "only a session being scored can be scored")
	_, err = repo.GetBySessionID(ctx, row.ID)
	require.ErrorIs(t, err, repositories.ErrNotFound)

	require.NoError(t, sessions.Transition(ctx, row.ID, models.SessionStatusCompleted, models.SessionStatusScoring))
	require.NoError(t, repo.SaveScored(ctx, want))

	got, err := repo.GetBySessionID(ctx, row.ID)
	require.NoError(t, err)
	require.True(t, want.CreatedAt.Equal(got.CreatedAt))
	got.CreatedAt = want.CreatedAt
	require.Equal(t, want, got)

	session, err := sessions.Get(ctx, row.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusScored, session.Status)

	_, err = dbs.ReadWrite.ExecContext(ctx, `UPDATE scores SET final_score = 10 WHERE session_id = ?`, row.ID)
	require.Error(t, err, "scores are immutable")
}
