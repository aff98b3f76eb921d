package repositories_test

import (
	"context"
	"github.com/myrjola/hotline/internal/models"
	"github.com/myrjola/hotline/internal/repositories"
	"github.com/myrjola/hotline/internal/sqlite"
	"github.com/myrjola/hotline/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
	"time"
)

var t0 = time.Date(2026, time.February, 14, 19, 0, 0, 0, time.UTC)

// newTestDB creates a new in-memory database for testing purposes.
func newTestDB(t *testing.T) *sqlite.Database {
	t.Helper()
	dbs, err := sqlite.NewDatabase(context.Background(), ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, dbs.Close())
	})
	return dbs
}

// seedHeart inserts a heart with two required screening questions.
func seedHeart(t *testing.T, dbs *sqlite.Database) models.Heart {
	t.Helper()
	heart := models.Heart{
		ID:           "heart-1",
		DisplayName:  "Alex",
		Bio:          "Climber and amateur baker.",
		Persona:      "playful and direct",
		Expectations: "Someone curious.",
		Dealbreakers: []string{"rudeness"},
		Questions: []models.Question{
			{Text: "What does a perfect Sunday look like?", Required: true},
			{Text: "What are you looking for?", Required: true},
		},
		CreatedAt: t0,
	}
	repo := repositories.NewHeartRepository(dbs, testhelpers.NewLogger(io.Discard))
	require.NoError(t, repo.Upsert(context.Background(), heart))
	return heart
}
