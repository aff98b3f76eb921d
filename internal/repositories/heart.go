package repositories

import (
	"context"
	"encoding/json"
	"github.com/jmoiron/sqlx"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"github.com/myrjola/hotline/internal/sqlite"
	"log/slog"
)

type HeartRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewHeartRepository(dbs *sqlite.Database, logger *slog.Logger) *HeartRepository {
	return &HeartRepository{
		dbs:    dbs,
		logger: logger.With("source", "HeartRepository"),
	}
}

type heartRow struct {
	models.Heart
	DealbreakersJSON string `db:"dealbreakers"`
}

type questionRow struct {
	Text     string `db:"text"`
	Required bool   `db:"required"`
}

// Upsert creates the heart or replaces its profile and screening questions.
func (r *HeartRepository) Upsert(ctx context.Context, heart models.Heart) error {
	dealbreakers := heart.Dealbreakers
	if dealbreakers == nil {
		dealbreakers = []string{}
	}
	dealbreakersJSON, err := json.Marshal(dealbreakers)
	if err != nil {
		return errors.Wrap(err, "marshal dealbreakers")
	}
	attrs := slog.String("heart_id", heart.ID)

	err = r.dbs.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt := `INSERT INTO hearts (id, display_name, bio, persona, expectations, dealbreakers, created_at)
VALUES (:id, :display_name, :bio, :persona, :expectations, :dealbreakers, :created_at)
ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name,
                               bio          = excluded.bio,
                               persona      = excluded.persona,
                               expectations = excluded.expectations,
                               dealbreakers = excluded.dealbreakers`
		if _, err = tx.NamedExecContext(ctx, stmt, map[string]any{
			"id":           heart.ID,
			"display_name": heart.DisplayName,
			"bio":          heart.Bio,
			"persona":      heart.Persona,
			"expectations": heart.Expectations,
			"dealbreakers": string(dealbreakersJSON),
			"created_at":   heart.CreatedAt.UTC(),
		}); err != nil {
			return errors.Wrap(err, "upsert heart", attrs)
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM screening_questions WHERE heart_id = ?`, heart.ID); err != nil {
			return errors.Wrap(err, "delete screening questions", attrs)
		}
		for i, q := range heart.Questions {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO screening_questions (heart_id, question_index, text, required) VALUES (?, ?, ?, ?)`,
				heart.ID, i, q.Text, q.Required); err != nil {
				return errors.Wrap(err, "insert screening question", attrs, slog.Int("question_index", i))
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "upsert heart transaction")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "heart saved", attrs, slog.Int("questions", len(heart.Questions)))
	return nil
}

// Get returns the heart with its screening questions in asking order.
func (r *HeartRepository) Get(ctx context.Context, id string) (*models.Heart, error) {
	var (
		row       heartRow
		questions []questionRow
		err       error
	)
	attrs := slog.String("heart_id", id)
	if err = r.dbs.ReadOnly.GetContext(ctx, &row,
		`SELECT id, display_name, bio, persona, expectations, dealbreakers, created_at FROM hearts WHERE id = ?`,
		id); err != nil {
		return nil, notFound(err, "read heart")
	}
	if err = json.Unmarshal([]byte(row.DealbreakersJSON), &row.Heart.Dealbreakers); err != nil {
		return nil, errors.Wrap(err, "unmarshal dealbreakers", attrs)
	}
	if err = r.dbs.ReadOnly.SelectContext(ctx, &questions,
		`SELECT text, required FROM screening_questions WHERE heart_id = ? ORDER BY question_index`,
		id); err != nil {
		return nil, errors.Wrap(err, "query screening questions", attrs)
	}
	heart := row.Heart
	heart.Questions = make([]models.Question, 0, len(questions))
	for _, q := range questions {
		heart.Questions = append(heart.Questions, models.Question{Text: q.Text, Required: q.Required})
	}
	return &heart, nil
}
