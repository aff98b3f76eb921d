package repositories

import (
	"context"
	"database/sql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"github.com/myrjola/hotline/internal/sqlite"
	"log/slog"
	"time"
)

type SessionRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewSessionRepository(dbs *sqlite.Database, logger *slog.Logger) *SessionRepository {
	return &SessionRepository{
		dbs:    dbs,
		logger: logger.With("source", "SessionRepository"),
	}
}

const selectSession = `SELECT id, heart_id, status, COALESCE(end_reason, '') AS end_reason, created_at, started_at, ended_at
FROM sessions`

// Create inserts a new pending session for the heart.
func (r *SessionRepository) Create(ctx context.Context, heartID string, createdAt time.Time) (*models.SessionRow, error) {
	row := models.SessionRow{
		ID:        uuid.NewString(),
		HeartID:   heartID,
		Status:    models.SessionStatusPending,
		EndReason: "",
		CreatedAt: createdAt.UTC(),
		StartedAt: sql.NullTime{},
		EndedAt:   sql.NullTime{},
	}
	if _, err := r.dbs.ReadWrite.ExecContext(ctx,
		`INSERT INTO sessions (id, heart_id, status, created_at) VALUES (?, ?, ?, ?)`,
		row.ID, row.HeartID, row.Status, row.CreatedAt); err != nil {
		return nil, errors.Wrap(err, "insert session", slog.String("heart_id", heartID))
	}
	return &row, nil
}

// Get returns the persisted state of a session.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.SessionRow, error) {
	var row models.SessionRow
	if err := r.dbs.ReadOnly.GetContext(ctx, &row, selectSession+` WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "read session")
	}
	return &row, nil
}

// Start moves a pending session to in_progress once the suitor has connected.
func (r *SessionRepository) Start(ctx context.Context, id string, startedAt time.Time) error {
	res, err := r.dbs.ReadWrite.ExecContext(ctx,
		`UPDATE sessions SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		models.SessionStatusInProgress, startedAt.UTC(), id, models.SessionStatusPending)
	if err != nil {
		return errors.Wrap(err, "start session", slog.String("session_id", id))
	}
	return r.checkTransition(ctx, res, id, models.SessionStatusPending, models.SessionStatusInProgress)
}

// Transition moves the session from one status to another.
//
// It fails with models.ErrInvalidTransition if the transition is not allowed or if the session is not in status from.
func (r *SessionRepository) Transition(ctx context.Context, id string, from, to models.SessionStatus) error {
	if err := models.ValidateTransition(from, to); err != nil {
		return errors.Wrap(err, "transition session", slog.String("session_id", id))
	}
	res, err := r.dbs.ReadWrite.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return errors.Wrap(err, "update session status", slog.String("session_id", id))
	}
	return r.checkTransition(ctx, res, id, from, to)
}

// Fail marks the session failed and records why.
func (r *SessionRepository) Fail(ctx context.Context, id string, from models.SessionStatus, reason string) error {
	if err := models.ValidateTransition(from, models.SessionStatusFailed); err != nil {
		return errors.Wrap(err, "fail session", slog.String("session_id", id))
	}
	res, err := r.dbs.ReadWrite.ExecContext(ctx,
		`UPDATE sessions SET status = ?, failure_reason = ? WHERE id = ? AND status = ?`,
		models.SessionStatusFailed, reason, id, from)
	if err != nil {
		return errors.Wrap(err, "update session status", slog.String("session_id", id))
	}
	return r.checkTransition(ctx, res, id, from, models.SessionStatusFailed)
}

// checkTransition turns a conditional update that touched no rows into ErrNotFound or ErrInvalidTransition.
func (r *SessionRepository) checkTransition(
	ctx context.Context,
	res sql.Result,
	id string,
	from, to models.SessionStatus,
) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 1 {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "session transitioned", slog.String("session_id", id),
			slog.String("from", string(from)), slog.String("to", string(to)))
		return nil
	}
	current, err := r.Get(ctx, id)
	if err != nil {
		return errors.Wrap(err, "read session after failed transition")
	}
	return errors.Wrap(models.ErrInvalidTransition, "session is not in the expected status",
		slog.String("session_id", id),
		slog.String("expected", string(from)),
		slog.String("actual", string(current.Status)),
		slog.String("to", string(to)))
}

type turnRow struct {
	QuestionIndex   int            `db:"question_index"`
	QuestionText    string         `db:"question_text"`
	ResponseSummary string         `db:"response_summary"`
	ResponseQuality string         `db:"response_quality"`
	RecordedAt      time.Time      `db:"recorded_at"`
	Emotion         sql.NullString `db:"emotion"`
}

type transcriptRow struct {
	SequenceIndex int            `db:"sequence_index"`
	Speaker       models.Speaker `db:"speaker"`
	Text          string         `db:"text"`
	SpokenAt      time.Time      `db:"spoken_at"`
	Emotion       sql.NullString `db:"emotion"`
}

// SaveConversation persists a finished interview and returns the resulting session status.
//
// An in_progress session becomes completed, or expired when the snapshot carries a reaper assigned end reason. If the
// reaper already expired the session, the transcript is still stored for the record but the status stays expired.
// When the snapshot has no transcript entries, one is synthesized from the turns.
func (r *SessionRepository) SaveConversation(
	ctx context.Context,
	snapshot models.SessionSnapshot,
) (models.SessionStatus, error) {
	var (
		status models.SessionStatus
		attrs  = []slog.Attr{slog.String("session_id", snapshot.SessionID)}
	)
	err := r.dbs.WithTx(ctx, func(tx *sqlx.Tx) error {
		var current models.SessionStatus
		if err := tx.GetContext(ctx, &current, `SELECT status FROM sessions WHERE id = ?`,
			snapshot.SessionID); err != nil {
			return notFound(err, "read session status")
		}

		switch current {
		case models.SessionStatusInProgress:
			status = models.SessionStatusCompleted
			if snapshot.EndReason.IsReaperAssigned() {
				status = models.SessionStatusExpired
			}
		case models.SessionStatusExpired:
			status = models.SessionStatusExpired
		case models.SessionStatusPending, models.SessionStatusCompleted, models.SessionStatusScoring,
			models.SessionStatusScored, models.SessionStatusFailed, models.SessionStatusCancelled:
			return errors.Wrap(models.ErrInvalidTransition, "save conversation",
				append(attrs, slog.String("status", string(current)))...)
		}

		if err := insertTurns(ctx, tx, snapshot); err != nil {
			return err
		}
		if err := insertTranscript(ctx, tx, snapshot); err != nil {
			return err
		}

		var endedAt sql.NullTime
		if snapshot.EndedAt != nil {
			endedAt = sql.NullTime{Time: snapshot.EndedAt.UTC(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sessions
SET status           = ?,
    end_reason       = COALESCE(end_reason, ?),
    ended_at         = COALESCE(ended_at, ?),
    duration_seconds = ?,
    questions_asked  = ?,
    total_questions  = ?
WHERE id = ?`,
			status, snapshot.EndReason, endedAt, snapshot.DurationSeconds, snapshot.QuestionsAsked,
			snapshot.TotalQuestions, snapshot.SessionID); err != nil {
			return errors.Wrap(err, "update session", attrs...)
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "save conversation transaction", attrs...)
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "conversation saved",
		append(attrs, slog.String("status", string(status)), slog.Int("turns", len(snapshot.Turns)))...)
	return status, nil
}

func insertTurns(ctx context.Context, tx *sqlx.Tx, snapshot models.SessionSnapshot) error {
	for _, turn := range snapshot.Turns {
		emotion, err := nullJSON(turn.Emotion)
		if err != nil {
			return errors.Wrap(err, "encode turn emotion")
		}
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO session_turns
    (session_id, question_index, question_text, response_summary, response_quality, recorded_at, emotion)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			snapshot.SessionID, turn.QuestionIndex, turn.QuestionText, turn.ResponseSummary, turn.ResponseQuality,
			turn.Timestamp.UTC(), emotion); err != nil {
			return errors.Wrap(err, "insert turn", slog.Int("question_index", turn.QuestionIndex))
		}
	}
	return nil
}

func insertTranscript(ctx context.Context, tx *sqlx.Tx, snapshot models.SessionSnapshot) error {
	entries := snapshot.Transcript
	if len(entries) == 0 {
		entries = SynthesizeTranscript(snapshot.Turns)
	}
	for _, entry := range entries {
		emotion, err := nullJSON(entry.Emotion)
		if err != nil {
			return errors.Wrap(err, "encode transcript emotion")
		}
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO transcript_entries
    (session_id, sequence_index, speaker, text, spoken_at, emotion)
VALUES (?, ?, ?, ?, ?, ?)`,
			snapshot.SessionID, entry.SequenceIndex, entry.Speaker, entry.Text, entry.Timestamp.UTC(),
			emotion); err != nil {
			return errors.Wrap(err, "insert transcript entry", slog.Int("sequence_index", entry.SequenceIndex))
		}
	}
	return nil
}

// SynthesizeTranscript rebuilds a transcript from turns: the avatar asks each question and the suitor answers with
// the response summary.
func SynthesizeTranscript(turns []models.Turn) []models.TranscriptEntry {
	entries := make([]models.TranscriptEntry, 0, 2*len(turns)) //nolint:mnd // question and answer
	for _, turn := range turns {
		entries = append(entries,
			models.TranscriptEntry{
				Speaker:       models.SpeakerAvatar,
				Text:          turn.QuestionText,
				Timestamp:     turn.Timestamp,
				SequenceIndex: len(entries),
				Emotion:       nil,
			},
			models.TranscriptEntry{
				Speaker:       models.SpeakerSuitor,
				Text:          turn.ResponseSummary,
				Timestamp:     turn.Timestamp,
				SequenceIndex: len(entries) + 1,
				Emotion:       turn.Emotion,
			},
		)
	}
	return entries
}

// Snapshot rebuilds the exported interview of a saved session.
func (r *SessionRepository) Snapshot(ctx context.Context, id string) (models.SessionSnapshot, error) {
	var (
		stats struct {
			models.SessionRow
			DurationSeconds sql.NullFloat64 `db:"duration_seconds"`
			QuestionsAsked  sql.NullInt64   `db:"questions_asked"`
			TotalQuestions  sql.NullInt64   `db:"total_questions"`
		}
		turns      []turnRow
		transcript []transcriptRow
		attrs      = slog.String("session_id", id)
	)
	if err := r.dbs.ReadOnly.GetContext(ctx, &stats, `SELECT id, heart_id, status, COALESCE(end_reason, '') AS end_reason,
       created_at, started_at, ended_at, duration_seconds, questions_asked, total_questions
FROM sessions WHERE id = ?`, id); err != nil {
		return models.SessionSnapshot{}, notFound(err, "read session")
	}
	if err := r.dbs.ReadOnly.SelectContext(ctx, &turns, `SELECT question_index, question_text, response_summary,
       response_quality, recorded_at, emotion
FROM session_turns WHERE session_id = ? ORDER BY question_index`, id); err != nil {
		return models.SessionSnapshot{}, errors.Wrap(err, "query turns", attrs)
	}
	if err := r.dbs.ReadOnly.SelectContext(ctx, &transcript, `SELECT sequence_index, speaker, text, spoken_at, emotion
FROM transcript_entries WHERE session_id = ? ORDER BY sequence_index`, id); err != nil {
		return models.SessionSnapshot{}, errors.Wrap(err, "query transcript", attrs)
	}

	snapshot := models.SessionSnapshot{
		SessionID:       id,
		Turns:           make([]models.Turn, 0, len(turns)),
		Transcript:      make([]models.TranscriptEntry, 0, len(transcript)),
		StartedAt:       stats.StartedAt.Time,
		EndedAt:         nil,
		EndReason:       stats.EndReason,
		DurationSeconds: stats.DurationSeconds.Float64,
		QuestionsAsked:  int(stats.QuestionsAsked.Int64),
		TotalQuestions:  int(stats.TotalQuestions.Int64),
	}
	if stats.EndedAt.Valid {
		endedAt := stats.EndedAt.Time
		snapshot.EndedAt = &endedAt
	}
	if snapshot.EndReason == "" {
		snapshot.EndReason = models.EndReasonUnknown
	}
	for _, t := range turns {
		turn := models.Turn{
			QuestionIndex:   t.QuestionIndex,
			QuestionText:    t.QuestionText,
			ResponseSummary: t.ResponseSummary,
			ResponseQuality: t.ResponseQuality,
			Timestamp:       t.RecordedAt,
			Emotion:         nil,
		}
		if t.Emotion.Valid {
			turn.Emotion = &models.EmotionSnapshot{} //nolint:exhaustruct // filled by unmarshal
			if err := unmarshalNullJSON(t.Emotion, turn.Emotion); err != nil {
				return models.SessionSnapshot{}, errors.Wrap(err, "decode turn emotion", attrs)
			}
		}
		snapshot.Turns = append(snapshot.Turns, turn)
	}
	for _, e := range transcript {
		entry := models.TranscriptEntry{
			Speaker:       e.Speaker,
			Text:          e.Text,
			Timestamp:     e.SpokenAt,
			SequenceIndex: e.SequenceIndex,
			Emotion:       nil,
		}
		if e.Emotion.Valid {
			entry.Emotion = &models.EmotionSnapshot{} //nolint:exhaustruct // filled by unmarshal
			if err := unmarshalNullJSON(e.Emotion, entry.Emotion); err != nil {
				return models.SessionSnapshot{}, errors.Wrap(err, "decode transcript emotion", attrs)
			}
		}
		snapshot.Transcript = append(snapshot.Transcript, entry)
	}
	return snapshot, nil
}

// ExpiredSessions lists the sessions expired by one ExpireStale call.
type ExpiredSessions struct {
	Pending    []string
	InProgress []string
}

// ExpireStale expires pending sessions created before now-pendingTimeout and in_progress sessions started before
// now-maxDuration. Both updates commit together or not at all. Rows in any other status are never touched.
func (r *SessionRepository) ExpireStale(
	ctx context.Context,
	now time.Time,
	pendingTimeout time.Duration,
	maxDuration time.Duration,
) (ExpiredSessions, error) {
	var (
		expired ExpiredSessions
		endedAt = now.UTC()
	)
	err := r.dbs.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &expired.Pending, `UPDATE sessions
SET status = ?, end_reason = ?, ended_at = ?
WHERE status = ? AND created_at < ?
RETURNING id`,
			models.SessionStatusExpired, models.EndReasonConnectionTimeout, endedAt,
			models.SessionStatusPending, endedAt.Add(-pendingTimeout)); err != nil {
			return errors.Wrap(err, "expire pending sessions")
		}
		if err := tx.SelectContext(ctx, &expired.InProgress, `UPDATE sessions
SET status = ?, end_reason = ?, ended_at = ?
WHERE status = ? AND started_at IS NOT NULL AND started_at < ?
RETURNING id`,
			models.SessionStatusExpired, models.EndReasonMaxDurationExceeded, endedAt,
			models.SessionStatusInProgress, endedAt.Add(-maxDuration)); err != nil {
			return errors.Wrap(err, "expire in-progress sessions")
		}
		return nil
	})
	if err != nil {
		return ExpiredSessions{}, errors.Wrap(err, "expire stale sessions")
	}
	return expired, nil
}
