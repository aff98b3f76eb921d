package interview

import (
	"context"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"github.com/myrjola/hotline/internal/queue"
	"log/slog"
	"time"
)

var ErrAlreadyHandedOff = errors.NewSentinel("session already handed off")

// ConversationStore persists finished interviews.
type ConversationStore interface {
	// SaveConversation writes the transcript and moves the session out of in_progress.
	SaveConversation(ctx context.Context, snapshot models.SessionSnapshot) (models.SessionStatus, error)
	Transition(ctx context.Context, sessionID string, from, to models.SessionStatus) error
}

// Handoff moves a finished interview from memory to persistence and queues it for scoring.
type Handoff struct {
	store  ConversationStore
	queue  queue.Queue
	logger *slog.Logger
	now    func() time.Time
}

func NewHandoff(store ConversationStore, q queue.Queue, logger *slog.Logger) *Handoff {
	return &Handoff{
		store:  store,
		queue:  q,
		logger: logger.With("source", "Handoff"),
		now:    time.Now,
	}
}

// Finish ends the session with reason unless it has already ended, persists the export, and enqueues scoring.
//
// Only the first call for a session does any work. If the scoring job cannot be enqueued the session is marked
// failed so that it can be retried later.
func (h *Handoff) Finish(ctx context.Context, session *Session, reason models.EndReason) (models.SessionSnapshot, error) {
	if err := session.End(reason); err != nil && !errors.Is(err, ErrAlreadyEnded) {
		return models.SessionSnapshot{}, errors.Wrap(err, "end session")
	}
	if !session.claimHandoff() {
		return models.SessionSnapshot{}, errors.Wrap(ErrAlreadyHandedOff, "finish session",
			slog.String("session_id", session.ID()))
	}

	snapshot := session.Export()
	attrs := []slog.Attr{
		slog.String("session_id", snapshot.SessionID),
		slog.String("end_reason", string(snapshot.EndReason)),
	}

	status, err := h.store.SaveConversation(ctx, snapshot)
	if err != nil {
		session.releaseHandoff()
		return snapshot, errors.Wrap(err, "save conversation", attrs...)
	}
	if status != models.SessionStatusCompleted {
		h.logger.LogAttrs(ctx, slog.LevelInfo, "session not scored",
			append(attrs, slog.String("status", string(status)))...)
		return snapshot, nil
	}

	job := queue.Job{SessionID: snapshot.SessionID, EnqueuedAt: h.now().UTC(), Attempt: 1}
	if err = h.queue.Enqueue(ctx, job); err != nil {
		enqueueErr := errors.Wrap(err, "enqueue scoring", attrs...)
		if failErr := h.store.Transition(ctx, snapshot.SessionID,
			models.SessionStatusCompleted, models.SessionStatusFailed); failErr != nil {
			return snapshot, errors.Join(enqueueErr, errors.Wrap(failErr, "mark session failed", attrs...))
		}
		return snapshot, enqueueErr
	}

	h.logger.LogAttrs(ctx, slog.LevelInfo, "session handed off for scoring",
		append(attrs,
			slog.Int("questions_asked", snapshot.QuestionsAsked),
			slog.Int("total_questions", snapshot.TotalQuestions),
			slog.Float64("duration_seconds", snapshot.DurationSeconds))...)
	return snapshot, nil
}
