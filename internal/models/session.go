package models

import (
	"database/sql"
	"github.com/myrjola/hotline/internal/errors"
	"log/slog"
	"time"
)

var ErrInvalidTransition = errors.NewSentinel("invalid session status transition")

// SessionStatus is the persisted lifecycle state of an interview session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusScoring    SessionStatus = "scoring"
	SessionStatusScored     SessionStatus = "scored"
	SessionStatusFailed     SessionStatus = "failed"
	SessionStatusCancelled  SessionStatus = "cancelled"
	SessionStatusExpired    SessionStatus = "expired"
)

// SessionStatuses lists every status in lifecycle order.
var SessionStatuses = []SessionStatus{
	SessionStatusPending,
	SessionStatusInProgress,
	SessionStatusCompleted,
	SessionStatusScoring,
	SessionStatusScored,
	SessionStatusFailed,
	SessionStatusCancelled,
	SessionStatusExpired,
}

// CanTransitionTo reports whether a session in status s may move to next.
//
// A failed session may go back to scoring so that it can be retried.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionStatusPending:
		return next == SessionStatusInProgress || next == SessionStatusExpired || next == SessionStatusCancelled
	case SessionStatusInProgress:
		return next == SessionStatusCompleted || next == SessionStatusFailed ||
			next == SessionStatusCancelled || next == SessionStatusExpired
	case SessionStatusCompleted:
		return next == SessionStatusScoring || next == SessionStatusFailed
	case SessionStatusScoring:
		return next == SessionStatusScored || next == SessionStatusFailed
	case SessionStatusFailed:
		return next == SessionStatusScoring
	case SessionStatusScored, SessionStatusCancelled, SessionStatusExpired:
		return false
	}
	return false
}

// IsTerminal reports whether no further transitions leave s, apart from scoring retries of failed sessions.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusScored, SessionStatusFailed, SessionStatusCancelled, SessionStatusExpired:
		return true
	case SessionStatusPending, SessionStatusInProgress, SessionStatusCompleted, SessionStatusScoring:
		return false
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusPending, SessionStatusInProgress, SessionStatusCompleted, SessionStatusScoring,
		SessionStatusScored, SessionStatusFailed, SessionStatusCancelled, SessionStatusExpired:
		return true
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition if from cannot move to to.
func ValidateTransition(from, to SessionStatus) error {
	if !from.CanTransitionTo(to) {
		return errors.Wrap(ErrInvalidTransition, "validate transition",
			slog.String("from", string(from)), slog.String("to", string(to)))
	}
	return nil
}

// EndReason records why an interview ended.
type EndReason string

const (
	EndReasonAllQuestionsComplete EndReason = "all_questions_complete"
	EndReasonSuitorDisqualified   EndReason = "suitor_disqualified"
	EndReasonSuitorDisconnected   EndReason = "suitor_disconnected"
	EndReasonSessionClosed        EndReason = "session_closed"
	EndReasonMaxDurationReached   EndReason = "max_duration_reached"
	// EndReasonConnectionTimeout is assigned by the reaper to sessions that never started.
	EndReasonConnectionTimeout EndReason = "connection_timeout"
	// EndReasonMaxDurationExceeded is assigned by the reaper to sessions that never ended.
	EndReasonMaxDurationExceeded EndReason = "max_duration_exceeded"
	// EndReasonUnknown only appears in exports of sessions that were never ended.
	EndReasonUnknown EndReason = "unknown"
)

// Valid reports whether r is a reason a session can be ended with.
func (r EndReason) Valid() bool {
	switch r {
	case EndReasonAllQuestionsComplete, EndReasonSuitorDisqualified, EndReasonSuitorDisconnected,
		EndReasonSessionClosed, EndReasonMaxDurationReached, EndReasonConnectionTimeout,
		EndReasonMaxDurationExceeded:
		return true
	case EndReasonUnknown:
		return false
	}
	return false
}

// IsReaperAssigned reports whether r is only ever set by the stale session reaper.
func (r EndReason) IsReaperAssigned() bool {
	switch r {
	case EndReasonConnectionTimeout, EndReasonMaxDurationExceeded:
		return true
	case EndReasonAllQuestionsComplete, EndReasonSuitorDisqualified, EndReasonSuitorDisconnected,
		EndReasonSessionClosed, EndReasonMaxDurationReached, EndReasonUnknown:
		return false
	}
	return false
}

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerAvatar Speaker = "avatar"
	SpeakerSuitor Speaker = "suitor"
)

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	switch s {
	case SpeakerAvatar, SpeakerSuitor:
		return true
	}
	return false
}

// Question is one screening question asked by the avatar.
type Question struct {
	Text     string `json:"text" yaml:"text"`
	Required bool   `json:"required" yaml:"required"`
}

// Turn is one answered screening question.
type Turn struct {
	QuestionIndex   int              `json:"question_index"`
	QuestionText    string           `json:"question_text"`
	ResponseSummary string           `json:"response_summary"`
	ResponseQuality string           `json:"response_quality"`
	Timestamp       time.Time        `json:"timestamp"`
	Emotion         *EmotionSnapshot `json:"emotion,omitempty"`
}

// TranscriptEntry is one utterance by either party.
type TranscriptEntry struct {
	Speaker       Speaker          `json:"speaker"`
	Text          string           `json:"text"`
	Timestamp     time.Time        `json:"timestamp"`
	SequenceIndex int              `json:"sequence_index"`
	Emotion       *EmotionSnapshot `json:"emotion,omitempty"`
}

// SessionSnapshot is the immutable export of a finished interview that is persisted and scored.
type SessionSnapshot struct {
	SessionID       string            `json:"session_id"`
	Turns           []Turn            `json:"turns"`
	Transcript      []TranscriptEntry `json:"full_transcript"`
	StartedAt       time.Time         `json:"started_at"`
	EndedAt         *time.Time        `json:"ended_at"`
	EndReason       EndReason         `json:"end_reason"`
	DurationSeconds float64           `json:"duration_seconds"`
	QuestionsAsked  int               `json:"questions_asked"`
	TotalQuestions  int               `json:"total_questions"`
}

// SessionRow is the persisted state of a session, independent of any live interview.
type SessionRow struct {
	ID        string        `db:"id"`
	HeartID   string        `db:"heart_id"`
	Status    SessionStatus `db:"status"`
	EndReason EndReason     `db:"end_reason"`
	CreatedAt time.Time     `db:"created_at"`
	StartedAt sql.NullTime  `db:"started_at"`
	EndedAt   sql.NullTime  `db:"ended_at"`
}
