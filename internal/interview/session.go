// Package interview holds the live state of a screening interview between the avatar and a suitor.
package interview

import (
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"log/slog"
	"slices"
	"sync"
	"time"
)

var (
	ErrAlreadyEnded       = errors.NewSentinel("session already ended")
	ErrSessionEnded       = errors.NewSentinel("session has ended")
	ErrQuestionOutOfRange = errors.NewSentinel("question index out of range")
	ErrOutOfOrderResponse = errors.NewSentinel("response recorded out of order")
	ErrUnknownSpeaker     = errors.NewSentinel("unknown speaker")
	ErrInvalidEndReason   = errors.NewSentinel("invalid end reason")
)

// EmotionReader provides the latest emotion snapshot of the suitor.
type EmotionReader interface {
	Latest() (models.EmotionSnapshot, bool)
}

// Prompt is the next question the avatar should ask.
type Prompt struct {
	Index    int
	Question models.Question
}

// Session is one live interview. All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id           string
	questions    []models.Question
	currentIndex int
	turns        []models.Turn
	transcript   []models.TranscriptEntry
	startedAt    time.Time
	endedAt      *time.Time
	endReason    models.EndReason
	handedOff    bool

	ramble   *RambleDetector
	emotions EmotionReader
	now      func() time.Time

	rambleTime  time.Duration
	rambleWords int
}

type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithRambleThresholds configures when the suitor should be interrupted.
func WithRambleThresholds(timeThreshold time.Duration, wordThreshold int) Option {
	return func(s *Session) {
		s.rambleTime = timeThreshold
		s.rambleWords = wordThreshold
	}
}

// WithEmotions attaches the suitor's emotion state to recorded turns and suitor utterances.
func WithEmotions(emotions EmotionReader) Option {
	return func(s *Session) {
		s.emotions = emotions
	}
}

// NewSession starts an interview with the given questions. The start time is taken at construction.
func NewSession(id string, questions []models.Question, opts ...Option) *Session {
	s := &Session{ //nolint:exhaustruct // zero values are the initial state
		id:        id,
		questions: slices.Clone(questions),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ramble = NewRambleDetector(s.rambleTime, s.rambleWords, s.now)
	s.startedAt = s.now().UTC()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// NextQuestion returns the question at the current index, or false when every question has been covered.
func (s *Session) NextQuestion() (Prompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentIndex >= len(s.questions) {
		return Prompt{}, false
	}
	return Prompt{Index: s.currentIndex, Question: s.questions[s.currentIndex]}, true
}

// RecordResponse records the suitor's answer to the question at index and advances past it.
//
// The index must not go backwards. Skipping ahead is only allowed over questions that are not required.
func (s *Session) RecordResponse(index int, summary, quality string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs := []slog.Attr{
		slog.String("session_id", s.id),
		slog.Int("question_index", index),
		slog.Int("current_index", s.currentIndex),
	}
	if s.endReason != "" {
		return errors.Wrap(ErrSessionEnded, "record response", attrs...)
	}
	if index < 0 || index >= len(s.questions) {
		return errors.Wrap(ErrQuestionOutOfRange, "record response", attrs...)
	}
	if index < s.currentIndex {
		return errors.Wrap(ErrOutOfOrderResponse, "record response", attrs...)
	}
	for i := s.currentIndex; i < index; i++ {
		if s.questions[i].Required {
			return errors.Wrap(ErrOutOfOrderResponse, "skip required question",
				append(attrs, slog.Int("skipped_index", i))...)
		}
	}

	s.turns = append(s.turns, models.Turn{
		QuestionIndex:   index,
		QuestionText:    s.questions[index].Text,
		ResponseSummary: summary,
		ResponseQuality: quality,
		Timestamp:       s.now().UTC(),
		Emotion:         s.latestEmotion(),
	})
	s.currentIndex = index + 1
	s.ramble.Reset()
	return nil
}

// AddTranscriptEntry appends an utterance. Suitor speech also feeds the ramble detector.
func (s *Session) AddTranscriptEntry(speaker models.Speaker, text string) (models.TranscriptEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endReason != "" {
		return models.TranscriptEntry{}, errors.Wrap(ErrSessionEnded, "add transcript entry",
			slog.String("session_id", s.id))
	}
	if !speaker.Valid() {
		return models.TranscriptEntry{}, errors.Wrap(ErrUnknownSpeaker, "add transcript entry",
			slog.String("session_id", s.id), slog.String("speaker", string(speaker)))
	}

	entry := models.TranscriptEntry{
		Speaker:       speaker,
		Text:          text,
		Timestamp:     s.now().UTC(),
		SequenceIndex: len(s.transcript),
		Emotion:       nil,
	}
	if speaker == models.SpeakerSuitor {
		entry.Emotion = s.latestEmotion()
		s.ramble.OnUserSpeech(text)
	}
	s.transcript = append(s.transcript, entry)
	return entry, nil
}

// ShouldInterrupt reports whether the suitor's current turn has run too long. A turn fires once: the detector is
// reset when it fires so that the next utterance starts a new turn.
func (s *Session) ShouldInterrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ramble.ShouldInterrupt() {
		return false
	}
	s.ramble.Reset()
	return true
}

// QuestionsRemaining returns how many questions have not been covered yet.
func (s *Session) QuestionsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(0, len(s.questions)-s.currentIndex)
}

// CurrentQuestionIndex returns the index of the next question to ask.
func (s *Session) CurrentQuestionIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// IsOvertime reports whether the interview has run longer than maxDuration.
func (s *Session) IsOvertime(maxDuration time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.startedAt) > maxDuration
}

// End stops the interview. A session can only be ended once.
func (s *Session) End(reason models.EndReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endReason != "" {
		return errors.Wrap(ErrAlreadyEnded, "end session",
			slog.String("session_id", s.id),
			slog.String("end_reason", string(s.endReason)),
			slog.String("requested_reason", string(reason)))
	}
	if !reason.Valid() {
		return errors.Wrap(ErrInvalidEndReason, "end session",
			slog.String("session_id", s.id), slog.String("requested_reason", string(reason)))
	}
	now := s.now().UTC()
	s.endedAt = &now
	s.endReason = reason
	return nil
}

// EndReason returns why the session ended, or false while it is still running.
func (s *Session) EndReason() (models.EndReason, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endReason, s.endReason != ""
}

// Export captures the full session for persistence and scoring.
func (s *Session) Export() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	reason := s.endReason
	if reason == "" {
		reason = models.EndReasonUnknown
	}
	end := s.now().UTC()
	var endedAt *time.Time
	if s.endedAt != nil {
		end = *s.endedAt
		e := *s.endedAt
		endedAt = &e
	}

	return models.SessionSnapshot{
		SessionID:       s.id,
		Turns:           append(make([]models.Turn, 0, len(s.turns)), s.turns...),
		Transcript:      append(make([]models.TranscriptEntry, 0, len(s.transcript)), s.transcript...),
		StartedAt:       s.startedAt,
		EndedAt:         endedAt,
		EndReason:       reason,
		DurationSeconds: end.Sub(s.startedAt).Seconds(),
		QuestionsAsked:  s.currentIndex,
		TotalQuestions:  len(s.questions),
	}
}

// claimHandoff returns true for the first caller only.
func (s *Session) claimHandoff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handedOff {
		return false
	}
	s.handedOff = true
	return true
}

func (s *Session) releaseHandoff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handedOff = false
}

func (s *Session) latestEmotion() *models.EmotionSnapshot {
	if s.emotions == nil {
		return nil
	}
	snapshot, ok := s.emotions.Latest()
	if !ok {
		return nil
	}
	return &snapshot
}
