package interview_test

import (
	"github.com/myrjola/hotline/internal/emotion"
	"github.com/myrjola/hotline/internal/interview"
	"github.com/myrjola/hotline/internal/models"
	"github.com/myrjola/hotline/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"strings"
	"sync"
	"testing"
	"time"
)

var start = time.Date(2026, time.February, 14, 19, 0, 0, 0, time.UTC)

func threeQuestions() []models.Question {
	return []models.Question{
		{Text: "What does a perfect Sunday look like?", Required: true},
		{Text: "What are you looking for?", Required: true},
		{Text: "Cats or dogs?", Required: true},
	}
}

func newSession(t *testing.T, questions []models.Question, opts ...interview.Option) (*interview.Session, *testhelpers.Clock) {
	t.Helper()
	clock := testhelpers.NewClock(start)
	return interview.NewSession("session-1", questions, append([]interview.Option{interview.WithClock(clock.Now)}, opts...)...), clock
}

func TestSession_MonotonicProgression(t *testing.T) {
	t.Parallel()
	s, clock := newSession(t, threeQuestions())

	remaining := s.QuestionsRemaining()
	require.Equal(t, 3, remaining)
	for i := range 3 {
		prompt, ok := s.NextQuestion()
		require.True(t, ok)
		require.Equal(t, i, prompt.Index)

		clock.Advance(time.Minute)
		require.NoError(t, s.RecordResponse(i, "answer", "good"))
		require.Equal(t, i+1, s.CurrentQuestionIndex())
		require.Less(t, s.QuestionsRemaining(), remaining)
		remaining = s.QuestionsRemaining()
	}
	require.Zero(t, remaining)

	_, ok := s.NextQuestion()
	require.False(t, ok)
}

func TestSession_NextQuestionHasNoSideEffects(t *testing.T) {
	t.Parallel()
	s, _ := newSession(t, threeQuestions())
	first, _ := s.NextQuestion()
	second, _ := s.NextQuestion()
	require.Equal(t, first, second)
	require.Equal(t, 0, s.CurrentQuestionIndex())
}

func TestSession_RecordResponseValidation(t *testing.T) {
	t.Parallel()

	optional := []models.Question{
		{Text: "Name?", Required: true},
		{Text: "Favourite film?", Required: false},
		{Text: "Deal with it?", Required: false},
		{Text: "Why you?", Required: true},
	}

	tests := []struct {
		name      string
		questions []models.Question
		recorded  []int
		index     int
		wantErr   error
		wantIndex int
	}{
		{name: "beyond question list", questions: threeQuestions(), index: 3, wantErr: interview.ErrQuestionOutOfRange},
		{name: "negative", questions: threeQuestions(), index: -1, wantErr: interview.ErrQuestionOutOfRange},
		{name: "repeated", questions: threeQuestions(), recorded: []int{0}, index: 0, wantErr: interview.ErrOutOfOrderResponse},
		{name: "backwards", questions: threeQuestions(), recorded: []int{0, 1}, index: 0, wantErr: interview.ErrOutOfOrderResponse},
		{name: "skip required", questions: threeQuestions(), index: 2, wantErr: interview.ErrOutOfOrderResponse},
		{name: "skip optional", questions: optional, recorded: []int{0}, index: 3, wantIndex: 4},
		{name: "skip into optional", questions: optional, recorded: []int{0}, index: 2, wantIndex: 3},
		{name: "skip optional then required", questions: optional, index: 3, wantErr: interview.ErrOutOfOrderResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, _ := newSession(t, tt.questions)
			for _, i := range tt.recorded {
				require.NoError(t, s.RecordResponse(i, "ok", "fine"))
			}
			before := s.CurrentQuestionIndex()

			err := s.RecordResponse(tt.index, "ok", "fine")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Equal(t, before, s.CurrentQuestionIndex())
				require.Len(t, s.Export().Turns, len(tt.recorded))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantIndex, s.CurrentQuestionIndex())
		})
	}
}

func TestSession_TranscriptAppendOnly(t *testing.T) {
	t.Parallel()
	s, clock := newSession(t, threeQuestions())

	speakers := []models.Speaker{models.SpeakerAvatar, models.SpeakerSuitor, models.SpeakerAvatar, models.SpeakerSuitor}
	for i, speaker := range speakers {
		clock.Advance(time.Second)
		entry, err := s.AddTranscriptEntry(speaker, "hello there")
		require.NoError(t, err)
		require.Equal(t, i, entry.SequenceIndex)
		require.Len(t, s.Export().Transcript, i+1)
	}

	for i, entry := range s.Export().Transcript {
		require.Equal(t, i, entry.SequenceIndex)
		require.Equal(t, speakers[i], entry.Speaker)
	}

	_, err := s.AddTranscriptEntry(models.Speaker("narrator"), "meanwhile")
	require.ErrorIs(t, err, interview.ErrUnknownSpeaker)
	require.Len(t, s.Export().Transcript, len(speakers))
}

func TestSession_RambleResetOnResponse(t *testing.T) {
	t.Parallel()
	s, clock := newSession(t, threeQuestions(), interview.WithRambleThresholds(45*time.Second, 10))

	_, err := s.AddTranscriptEntry(models.SpeakerAvatar, strings.Repeat("word ", 50))
	require.NoError(t, err)
	require.False(t, s.ShouldInterrupt(), "avatar speech is not tracked")

	_, err = s.AddTranscriptEntry(models.SpeakerSuitor, strings.Repeat("word ", 11))
	require.NoError(t, err)
	require.True(t, s.ShouldInterrupt())

	require.NoError(t, s.RecordResponse(0, "long answer", "rambling"))
	require.False(t, s.ShouldInterrupt())

	_, err = s.AddTranscriptEntry(models.SpeakerSuitor, "short")
	require.NoError(t, err)
	clock.Advance(46 * time.Second)
	require.True(t, s.ShouldInterrupt())
	require.NoError(t, s.RecordResponse(1, "slow answer", "ok"))
	require.False(t, s.ShouldInterrupt())
}

func TestSession_RambleResetOnFire(t *testing.T) {
	t.Parallel()
	s, clock := newSession(t, threeQuestions())

	_, err := s.AddTranscriptEntry(models.SpeakerSuitor, strings.Repeat("word ", 201))
	require.NoError(t, err)
	require.True(t, s.ShouldInterrupt())

	_, err = s.AddTranscriptEntry(models.SpeakerSuitor, "sorry")
	require.NoError(t, err)
	require.False(t, s.ShouldInterrupt(), "the next utterance starts a new turn")

	clock.Advance(46 * time.Second)
	require.True(t, s.ShouldInterrupt())
	require.False(t, s.ShouldInterrupt())

	_, err = s.AddTranscriptEntry(models.SpeakerSuitor, strings.Repeat("word ", 201))
	require.NoError(t, err)
	require.NoError(t, s.RecordResponse(0, "long answer", "rambling"))
	require.False(t, s.ShouldInterrupt(), "recording a response resets an unfired turn")
}

func TestSession_EndExactlyOnce(t *testing.T) {
	t.Parallel()
	s, clock := newSession(t, threeQuestions())

	_, ended := s.EndReason()
	require.False(t, ended)

	clock.Advance(90 * time.Second)
	require.NoError(t, s.End(models.EndReasonSuitorDisconnected))
	clock.Advance(time.Minute)
	require.ErrorIs(t, s.End(models.EndReasonAllQuestionsComplete), interview.ErrAlreadyEnded)

	reason, ended := s.EndReason()
	require.True(t, ended)
	require.Equal(t, models.EndReasonSuitorDisconnected, reason)

	snapshot := s.Export()
	require.NotNil(t, snapshot.EndedAt)
	require.Equal(t, start.Add(90*time.Second), *snapshot.EndedAt)
	require.InDelta(t, 90, snapshot.DurationSeconds, 1e-9)

	require.ErrorIs(t, s.RecordResponse(0, "late", "late"), interview.ErrSessionEnded)
	_, err := s.AddTranscriptEntry(models.SpeakerSuitor, "hello?")
	require.ErrorIs(t, err, interview.ErrSessionEnded)
}

func TestSession_EndRejectsInvalidReason(t *testing.T) {
	t.Parallel()
	s, _ := newSession(t, threeQuestions())
	require.ErrorIs(t, s.End(models.EndReasonUnknown), interview.ErrInvalidEndReason)
	require.ErrorIs(t, s.End(models.EndReason("bored")), interview.ErrInvalidEndReason)
	_, ended := s.EndReason()
	require.False(t, ended)
}

func TestSession_IsOvertime(t *testing.T) {
	t.Parallel()
	s, clock := newSession(t, threeQuestions())
	clock.Advance(10 * time.Minute)
	require.False(t, s.IsOvertime(10*time.Minute))
	clock.Advance(time.Second)
	require.True(t, s.IsOvertime(10*time.Minute))
}

func TestSession_ExportWithoutEnd(t *testing.T) {
	t.Parallel()
	s, clock := newSession(t, threeQuestions())
	clock.Advance(30 * time.Second)

	snapshot := s.Export()
	require.Equal(t, models.EndReasonUnknown, snapshot.EndReason)
	require.Nil(t, snapshot.EndedAt)
	require.InDelta(t, 30, snapshot.DurationSeconds, 1e-9)
	require.NotNil(t, snapshot.Turns)
	require.NotNil(t, snapshot.Transcript)
}

func TestSession_CompleteInterviewExport(t *testing.T) {
	t.Parallel()
	s, clock := newSession(t, threeQuestions())

	for i := range 3 {
		prompt, ok := s.NextQuestion()
		require.True(t, ok)
		_, err := s.AddTranscriptEntry(models.SpeakerAvatar, prompt.Question.Text)
		require.NoError(t, err)
		clock.Advance(20 * time.Second)
		_, err = s.AddTranscriptEntry(models.SpeakerSuitor, "an answer")
		require.NoError(t, err)
		require.NoError(t, s.RecordResponse(i, "answered", "good"))
	}
	require.NoError(t, s.End(models.EndReasonAllQuestionsComplete))

	snapshot := s.Export()
	require.Equal(t, "session-1", snapshot.SessionID)
	require.Equal(t, 3, snapshot.QuestionsAsked)
	require.Equal(t, 3, snapshot.TotalQuestions)
	require.Equal(t, models.EndReasonAllQuestionsComplete, snapshot.EndReason)
	require.Len(t, snapshot.Turns, 3)
	require.Len(t, snapshot.Transcript, 6)
	require.Equal(t, "Cats or dogs?", snapshot.Turns[2].QuestionText)
	require.InDelta(t, 60, snapshot.DurationSeconds, 1e-9)
}

func TestSession_AttachesEmotions(t *testing.T) {
	t.Parallel()
	clock := testhelpers.NewClock(start)
	emotions := emotion.NewAggregator(clock.Now)
	s := interview.NewSession("session-1", threeQuestions(),
		interview.WithClock(clock.Now), interview.WithEmotions(emotions))

	entry, err := s.AddTranscriptEntry(models.SpeakerSuitor, "hi")
	require.NoError(t, err)
	require.Nil(t, entry.Emotion)

	emotions.Update([]models.EmotionPrediction{{Name: "Joy", Score: 0.9}})

	entry, err = s.AddTranscriptEntry(models.SpeakerSuitor, "I love hiking")
	require.NoError(t, err)
	require.NotNil(t, entry.Emotion)
	require.InDelta(t, 0.9, entry.Emotion.Signals.Enthusiasm, 1e-9)

	entry, err = s.AddTranscriptEntry(models.SpeakerAvatar, "Nice!")
	require.NoError(t, err)
	require.Nil(t, entry.Emotion)

	require.NoError(t, s.RecordResponse(0, "hiking", "good"))
	turn := s.Export().Turns[0]
	require.NotNil(t, turn.Emotion)
	dominant, ok := turn.Emotion.Dominant()
	require.True(t, ok)
	require.Equal(t, "Joy", dominant.Name)
}

func TestSession_ConcurrentEventSources(t *testing.T) {
	t.Parallel()
	questions := make([]models.Question, 50)
	for i := range questions {
		questions[i] = models.Question{Text: "q", Required: true}
	}
	s := interview.NewSession("session-1", questions)

	var wg sync.WaitGroup
	for _, speaker := range []models.Speaker{models.SpeakerAvatar, models.SpeakerSuitor} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, _ = s.AddTranscriptEntry(speaker, "words words")
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range questions {
			_ = s.RecordResponse(i, "ok", "ok")
		}
	}()
	wg.Wait()

	snapshot := s.Export()
	require.Len(t, snapshot.Transcript, 200)
	for i, entry := range snapshot.Transcript {
		require.Equal(t, i, entry.SequenceIndex)
	}
	require.Len(t, snapshot.Turns, 50)
	require.Equal(t, 50, snapshot.QuestionsAsked)
}
