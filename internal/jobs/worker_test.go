package jobs_test

import (
	"context"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/interview"
	"github.com/myrjola/hotline/internal/jobs"
	"github.com/myrjola/hotline/internal/models"
	"github.com/myrjola/hotline/internal/queue"
	"github.com/myrjola/hotline/internal/repositories"
	"github.com/myrjola/hotline/internal/scoring"
	"github.com/myrjola/hotline/internal/sqlite"
	"github.com/myrjola/hotline/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"sync"
	"testing"
	"time"
)

const judgment = `{"category_scores":{"effort":80,"creativity":70,"intent_clarity":90,"emotional_intelligence":60},
"emotion_modifier":2,"feedback":{"summary":"Warm and specific."}}`

type stubJudge struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubJudge) Judge(context.Context, scoring.JudgmentRequest) (scoring.JudgmentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return scoring.JudgmentResponse{}, s.err
	}
	return scoring.JudgmentResponse{Text: judgment, Model: "stub-judge", InputTokens: 100, OutputTokens: 20}, nil
}

func (s *stubJudge) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type fixture struct {
	sessions *repositories.SessionRepository
	scores   *repositories.ScoreRepository
	hearts   *repositories.HeartRepository
	engine   *scoring.Engine
	queue    *queue.MemoryQueue
	judge    *stubJudge
	worker   *jobs.ScoringWorker
	handoff  *interview.Handoff
	heart    models.Heart
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := testhelpers.NewLogger(io.Discard)
	dbs, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbs.Close() })

	hearts := repositories.NewHeartRepository(dbs, logger)
	heart := models.Heart{ //nolint:exhaustruct // test
		ID:          "heart-1",
		DisplayName: "Alex",
		Questions: []models.Question{
			{Text: "What does a perfect Sunday look like?", Required: true},
			{Text: "What are you looking for?", Required: true},
		},
		CreatedAt: time.Date(2026, time.February, 14, 19, 0, 0, 0, time.UTC),
	}
	require.NoError(t, hearts.Upsert(ctx, heart))

	f := &fixture{
		sessions: repositories.NewSessionRepository(dbs, logger),
		scores:   repositories.NewScoreRepository(dbs, logger),
		hearts:   hearts,
		engine:   nil,
		queue:    queue.NewMemoryQueue(8),
		judge:    &stubJudge{}, //nolint:exhaustruct // test
		worker:   nil,
		handoff:  nil,
		heart:    heart,
	}
	engine, err := scoring.NewEngine(f.judge, scoring.Config{ //nolint:exhaustruct // test
		Weights:          scoring.DefaultWeights,
		VerdictThreshold: 65,
	}, logger)
	require.NoError(t, err)
	f.engine = engine
	f.worker = jobs.NewScoringWorker(f.queue, f.sessions, hearts, f.scores, engine, time.Second, logger)
	f.handoff = interview.NewHandoff(f.sessions, f.queue, logger)
	return f
}

// interview runs a full interview and hands it off for scoring.
func (f *fixture) interview(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	row, err := f.sessions.Create(ctx, f.heart.ID, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.sessions.Start(ctx, row.ID, time.Now()))

	session := interview.NewSession(row.ID, f.heart.Questions)
	for {
		prompt, ok := session.NextQuestion()
		if !ok {
			break
		}
		_, err = session.AddTranscriptEntry(models.SpeakerAvatar, prompt.Question.Text)
		require.NoError(t, err)
		_, err = session.AddTranscriptEntry(models.SpeakerSuitor, "An honest answer.")
		require.NoError(t, err)
		require.NoError(t, session.RecordResponse(prompt.Index, "Honest answer", "good"))
	}
	_, err = f.handoff.Finish(ctx, session, models.EndReasonAllQuestionsComplete)
	require.NoError(t, err)
	return row.ID
}

func (f *fixture) dequeue(t *testing.T) queue.Job {
	t.Helper()
	job, err := f.queue.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	return job
}

func (f *fixture) status(t *testing.T, id string) models.SessionStatus {
	t.Helper()
	row, err := f.sessions.Get(context.Background(), id)
	require.NoError(t, err)
	return row.Status
}

func TestScoringWorker_Process(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	id := f.interview(t)
	require.Equal(t, models.SessionStatusCompleted, f.status(t, id))

	job := f.dequeue(t)
	require.Equal(t, id, job.SessionID)
	require.NoError(t, f.worker.Process(ctx, job))
	require.Equal(t, models.SessionStatusScored, f.status(t, id))

	score, err := f.scores.GetBySessionID(ctx, id)
	require.NoError(t, err)
	require.InDelta(t, 75.5, score.WeightedTotal, 1e-9)
	require.InDelta(t, 77.5, score.FinalScore, 1e-9)
	require.Equal(t, models.VerdictDate, score.Verdict)
	require.Equal(t, "Warm and specific.", score.Feedback.Summary)
	require.Equal(t, "stub-judge", score.JudgeModel)

	require.NoError(t, f.worker.Process(ctx, job), "duplicate jobs are skipped")
	require.Equal(t, 1, f.judge.calls)
}

func TestScoringWorker_Process_failureAndRetry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	id := f.interview(t)
	job := f.dequeue(t)

	f.judge.setErr(errors.NewSentinel("judge unavailable"))
	err := f.worker.Process(ctx, job)
	require.ErrorIs(t, err, scoring.ErrJudgmentFailed)
	require.Equal(t, models.SessionStatusFailed, f.status(t, id))
	_, err = f.scores.GetBySessionID(ctx, id)
	require.ErrorIs(t, err, repositories.ErrNotFound, "failed scoring leaves no score behind")

	f.judge.setErr(nil)
	job.Attempt++
	require.NoError(t, f.worker.Process(ctx, job))
	require.Equal(t, models.SessionStatusScored, f.status(t, id))
}

func TestScoringWorker_Process_skipsExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	row, err := f.sessions.Create(ctx, f.heart.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = f.sessions.ExpireStale(ctx, time.Now(), 5*time.Minute, 30*time.Minute)
	require.NoError(t, err)

	require.NoError(t, f.worker.Process(ctx, queue.Job{SessionID: row.ID, EnqueuedAt: time.Now(), Attempt: 1}))
	require.Equal(t, models.SessionStatusExpired, f.status(t, row.ID))
	require.Zero(t, f.judge.calls)
}

// notifyingScores signals every saved score.
type notifyingScores struct {
	jobs.ScoreStore
	saved chan string
}

func (n notifyingScores) SaveScored(ctx context.Context, score *models.Score) error {
	err := n.ScoreStore.SaveScored(ctx, score)
	if err == nil {
		n.saved <- score.SessionID
	}
	return err
}

func TestScoringWorker_Run(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.interview(t)
	scores := notifyingScores{ScoreStore: f.scores, saved: make(chan string, 1)}
	worker := jobs.NewScoringWorker(f.queue, f.sessions, f.hearts, scores, f.engine, time.Second,
		testhelpers.NewLogger(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	select {
	case saved := <-scores.saved:
		require.Equal(t, id, saved)
	case <-time.After(10 * time.Second):
		t.Fatal("session was not scored")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}
	require.Equal(t, models.SessionStatusScored, f.status(t, id))
}
