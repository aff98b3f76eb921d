// Package replay drives a scripted interview through a live session for local end-to-end runs.
package replay

import (
	"context"
	"github.com/myrjola/hotline/internal/emotion"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/interview"
	"github.com/myrjola/hotline/internal/logging"
	"github.com/myrjola/hotline/internal/models"
	"gopkg.in/yaml.v3"
	"io"
	"log/slog"
	"time"
)

var ErrInvalidScript = errors.NewSentinel("invalid replay script")

// Script is a recorded interview.
//
// Each step either adds an utterance or records the answer to a question. Offsets are relative to the start of the
// interview and must not decrease.
type Script struct {
	HeartID   string           `yaml:"heart_id"`
	EndReason models.EndReason `yaml:"end_reason"`
	Steps     []Step           `yaml:"steps"`
}

type Step struct {
	At       time.Duration              `yaml:"at"`
	Speaker  models.Speaker             `yaml:"speaker"`
	Text     string                     `yaml:"text"`
	Emotions []models.EmotionPrediction `yaml:"emotions"`
	Record   *Record                    `yaml:"record"`
}

type Record struct {
	Index   int    `yaml:"index"`
	Summary string `yaml:"summary"`
	Quality string `yaml:"quality"`
}

// Parse decodes a script. Unknown keys are rejected.
func Parse(r io.Reader) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Script{}, errors.Wrap(err, "decode replay script")
	}
	if s.HeartID == "" {
		return Script{}, errors.Wrap(ErrInvalidScript, "missing heart_id")
	}
	if s.EndReason == "" {
		s.EndReason = models.EndReasonAllQuestionsComplete
	}
	if !s.EndReason.Valid() {
		return Script{}, errors.Wrap(ErrInvalidScript, "invalid end_reason",
			slog.String("end_reason", string(s.EndReason)))
	}
	var last time.Duration
	for i, step := range s.Steps {
		if step.At < last {
			return Script{}, errors.Wrap(ErrInvalidScript, "step offset decreases", slog.Int("step", i))
		}
		last = step.At
		if (step.Record == nil) == (step.Text == "") {
			return Script{}, errors.Wrap(ErrInvalidScript, "step needs either text or record", slog.Int("step", i))
		}
	}
	return s, nil
}

type SessionStore interface {
	interview.ConversationStore
	Create(ctx context.Context, heartID string, createdAt time.Time) (*models.SessionRow, error)
	Start(ctx context.Context, id string, startedAt time.Time) error
}

type HeartStore interface {
	Get(ctx context.Context, id string) (*models.Heart, error)
}

type Config struct {
	RambleTime         time.Duration
	RambleWords        int
	MaxInterviewLength time.Duration
	// Start defaults to time.Now.
	Start time.Time
}

// Result summarizes a replayed interview.
type Result struct {
	Snapshot   models.SessionSnapshot
	Interrupts int
	Overtime   bool
	Emotion    string
}

type Runner struct {
	sessions SessionStore
	hearts   HeartStore
	handoff  *interview.Handoff
	cfg      Config
	logger   *slog.Logger
}

func NewRunner(sessions SessionStore, hearts HeartStore, handoff *interview.Handoff, cfg Config,
	logger *slog.Logger) *Runner {
	return &Runner{
		sessions: sessions,
		hearts:   hearts,
		handoff:  handoff,
		cfg:      cfg,
		logger:   logger.With("source", "ReplayRunner"),
	}
}

// scriptClock reports the start time plus the offset of the current step.
type scriptClock struct {
	start  time.Time
	offset time.Duration
}

func (c *scriptClock) now() time.Time {
	return c.start.Add(c.offset)
}

// Run replays the script, hands the finished interview off for scoring, and returns the exported snapshot.
//
// The interview ends early with max_duration_reached when a step falls past the maximum interview length.
func (r *Runner) Run(ctx context.Context, script Script) (Result, error) {
	heart, err := r.hearts.Get(ctx, script.HeartID)
	if err != nil {
		return Result{}, errors.Wrap(err, "read heart", slog.String("heart_id", script.HeartID))
	}
	start := r.cfg.Start
	if start.IsZero() {
		start = time.Now()
	}
	clock := &scriptClock{start: start.UTC(), offset: 0}

	row, err := r.sessions.Create(ctx, heart.ID, clock.now())
	if err != nil {
		return Result{}, errors.Wrap(err, "create session")
	}
	ctx = logging.WithSession(ctx, row.ID)
	if err = r.sessions.Start(ctx, row.ID, clock.now()); err != nil {
		return Result{}, errors.Wrap(err, "start session")
	}

	emotions := emotion.NewAggregator(clock.now)
	session := interview.NewSession(row.ID, heart.Questions,
		interview.WithClock(clock.now),
		interview.WithRambleThresholds(r.cfg.RambleTime, r.cfg.RambleWords),
		interview.WithEmotions(emotions),
	)

	var result Result
	reason := script.EndReason
	for i, step := range script.Steps {
		clock.offset = step.At
		if r.cfg.MaxInterviewLength > 0 && session.IsOvertime(r.cfg.MaxInterviewLength) {
			reason = models.EndReasonMaxDurationReached
			result.Overtime = true
			break
		}
		emotions.Update(step.Emotions)

		if step.Record != nil {
			if err = session.RecordResponse(step.Record.Index, step.Record.Summary, step.Record.Quality); err != nil {
				return Result{}, errors.Wrap(err, "record response", slog.Int("step", i))
			}
			continue
		}
		if _, err = session.AddTranscriptEntry(step.Speaker, step.Text); err != nil {
			return Result{}, errors.Wrap(err, "add transcript entry", slog.Int("step", i))
		}
		if step.Speaker == models.SpeakerSuitor && session.ShouldInterrupt() {
			result.Interrupts++
			r.logger.LogAttrs(ctx, slog.LevelInfo, "suitor would be interrupted", slog.Int("step", i))
		}
	}

	if latest, ok := emotions.Latest(); ok {
		result.Emotion = emotion.Describe(latest)
	} else {
		result.Emotion = emotion.Describe(models.EmotionSnapshot{}) //nolint:exhaustruct // empty snapshot
	}
	if result.Snapshot, err = r.handoff.Finish(ctx, session, reason); err != nil {
		return result, errors.Wrap(err, "finish session")
	}
	return result, nil
}
