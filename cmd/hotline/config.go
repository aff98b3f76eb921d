package main

import (
	"github.com/myrjola/hotline/internal/envstruct"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/scoring"
	"time"
)

type config struct {
	SQLiteURL  string `env:"HOTLINE_SQLITE_URL" envDefault:"./hotline.sqlite"`
	RedisAddr  string `env:"HOTLINE_REDIS_ADDR" envDefault:""`
	RedisQueue string `env:"HOTLINE_REDIS_QUEUE" envDefault:"hotline:scoring"`
	Addr       string `env:"HOTLINE_ADDR" envDefault:"localhost:4000"`
	// PprofPort disables the pprof server when empty.
	PprofPort string `env:"HOTLINE_PPROF_PORT" envDefault:":6060"`

	PendingTimeoutSeconds     int           `env:"HOTLINE_PENDING_TIMEOUT_SECONDS" envDefault:"300"`
	MaxSessionDurationSeconds int           `env:"HOTLINE_MAX_SESSION_DURATION_SECONDS" envDefault:"1800"`
	MaxInterviewSeconds       int           `env:"HOTLINE_MAX_INTERVIEW_SECONDS" envDefault:"600"`
	ReaperInterval            time.Duration `env:"HOTLINE_REAPER_INTERVAL" envDefault:"5m"`

	RambleTimeThresholdSeconds int `env:"HOTLINE_RAMBLE_TIME_THRESHOLD_SECONDS" envDefault:"45"`
	RambleWordThreshold        int `env:"HOTLINE_RAMBLE_WORD_THRESHOLD" envDefault:"200"`

	VerdictThreshold            float64       `env:"HOTLINE_VERDICT_THRESHOLD" envDefault:"65"`
	WeightEffort                float64       `env:"HOTLINE_WEIGHT_EFFORT" envDefault:"0.30"`
	WeightCreativity            float64       `env:"HOTLINE_WEIGHT_CREATIVITY" envDefault:"0.20"`
	WeightIntentClarity         float64       `env:"HOTLINE_WEIGHT_INTENT_CLARITY" envDefault:"0.25"`
	WeightEmotionalIntelligence float64       `env:"HOTLINE_WEIGHT_EMOTIONAL_INTELLIGENCE" envDefault:"0.25"`
	ScoringTimeout              time.Duration `env:"HOTLINE_SCORING_TIMEOUT" envDefault:"2m"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:""`
	JudgeModel    string `env:"HOTLINE_JUDGE_MODEL" envDefault:"gpt-4o"`

	Trace bool `env:"HOTLINE_TRACE" envDefault:"false"`
}

var errMissingAPIKey = errors.NewSentinel("OPENAI_API_KEY is required for scoring")

func loadConfig(lookupEnv func(string) (string, bool)) (config, error) {
	var cfg config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return config{}, errors.Wrap(err, "populate config")
	}
	if err := cfg.weights().Validate(); err != nil {
		return config{}, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}

func (c config) weights() scoring.Weights {
	return scoring.Weights{
		Effort:                c.WeightEffort,
		Creativity:            c.WeightCreativity,
		IntentClarity:         c.WeightIntentClarity,
		EmotionalIntelligence: c.WeightEmotionalIntelligence,
	}
}

func (c config) pendingTimeout() time.Duration {
	return time.Duration(c.PendingTimeoutSeconds) * time.Second
}

func (c config) maxSessionDuration() time.Duration {
	return time.Duration(c.MaxSessionDurationSeconds) * time.Second
}

func (c config) maxInterviewLength() time.Duration {
	return time.Duration(c.MaxInterviewSeconds) * time.Second
}

func (c config) rambleTime() time.Duration {
	return time.Duration(c.RambleTimeThresholdSeconds) * time.Second
}
