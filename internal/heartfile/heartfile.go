// Package heartfile reads heart profiles from YAML.
package heartfile

import (
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"gopkg.in/yaml.v3"
	"io"
	"log/slog"
	"strings"
	"time"
)

var ErrInvalidProfile = errors.NewSentinel("invalid heart profile")

// Profile is the YAML representation of a heart.
//
//	id: alex
//	display_name: Alex
//	persona: playful and direct
//	dealbreakers: [rudeness to waiters]
//	questions:
//	  - text: What does a perfect Sunday look like?
//	  - text: Favourite book?
//	    required: false
type Profile struct {
	ID           string     `yaml:"id"`
	DisplayName  string     `yaml:"display_name"`
	Bio          string     `yaml:"bio"`
	Persona      string     `yaml:"persona"`
	Expectations string     `yaml:"expectations"`
	Dealbreakers []string   `yaml:"dealbreakers"`
	Questions    []question `yaml:"questions"`
}

type question struct {
	Text string `yaml:"text"`
	// Required defaults to true.
	Required *bool `yaml:"required"`
}

// Parse decodes and validates a profile. Unknown keys are rejected.
func Parse(r io.Reader, now time.Time) (models.Heart, error) {
	var p Profile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return models.Heart{}, errors.Wrap(err, "decode heart profile")
	}
	return p.Heart(now)
}

// Heart validates the profile and converts it.
func (p Profile) Heart(now time.Time) (models.Heart, error) {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return models.Heart{}, errors.Wrap(ErrInvalidProfile, "missing id")
	}
	attrs := slog.String("heart_id", id)
	if strings.TrimSpace(p.DisplayName) == "" {
		return models.Heart{}, errors.Wrap(ErrInvalidProfile, "missing display_name", attrs)
	}
	if len(p.Questions) == 0 {
		return models.Heart{}, errors.Wrap(ErrInvalidProfile, "no screening questions", attrs)
	}

	heart := models.Heart{
		ID:           id,
		DisplayName:  strings.TrimSpace(p.DisplayName),
		Bio:          strings.TrimSpace(p.Bio),
		Persona:      strings.TrimSpace(p.Persona),
		Expectations: strings.TrimSpace(p.Expectations),
		Dealbreakers: make([]string, 0, len(p.Dealbreakers)),
		Questions:    make([]models.Question, 0, len(p.Questions)),
		CreatedAt:    now.UTC(),
	}
	for _, d := range p.Dealbreakers {
		if d = strings.TrimSpace(d); d != "" {
			heart.Dealbreakers = append(heart.Dealbreakers, d)
		}
	}
	for i, q := range p.Questions {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			return models.Heart{}, errors.Wrap(ErrInvalidProfile, "empty question", attrs, slog.Int("question_index", i))
		}
		required := true
		if q.Required != nil {
			required = *q.Required
		}
		heart.Questions = append(heart.Questions, models.Question{Text: text, Required: required})
	}
	return heart, nil
}
