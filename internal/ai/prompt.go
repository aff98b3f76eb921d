package ai

import (
	"bytes"
	_ "embed"
	"fmt"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"github.com/myrjola/hotline/internal/scoring"
	"strings"
	"text/template"
)

//go:embed prompts/scoring.md.tmpl
var scoringTemplateText string

var scoringTemplate = template.Must(template.New("scoring").Parse(scoringTemplateText))

type promptTurn struct {
	Number   int
	Question string
	Quality  string
	Summary  string
	Emotion  string
}

type promptWeights struct {
	Effort                string
	Creativity            string
	IntentClarity         string
	EmotionalIntelligence string
}

type promptData struct {
	Heart      models.Heart
	Snapshot   models.SessionSnapshot
	Transcript []string
	Turns      []promptTurn
	EmotionArc string
	Weights    promptWeights
}

// BuildScoringPrompt renders the judgment request as a single user prompt.
func BuildScoringPrompt(req scoring.JudgmentRequest) (string, error) {
	data := promptData{
		Heart:      req.Heart,
		Snapshot:   req.Snapshot,
		Transcript: transcriptLines(req.Snapshot.Transcript),
		Turns:      turnAnalysis(req.Snapshot.Turns),
		EmotionArc: req.EmotionArc,
		Weights: promptWeights{
			Effort:                percent(req.Weights.Effort),
			Creativity:            percent(req.Weights.Creativity),
			IntentClarity:         percent(req.Weights.IntentClarity),
			EmotionalIntelligence: percent(req.Weights.EmotionalIntelligence),
		},
	}
	if data.Heart.DisplayName == "" {
		data.Heart.DisplayName = "the Heart"
	}

	var buf bytes.Buffer
	if err := scoringTemplate.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "execute scoring template")
	}
	return buf.String(), nil
}

func transcriptLines(entries []models.TranscriptEntry) []string {
	var lines []string
	for _, entry := range entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		label := "Suitor"
		if entry.Speaker == models.SpeakerAvatar {
			label = "Avatar"
		}
		lines = append(lines, label+": "+text)
	}
	return lines
}

func turnAnalysis(turns []models.Turn) []promptTurn {
	analysis := make([]promptTurn, 0, len(turns))
	for _, turn := range turns {
		pt := promptTurn{
			Number:   turn.QuestionIndex + 1,
			Question: orDefault(turn.QuestionText, "Unknown question"),
			Quality:  orDefault(turn.ResponseQuality, "unknown"),
			Summary:  orDefault(turn.ResponseSummary, "No summary"),
			Emotion:  "",
		}
		if turn.Emotion != nil {
			if dominant, ok := turn.Emotion.Dominant(); ok {
				pt.Emotion = fmt.Sprintf("%s (%s)", dominant.Name, percent(dominant.Score)+"%")
			}
		}
		analysis = append(analysis, pt)
	}
	return analysis
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f", v*100) //nolint:mnd // percentage
}
