package emotion

import (
	"encoding/json"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"log/slog"
)

type prosodyMessage struct {
	Prosody struct {
		Predictions []struct {
			Emotions []models.EmotionPrediction `json:"emotions"`
		} `json:"predictions"`
	} `json:"prosody"`
}

// ParseProsody extracts the emotions of the first prosody prediction from a streaming provider message.
//
// A well-formed message without predictions yields no emotions and no error.
func ParseProsody(payload []byte) ([]models.EmotionPrediction, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var msg prosodyMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, errors.Wrap(err, "unmarshal prosody message", slog.Int("bytes", len(payload)))
	}
	if len(msg.Prosody.Predictions) == 0 {
		return nil, nil
	}
	return msg.Prosody.Predictions[0].Emotions, nil
}
