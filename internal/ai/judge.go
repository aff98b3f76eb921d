package ai

import (
	"context"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/scoring"
	"github.com/sashabaranov/go-openai"
	"log/slog"
)

const (
	MaxTokens   = 4096
	Temperature = 0.3
)

var ErrEmptyCompletion = errors.NewSentinel("completion has no choices")

// Judge scores interviews with an OpenAI compatible chat completion API.
type Judge struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewJudge creates a Judge. An empty baseURL uses the public OpenAI endpoint.
func NewJudge(apiKey string, baseURL string, model string, logger *slog.Logger) *Judge {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Judge{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger.With("source", "Judge"),
	}
}

// Judge implements [scoring.Judge].
func (j *Judge) Judge(ctx context.Context, req scoring.JudgmentRequest) (scoring.JudgmentResponse, error) {
	prompt, err := BuildScoringPrompt(req)
	if err != nil {
		return scoring.JudgmentResponse{}, errors.Wrap(err, "build scoring prompt")
	}

	completion, err := j.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:       j.model,
			MaxTokens:   MaxTokens,
			Temperature: Temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{ //nolint:exhaustruct // this is better for readability
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		return scoring.JudgmentResponse{}, errors.Wrap(err, "create chat completion",
			slog.String("model", j.model), slog.String("session_id", req.Snapshot.SessionID))
	}
	if len(completion.Choices) == 0 {
		return scoring.JudgmentResponse{}, errors.Wrap(ErrEmptyCompletion, "read completion",
			slog.String("model", j.model), slog.String("session_id", req.Snapshot.SessionID))
	}

	j.logger.LogAttrs(ctx, slog.LevelDebug, "judgment received",
		slog.String("session_id", req.Snapshot.SessionID),
		slog.String("model", completion.Model),
		slog.Int("prompt_tokens", completion.Usage.PromptTokens),
		slog.Int("completion_tokens", completion.Usage.CompletionTokens),
		slog.String("finish_reason", string(completion.Choices[0].FinishReason)))

	model := completion.Model
	if model == "" {
		model = j.model
	}
	return scoring.JudgmentResponse{
		Text:         completion.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}, nil
}
