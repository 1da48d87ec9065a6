package agent

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI calls the chat completions API. BaseURL points it at any
// compatible server.
type OpenAI struct {
	Models Models
	client openai.Client
}

// OpenAIConfig holds the connection settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Models  Models
}

// NewOpenAI validates cfg and builds the client.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing")
	}
	if cfg.Models.Default == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{Models: cfg.Models, client: openai.NewClient(opts...)}, nil
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Models.For(req.Role)),
		Messages: msgs,
	}
	if req.ThreadID != "" {
		params.User = openai.String(req.ThreadID)
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", req.Role, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai %s: empty choices", req.Role)
	}
	return nonEmpty(resp.Choices[0].Message.Content)
}
