package llmservice

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"document-qa/internal/config"
)

// Responses calls the OpenAI Responses API directly.
type Responses struct {
	client      *openai.Client
	model       string
	temperature float64
}

func NewResponses(cfg *config.LLMConfig) *Responses {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey())}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &Responses{client: &client, model: cfg.Model, temperature: cfg.SamplingTemperature()}
}

func (g *Responses) Name() string { return "responses" }

func (g *Responses) Generate(ctx context.Context, prompt string) (string, error) {
	params := responses.ResponseNewParams{
		Model:       g.model,
		Temperature: openai.Float(g.temperature),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	}
	resp, err := g.client.Responses.New(ctx, params)
	if err != nil {
		return "", err
	}
	out := resp.OutputText()
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
