package generate

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperjump/kotae/internal/config"
)

const systemPrompt = "You answer questions using only the provided context. " +
	"If the context does not contain the answer, say so."

// OpenAIGenerator calls a chat-completions endpoint. Any OpenAI-compatible
// server works via the base URL (including local model servers).
type OpenAIGenerator struct {
	client *openai.Client
	cfg    config.GenerationConfig
}

// NewOpenAIGenerator creates a generator from the configuration.
func NewOpenAIGenerator(cfg config.GenerationConfig) *OpenAIGenerator {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIGenerator{client: &client, cfg: cfg}
}

// Model returns the configured model identifier.
func (g *OpenAIGenerator) Model() string { return g.cfg.Model }

// Generate sends the context and question to the model. Request-level
// overrides in cfg take precedence over the configured defaults.
func (g *OpenAIGenerator) Generate(ctx context.Context, contextText, question string, cfg map[string]interface{}) (string, error) {
	temperature := floatOverride(cfg, "temperature", g.cfg.Temperature)
	topP := floatOverride(cfg, "top_p", g.cfg.TopP)
	maxTokens := intOverride(cfg, "max_length", g.cfg.MaxTokens)

	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question)

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
		TopP:        openai.Float(topP),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// floatOverride reads a numeric override from the request config. JSON decodes
// numbers as float64; integers are accepted too.
func floatOverride(cfg map[string]interface{}, key string, fallback float64) float64 {
	if cfg == nil {
		return fallback
	}
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func intOverride(cfg map[string]interface{}, key string, fallback int) int {
	if cfg == nil {
		return fallback
	}
	switch v := cfg[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
