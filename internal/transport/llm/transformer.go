// Package llm provides a query transformer backed by an OpenAI-compatible
// chat model via langchaingo.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const systemPrompt = `You rewrite user questions into retrieval-optimized search queries.
Expand abbreviations, add likely synonyms, and drop filler words.
Respond with the rewritten query only, no explanations and no quotes.`

// Transformer rewrites raw user queries into retrieval-friendly form.
type Transformer struct {
	client llms.Model
	logger *zap.Logger
}

// Config holds the transformer model settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Logger  *zap.Logger
}

// NewTransformer creates a transformer over an OpenAI-compatible chat API.
func NewTransformer(cfg *Config) (*Transformer, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	} else {
		// Local OpenAI-compatible services often run without authentication.
		opts = append(opts, openai.WithToken("none"))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create transformer client: %w", err)
	}

	return &Transformer{client: client, logger: cfg.Logger}, nil
}

// Transform rewrites a query. An empty model response is an error so the
// caller can fall back to the original query.
func (t *Transformer) Transform(ctx context.Context, query string) (string, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(query)},
		},
	}

	response, err := t.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		return "", fmt.Errorf("generate transformed query: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("transformer returned no choices")
	}

	rewritten := cleanResponse(response.Choices[0].Content)
	if rewritten == "" {
		return "", fmt.Errorf("transformer returned empty rewrite")
	}

	t.logger.Debug("Query transformed",
		zap.String("original", query), zap.String("rewritten", rewritten))
	return rewritten, nil
}

// cleanResponse strips code fences and surrounding quotes models sometimes add.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
