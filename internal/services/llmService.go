package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const defaultLLMModel = "gemini-2.5-flash"

// TextGenerator produces a completion for a single prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type googleGenerator struct {
	llm llms.Model
}

// NewTextGenerator builds a Google AI generator from API_KEY (and optional LLM_MODEL).
// It returns ErrUnavailable when no key is configured.
func NewTextGenerator(ctx context.Context) (TextGenerator, error) {
	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API_KEY", ErrUnavailable)
	}
	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = defaultLLMModel
	}

	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google AI LLM: %w", err)
	}
	log.Info().Str("model", model).Msg("Google AI text generator initialized")
	return &googleGenerator{llm: llm}, nil
}

func (g *googleGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate from LLM: %w", err)
	}
	return out, nil
}

// stripCodeFence removes a surrounding ```json (or bare ```) fence from an LLM answer.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
