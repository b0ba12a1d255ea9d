package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/vectra/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxAttempts bounds how often a malformed JSON answer is re-requested.
const maxAttempts = 3

var errNoChoices = errors.New("no choices returned from model")

func newChatModel(config *ai.Config) (llms.Model, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ChatModel),
	)
}

func chatMessages(system, user string) []llms.MessageContent {
	return []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(user)},
		},
	}
}

// generateText asks for a free-form answer and returns it without code fences.
func generateText(ctx context.Context, client llms.Model, system, user string) (string, error) {
	response, err := client.GenerateContent(ctx, chatMessages(system, user), llms.WithTemperature(0.0))
	if err != nil {
		return "", err
	}
	if len(response.Choices) < 1 {
		return "", fmt.Errorf("%w: %w", ai.ErrMalformedOutput, errNoChoices)
	}
	return stripCodeFences(response.Choices[0].Content), nil
}

// generateJSON asks for a JSON answer and decodes it into out, retrying
// when the model produces something that does not parse.
func generateJSON(ctx context.Context, client llms.Model, logger *slog.Logger, system, user string, out any) error {
	content := chatMessages(system, user)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, err := client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return err
		}

		if len(response.Choices) < 1 {
			lastErr = errNoChoices
			logger.Debug("no choices returned from model", "attempt", attempt+1)
			continue
		}

		responseText := repairJSON(stripCodeFences(response.Choices[0].Content))
		if err := json.Unmarshal([]byte(responseText), out); err != nil {
			lastErr = err
			logger.Warn("error parsing model response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}
		return nil
	}

	logger.Error("failed to parse model response after retries", "err", lastErr)
	return fmt.Errorf("%w: %w", ai.ErrMalformedOutput, lastErr)
}

// stripCodeFences removes markdown code fences and surrounding whitespace.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// Drop the info string, e.g. ```json or ```cypher.
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{}()") {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// truncateRunes shortens s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
