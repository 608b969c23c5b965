// ABOUTME: Gemini-backed drafting assistance for refinement and reply suggestions
// ABOUTME: Degrades silently so the chat keeps working when the model is unavailable

package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// maxSuggestions caps how many reply suggestions are surfaced.
const maxSuggestions = 3

// Tone selects the rewrite style for Refine.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneConcise      Tone = "concise"
	ToneFriendly     Tone = "friendly"
)

// ParseTone validates a tone string from a request.
func ParseTone(s string) (Tone, error) {
	switch Tone(s) {
	case ToneProfessional, ToneConcise, ToneFriendly:
		return Tone(s), nil
	default:
		return "", fmt.Errorf("unknown tone %q", s)
	}
}

// generator abstracts the text generation call so tests can stub the model.
type generator interface {
	generate(ctx context.Context, prompt string, jsonOutput bool) (string, error)
}

// Gateway provides drafting assistance on top of a generative model.
// Every operation is best-effort: failures fall back to the caller's
// input rather than surfacing an error in the chat.
type Gateway struct {
	gen    generator
	logger *slog.Logger
}

// New creates an assist gateway backed by the Gemini API. An empty API
// key yields a disabled gateway whose operations are no-ops.
func New(apiKey, model string) *Gateway {
	var gen generator
	if apiKey != "" {
		gen = newGeminiGenerator(apiKey, model)
	}
	return &Gateway{
		gen:    gen,
		logger: slog.Default().With("component", "assist"),
	}
}

// Enabled reports whether drafting assistance is available.
func (g *Gateway) Enabled() bool {
	return g.gen != nil
}

// Refine rewrites the draft in the requested tone. On any failure the
// original text is returned unchanged.
func (g *Gateway) Refine(ctx context.Context, text string, tone Tone) string {
	if g.gen == nil || strings.TrimSpace(text) == "" {
		return text
	}

	prompt := fmt.Sprintf(
		"Rewrite the following text to be %s suitable for a corporate chat environment. Do not add quotes or explanations, just the text.\n\nText: %q",
		tone, text)

	out, err := g.gen.generate(ctx, prompt, false)
	if err != nil {
		g.logger.Warn("refine failed, keeping original", "error", err)
		return text
	}

	refined := strings.TrimSpace(out)
	if refined == "" {
		return text
	}
	return refined
}

// SuggestReplies proposes short responses for the user based on recent
// history lines ("sender: text"). Failures yield an empty slice.
func (g *Gateway) SuggestReplies(ctx context.Context, history []string) []string {
	if g.gen == nil || len(history) == 0 {
		return nil
	}

	prompt := fmt.Sprintf(
		"Given the following chat history, suggest 3 short, professional responses for the user.\n\n%s\n\nFormat: JSON array of strings.",
		strings.Join(history, "\n"))

	out, err := g.gen.generate(ctx, prompt, true)
	if err != nil {
		g.logger.Warn("suggestion request failed", "error", err)
		return nil
	}
	if out == "" {
		return nil
	}

	var suggestions []string
	if err := json.Unmarshal([]byte(out), &suggestions); err != nil {
		g.logger.Warn("suggestion response was not a JSON string array", "error", err)
		return nil
	}

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}
