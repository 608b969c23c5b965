// ABOUTME: genai-backed generator with lazy client initialization
// ABOUTME: Wraps the Gemini GenerateContent call behind the generator interface

package assist

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// geminiGenerator implements generator using the Google Gemini API.
// The underlying client is created on first use so construction never
// needs a context or network access.
type geminiGenerator struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client
}

func newGeminiGenerator(apiKey, model string) *geminiGenerator {
	return &geminiGenerator{
		apiKey: apiKey,
		model:  model,
	}
}

func (g *geminiGenerator) init(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: g.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	g.client = client
	return client, nil
}

func (g *geminiGenerator) generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	client, err := g.init(ctx)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		{
			Parts: []*genai.Part{{Text: prompt}},
			Role:  "user",
		},
	}

	var config *genai.GenerateContentConfig
	if jsonOutput {
		config = &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		}
	}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	return result.Text(), nil
}
