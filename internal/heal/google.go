package heal

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	googleoption "google.golang.org/api/option"
)

// googleEngine implements Engine using the Google Generative AI SDK.
// The API key is stored at construction time; a new genai.Client is created
// per Invoke call so that the caller's context governs the connection and
// the client is always closed after use.
type googleEngine struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
}

func newGoogleEngine(model string, maxTokens int, temperature float64) (Engine, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("heal: GOOGLE_API_KEY environment variable not set")
	}
	return &googleEngine{
		apiKey:      apiKey,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

func (e *googleEngine) Invoke(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(e.apiKey))
	if err != nil {
		return "", fmt.Errorf("google: genai client: %w", err)
	}
	defer client.Close()

	m := client.GenerativeModel(e.model)
	maxOut := int32(e.maxTokens)
	m.MaxOutputTokens = &maxOut
	temp32 := float32(e.temperature)
	m.Temperature = &temp32

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("google: generate content: %w", err)
	}

	var parts []string
	for _, cand := range resp.Candidates {
		if cand.FinishReason == genai.FinishReasonSafety {
			// Normalized so the retry loop recognizes it as a safety rejection.
			return "", fmt.Errorf("google: response rejected by content filter")
		}
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				parts = append(parts, string(t))
			}
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("google: response contained no text content")
	}
	return strings.Join(parts, ""), nil
}
