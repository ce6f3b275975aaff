package heal

import (
	"context"
	"fmt"
	"os"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openaiEngine implements Engine using the OpenAI SDK. Azure-hosted
// deployments surface content-safety rejections through this path; their
// error messages carry the content_filter code that IsContentFiltered keys
// on.
type openaiEngine struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

func newOpenAIEngine(model string, maxTokens int, temperature float64) (Engine, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("heal: OPENAI_API_KEY environment variable not set")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiEngine{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

func (e *openaiEngine) Invoke(ctx context.Context, prompt string) (string, error) {
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(e.model),
		MaxTokens:   openai.Int(int64(e.maxTokens)),
		Temperature: openai.Float(e.temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat.completions.new: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: response contained no choices")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", fmt.Errorf("openai: response rejected: finish reason content_filter")
	}
	if choice.Message.Content == "" {
		return "", fmt.Errorf("openai: response contained no content")
	}
	return choice.Message.Content, nil
}
