package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"
)

var errNoChoices = errors.New("oracle: empty choices in chat completion response")

// Client implements ports.Oracle against the OpenAI chat-completions API,
// grounded on the teacher's single-request/single-response AI provider
// shape (internal/adapters/ai/openai.go) but using the go-openai SDK
// instead of a hand-rolled http.Client, per the pack's wider AI-adapter
// convention.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

func NewClient(apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		api:     openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
	}
}

// Generate performs one system/user round-trip and returns the raw
// response text; the caller (Adapter) is responsible for defensive
// parsing. A context deadline is always applied, independent of any
// deadline already on ctx, per spec.md §5's per-call timeout rule.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   maxOutputTokens,
		Temperature: 0.4,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
