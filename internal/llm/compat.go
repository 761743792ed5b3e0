package llm

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
)

// CompatCompleter talks to any server exposing the OpenAI chat completions
// protocol (Azure, vLLM, Ollama, OpenRouter, ...).
type CompatCompleter struct {
	client *goopenai.Client
	model  string
}

func NewCompatCompleter(apiKey, baseURL, model string) (*CompatCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai-compatible: %w: api key required", ErrProviderUnavailable)
	}
	if model == "" {
		return nil, fmt.Errorf("openai-compatible: model required")
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &CompatCompleter{client: goopenai.NewClientWithConfig(cfg), model: model}, nil
}

func (c *CompatCompleter) Name() string { return MethodCompatible }

func (c *CompatCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultChatTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
		Temperature: defaultChatTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
