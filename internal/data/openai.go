package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flatpee/flatpee-bot/internal/conf"
	openai "github.com/sashabaranov/go-openai"
)

// openAIBackend talks to OpenAI or any OpenAI-compatible endpoint
type openAIBackend struct {
	client *openai.Client
	model  string
}

func newOpenAIBackend(cfg conf.OpenAIConfig, timeout time.Duration) *openAIBackend {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = &http.Client{Timeout: timeout}

	return &openAIBackend{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}
}

func (b *openAIBackend) chat(ctx context.Context, system string, messages []chatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    b.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)+1),
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == roleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func (b *openAIBackend) errorDetail(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf(" (status=%d type=%s body=%q)", apiErr.HTTPStatusCode, apiErr.Type, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf(" (status=%d)", reqErr.HTTPStatusCode)
	}
	return ""
}
