package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flatpee/flatpee-bot/internal/conf"
	"github.com/ollama/ollama/api"
)

// ollamaBackend talks to a self-hosted Ollama server
type ollamaBackend struct {
	client *api.Client
	model  string
}

func newOllamaBackend(cfg conf.OllamaConfig, timeout time.Duration) (*ollamaBackend, error) {
	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.APIKey != "" {
		httpClient.Transport = &apiKeyTransport{apiKey: cfg.APIKey, base: http.DefaultTransport}
	}

	return &ollamaBackend{
		client: api.NewClient(base, httpClient),
		model:  cfg.Model,
	}, nil
}

func (b *ollamaBackend) chat(ctx context.Context, system string, messages []chatMessage) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    b.model,
		Messages: make([]api.Message, 0, len(messages)+1),
		Stream:   &stream,
	}
	req.Messages = append(req.Messages, api.Message{Role: "system", Content: system})
	for _, m := range messages {
		req.Messages = append(req.Messages, api.Message{Role: string(m.Role), Content: m.Content})
	}

	var out strings.Builder
	err := b.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return out.String(), nil
}

func (b *ollamaBackend) errorDetail(err error) string {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf(" (status=%d body=%q)", statusErr.StatusCode, statusErr.ErrorMessage)
	}
	return ""
}

// apiKeyTransport adds the X-API-Key header expected by authenticated Ollama proxies
type apiKeyTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-API-Key", t.apiKey)
	return t.base.RoundTrip(req)
}
