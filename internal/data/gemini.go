package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flatpee/flatpee-bot/internal/conf"
	"google.golang.org/genai"
)

// geminiBackend talks to Google Gemini through the genai SDK
type geminiBackend struct {
	client *genai.Client
	model  string
}

func newGeminiBackend(ctx context.Context, cfg conf.GeminiConfig, timeout time.Duration) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &geminiBackend{client: client, model: cfg.Model}, nil
}

func (b *geminiBackend) chat(ctx context.Context, system string, messages []chatMessage) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, geminiContents(messages), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

func (b *geminiBackend) errorDetail(err error) string {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf(" (status=%d body=%q)", apiErr.Code, apiErr.Message)
	}
	return ""
}

// geminiContents maps assistant turns to the model role
func geminiContents(messages []chatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == roleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}
