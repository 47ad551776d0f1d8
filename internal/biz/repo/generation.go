package repo

import (
	"context"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
)

// GenerationProvider turns a prompt plus optional history into reply text
type GenerationProvider interface {
	// Name returns the provider name (open-ai, gen-ai, ollama)
	Name() string

	// Generate never fails: backend errors come back as an apology
	// with Failed set
	// history may be nil
	Generate(ctx context.Context, prompt string, history *domain.ConversationContext) domain.Generation
}

// Classifier is the raw single-turn completion used for reply classification
// Unlike Generate, errors are propagated so callers can fall back
type Classifier interface {
	Complete(ctx context.Context, instruction, text string) (string, error)
}
