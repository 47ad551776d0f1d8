package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
	"github.com/flatpee/flatpee-bot/internal/biz/repo"
)

const logTruncateLength = 100

type chatRole string

const (
	roleUser      chatRole = "user"
	roleAssistant chatRole = "assistant"
)

// chatMessage is one turn sent to a backend
type chatMessage struct {
	Role    chatRole
	Content string
}

// chatBackend is a single raw chat call against one backend family
type chatBackend interface {
	// chat sends the system instruction and turns, returning the reply text
	chat(ctx context.Context, system string, messages []chatMessage) (string, error)

	// errorDetail extracts status code and backend error body, if any
	errorDetail(err error) string
}

// GenerationRepo wraps a backend with the system instruction, logging and
// apology containment shared by all providers
type GenerationRepo struct {
	name    string
	label   string
	backend chatBackend
	system  string
	apology string
}

func newGenerationRepo(name, label string, backend chatBackend, system, apology string) *GenerationRepo {
	return &GenerationRepo{
		name:    name,
		label:   label,
		backend: backend,
		system:  system,
		apology: apology,
	}
}

var (
	_ repo.GenerationProvider = (*GenerationRepo)(nil)
	_ repo.Classifier         = (*GenerationRepo)(nil)
)

// Name returns the provider name
func (r *GenerationRepo) Name() string {
	return r.name
}

// Generate produces a reply; any backend failure becomes the apology
func (r *GenerationRepo) Generate(ctx context.Context, prompt string, history *domain.ConversationContext) domain.Generation {
	start := time.Now()
	fmt.Printf("[%s] Input: %s\n", r.label, truncate(prompt, logTruncateLength))

	messages := historyMessages(history)
	messages = append(messages, chatMessage{Role: roleUser, Content: prompt})

	text, err := r.backend.chat(ctx, r.system, messages)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("empty response")
	}
	if err != nil {
		fmt.Printf("[%s] Generation failed after %v: %v%s\n", r.label, time.Since(start), err, r.backend.errorDetail(err))
		return domain.Generation{Text: r.apology, Failed: true}
	}

	fmt.Printf("[%s] Response generated in %v (history=%d): %s\n",
		r.label, time.Since(start), len(messages)-1, truncate(text, logTruncateLength))
	return domain.Generation{Text: text}
}

// Complete is a raw single-turn call without persona or history
// Errors are propagated
func (r *GenerationRepo) Complete(ctx context.Context, instruction, text string) (string, error) {
	answer, err := r.backend.chat(ctx, instruction, []chatMessage{{Role: roleUser, Content: text}})
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w%s", r.name, err, r.backend.errorDetail(err))
	}
	return answer, nil
}

// historyMessages maps inbound to user and outbound to assistant, oldest first
func historyMessages(history *domain.ConversationContext) []chatMessage {
	if history.IsEmpty() {
		return nil
	}
	messages := make([]chatMessage, 0, len(history.Messages)+1)
	for _, m := range history.Messages {
		role := roleUser
		if m.Direction == domain.DirectionOutbound {
			role = roleAssistant
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Text})
	}
	return messages
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
