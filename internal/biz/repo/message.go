package repo

import (
	"context"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
)

// MessageRepo is the outbound transport interface
type MessageRepo interface {
	// SendText sends a text message to a conversation
	SendText(ctx context.Context, conversationID domain.ConversationID, text string) error

	// ReplyText quotes the original message and replies to it
	ReplyText(ctx context.Context, msgID, text string) error
}
