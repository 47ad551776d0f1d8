package data

import (
	"context"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
	"github.com/flatpee/flatpee-bot/internal/biz/repo"
	"github.com/flatpee/flatpee-bot/internal/infra/feishu"
)

// feishuRepo implements the outbound transport on Feishu
type feishuRepo struct {
	client *feishu.Client
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client *feishu.Client) repo.MessageRepo {
	return &feishuRepo{client: client}
}

// SendText sends a text message to the conversation's chat
func (r *feishuRepo) SendText(ctx context.Context, conversationID domain.ConversationID, text string) error {
	return r.client.SendText(ctx, conversationID.ChatID(), text)
}

// ReplyText replies to a message, quoting it
func (r *feishuRepo) ReplyText(ctx context.Context, msgID, text string) error {
	return r.client.ReplyText(ctx, msgID, text)
}
