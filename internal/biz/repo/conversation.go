package repo

import (
	"context"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
)

// ConversationRepo is the conversation log repository interface
// Append-only; retention is enforced by the implementation, never by callers
type ConversationRepo interface {
	// Append writes one record
	Append(ctx context.Context, record *domain.MessageRecord) error

	// Recent returns up to limit most recent records, ordered oldest first
	Recent(ctx context.Context, conversationID domain.ConversationID, limit int) ([]domain.MessageRecord, error)

	// Ping checks the store is reachable
	Ping(ctx context.Context) error

	// Indexes lists the index names backing the log
	Indexes(ctx context.Context) ([]string, error)

	// Close releases the connection pool
	Close() error
}
