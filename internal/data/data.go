package data

import (
	"context"
	"fmt"

	"github.com/flatpee/flatpee-bot/internal/biz/repo"
	"github.com/flatpee/flatpee-bot/internal/conf"
	"github.com/flatpee/flatpee-bot/internal/infra/feishu"
)

// Repositories contains all repositories
type Repositories struct {
	Conversation repo.ConversationRepo
	Generation   *GenerationRepo
	Message      repo.MessageRepo
}

// NewRepositories creates all repositories
// The store is connected and pinged first; failure is returned for the caller to treat as fatal
func NewRepositories(
	ctx context.Context,
	cfg *conf.Config,
	feishuClient *feishu.Client,
	knowledge *Knowledge,
) (*Repositories, error) {
	convRepo, err := NewConversationRepo(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	generation, err := NewGenerationRepo(ctx, cfg.Provider, cfg.Prompts, knowledge)
	if err != nil {
		convRepo.Close()
		return nil, err
	}

	return &Repositories{
		Conversation: convRepo,
		Generation:   generation,
		Message:      NewFeishuRepo(feishuClient),
	}, nil
}

// NewConversationRepo opens the configured conversation store and pings it
func NewConversationRepo(ctx context.Context, cfg conf.StoreConfig) (repo.ConversationRepo, error) {
	var convRepo repo.ConversationRepo
	var err error

	switch cfg.Driver {
	case conf.StoreDriverMongo:
		convRepo, err = NewMongoConversationRepo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.Retention)
	case conf.StoreDriverSQLite:
		convRepo, err = NewSQLiteConversationRepo(cfg.SQLitePath, cfg.Retention)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := convRepo.Ping(ctx); err != nil {
		convRepo.Close()
		return nil, fmt.Errorf("failed to ping %s store: %w", cfg.Driver, err)
	}
	return convRepo, nil
}

// Close releases repository resources
func (r *Repositories) Close() error {
	if r.Conversation != nil {
		return r.Conversation.Close()
	}
	return nil
}
