package biz

import (
	"github.com/flatpee/flatpee-bot/internal/biz/repo"
	"github.com/flatpee/flatpee-bot/internal/biz/usecase"
	"github.com/flatpee/flatpee-bot/internal/conf"
)

// Usecases contains all usecases
type Usecases struct {
	History  *usecase.HistoryUsecase
	Decision *usecase.DecisionUsecase
}

// NewUsecases wires the usecases over the given repositories
func NewUsecases(cfg *conf.Config, convRepo repo.ConversationRepo, classifier repo.Classifier) *Usecases {
	return &Usecases{
		History: usecase.NewHistoryUsecase(convRepo, cfg.Context.Window),
		Decision: usecase.NewDecisionUsecase(
			classifier,
			cfg.Prompts.GetClassifierInstruction(cfg.Bot.Names),
			cfg.Bot.Names,
		),
	}
}
