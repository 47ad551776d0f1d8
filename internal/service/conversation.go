package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
	"github.com/flatpee/flatpee-bot/internal/biz/repo"
	"github.com/flatpee/flatpee-bot/internal/biz/usecase"
	"github.com/flatpee/flatpee-bot/internal/conf"
)

// ConversationService runs the per-message pipeline:
// record inbound, decide, generate, send, record outbound
type ConversationService struct {
	historyUC   *usecase.HistoryUsecase
	decisionUC  *usecase.DecisionUsecase
	generator   repo.GenerationProvider
	messageRepo repo.MessageRepo

	botID         string
	replyInGroups bool
	responses     conf.ResponseTexts
}

// NewConversationService creates a new conversation service
func NewConversationService(
	historyUC *usecase.HistoryUsecase,
	decisionUC *usecase.DecisionUsecase,
	generator repo.GenerationProvider,
	messageRepo repo.MessageRepo,
	responses conf.ResponseTexts,
) *ConversationService {
	return &ConversationService{
		historyUC:   historyUC,
		decisionUC:  decisionUC,
		generator:   generator,
		messageRepo: messageRepo,
		responses:   responses,
	}
}

// SetBotID pins the bot's own transport id for mention checks.
// When unset, each event's recipient id is used.
func (s *ConversationService) SetBotID(botID string) {
	s.botID = botID
}

// SetReplyInGroups makes group replies quote the original message
func (s *ConversationService) SetReplyInGroups(enabled bool) {
	s.replyInGroups = enabled
}

// HandleResult is the outcome of one HandleMessage call
type HandleResult struct {
	Decision domain.Decision
	Reply    string // text sent (or attempted); empty when no reply
	Sent     bool
	Err      error // contained failure, already logged
}

// HandleMessage processes one inbound event. Failures are logged and
// reported in the result; nothing propagates to the transport.
func (s *ConversationService) HandleMessage(ctx context.Context, event *domain.InboundEvent) *HandleResult {
	result := &HandleResult{}
	if event == nil || event.From == "" {
		result.Err = domain.ErrEmptyConversation
		return result
	}

	// 1. Record inbound
	var inboundID string
	inbound, err := s.historyUC.Record(ctx, event.From, event.Body, domain.DirectionInbound)
	switch {
	case errors.Is(err, domain.ErrEmptyText):
		fmt.Printf("[Orchestrator] Inbound message %s has no text, not recorded\n", event.MessageID)
	case err != nil:
		fmt.Printf("[Orchestrator] Failed to record inbound message: %v\n", err)
	default:
		inboundID = inbound.ID
	}

	// 2. Decide
	botID := s.botID
	if botID == "" {
		botID = event.To
	}
	result.Decision = s.decisionUC.Decide(ctx, event.DecisionInput(botID))
	if !result.Decision.Reply {
		fmt.Printf("[Orchestrator] Not replying to %s (%s)\n", event.From, result.Decision.Reason)
		return result
	}
	fmt.Printf("[Orchestrator] Replying to %s (%s)\n", event.From, result.Decision.Reason)

	// 3-6. Generate, send, record outbound
	s.reply(ctx, event, inboundID, result)
	return result
}

// reply generates and sends the answer. inboundID is the stored record of
// the message being answered, kept out of the generation context.
func (s *ConversationService) reply(ctx context.Context, event *domain.InboundEvent, inboundID string, result *HandleResult) {
	defer func() {
		if r := recover(); r != nil {
			s.sendApology(ctx, event, fmt.Errorf("panic while replying: %v", r), result)
		}
	}()

	var gen domain.Generation
	if event.HasMedia {
		fmt.Printf("[Orchestrator] Media message detected, sending preset response\n")
		gen = domain.Generation{Text: s.responses.MediaNotSupported}
	} else {
		history, err := s.historyUC.FetchPriorContext(ctx, event.From, inboundID)
		if err != nil {
			fmt.Printf("[Orchestrator] Failed to fetch context, continuing without history: %v\n", err)
		}
		gen = s.generator.Generate(ctx, event.Body, history)
	}
	result.Reply = gen.Text

	if err := s.send(ctx, event, gen.Text); err != nil {
		s.sendApology(ctx, event, fmt.Errorf("failed to send reply: %w", err), result)
		return
	}
	result.Sent = true
	fmt.Printf("[Orchestrator] Sent %d chars to %s\n", len(gen.Text), event.From)

	if gen.Failed {
		fmt.Printf("[Orchestrator] Generation failed, outbound apology not recorded\n")
		return
	}
	if err := s.historyUC.Append(ctx, event.From, gen.Text, domain.DirectionOutbound); err != nil {
		fmt.Printf("[Orchestrator] Failed to record outbound message: %v\n", err)
	}
}

func (s *ConversationService) send(ctx context.Context, event *domain.InboundEvent, text string) error {
	if s.replyInGroups && event.From.IsGroup() && event.MessageID != "" {
		return s.messageRepo.ReplyText(ctx, event.MessageID, text)
	}
	return s.messageRepo.SendText(ctx, event.From, text)
}

// sendApology makes a single attempt to tell the user something went wrong
func (s *ConversationService) sendApology(ctx context.Context, event *domain.InboundEvent, cause error, result *HandleResult) {
	fmt.Printf("[Orchestrator] Error processing message from %s: %v\n", event.From, cause)
	result.Err = cause
	result.Sent = false
	result.Reply = s.responses.ErrorMessage

	if err := s.messageRepo.SendText(ctx, event.From, s.responses.ErrorMessage); err != nil {
		fmt.Printf("[Orchestrator] Failed to send error message: %v\n", err)
		return
	}
	fmt.Printf("[Orchestrator] Error message sent to %s\n", event.From)
}
