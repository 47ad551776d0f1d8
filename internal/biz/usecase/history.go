package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
	"github.com/flatpee/flatpee-bot/internal/biz/repo"
	"github.com/oklog/ulid/v2"
)

// DefaultHistoryWindow is the number of records supplied as context
const DefaultHistoryWindow = 10

// HistoryUsecase handles the conversation log
type HistoryUsecase struct {
	convRepo repo.ConversationRepo
	window   int
	now      func() time.Time
}

// NewHistoryUsecase creates a new history usecase
func NewHistoryUsecase(convRepo repo.ConversationRepo, window int) *HistoryUsecase {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &HistoryUsecase{
		convRepo: convRepo,
		window:   window,
		now:      time.Now,
	}
}

// Append records a message with the current time.
// Errors are returned for the caller to log; they must not abort the pipeline.
func (uc *HistoryUsecase) Append(ctx context.Context, conversationID domain.ConversationID, text string, direction domain.Direction) error {
	_, err := uc.Record(ctx, conversationID, text, direction)
	return err
}

// Record is Append returning the stored record
func (uc *HistoryUsecase) Record(ctx context.Context, conversationID domain.ConversationID, text string, direction domain.Direction) (*domain.MessageRecord, error) {
	if conversationID == "" {
		return nil, domain.ErrEmptyConversation
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyText
	}
	if !direction.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDirection, direction)
	}

	record := &domain.MessageRecord{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		Text:           text,
		Direction:      direction,
		OccurredAt:     uc.now(),
	}
	if err := uc.convRepo.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to append %s message: %w", direction, err)
	}
	return record, nil
}

// FetchContext returns the last windowSize records, oldest first.
// windowSize <= 0 uses the configured window. On a read failure the
// returned context is empty (never nil) alongside the error.
func (uc *HistoryUsecase) FetchContext(ctx context.Context, conversationID domain.ConversationID, windowSize int) (*domain.ConversationContext, error) {
	if windowSize <= 0 {
		windowSize = uc.window
	}
	if conversationID == "" {
		return domain.EmptyContext(), domain.ErrEmptyConversation
	}

	records, err := uc.convRepo.Recent(ctx, conversationID, windowSize)
	if err != nil {
		return domain.EmptyContext(), fmt.Errorf("failed to fetch context: %w", err)
	}
	if len(records) > windowSize {
		records = records[len(records)-windowSize:]
	}
	return domain.NewConversationContext(records), nil
}

// FetchPriorContext returns the configured window of records preceding the
// message being answered. The record with excludeID (the just-stored inbound
// message) is left out, so the prompt is not sent twice. An empty excludeID
// behaves like FetchContext.
func (uc *HistoryUsecase) FetchPriorContext(ctx context.Context, conversationID domain.ConversationID, excludeID string) (*domain.ConversationContext, error) {
	if excludeID == "" {
		return uc.FetchContext(ctx, conversationID, uc.window)
	}
	if conversationID == "" {
		return domain.EmptyContext(), domain.ErrEmptyConversation
	}

	records, err := uc.convRepo.Recent(ctx, conversationID, uc.window+1)
	if err != nil {
		return domain.EmptyContext(), fmt.Errorf("failed to fetch context: %w", err)
	}

	prior := make([]domain.MessageRecord, 0, len(records))
	for _, rec := range records {
		if rec.ID != excludeID {
			prior = append(prior, rec)
		}
	}
	if len(prior) > uc.window {
		prior = prior[len(prior)-uc.window:]
	}
	return domain.NewConversationContext(prior), nil
}
