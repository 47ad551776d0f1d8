package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
)

type mockConversationRepo struct {
	records   []domain.MessageRecord
	appendErr error
	recentErr error
	mu        sync.Mutex
}

func (m *mockConversationRepo) Append(ctx context.Context, record *domain.MessageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.records = append(m.records, *record)
	return nil
}

func (m *mockConversationRepo) Recent(ctx context.Context, conversationID domain.ConversationID, limit int) ([]domain.MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recentErr != nil {
		return nil, m.recentErr
	}

	var matched []domain.MessageRecord
	for _, r := range m.records {
		if r.ConversationID == conversationID {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.Before(matched[j].OccurredAt)
	})
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (m *mockConversationRepo) Ping(ctx context.Context) error {
	return nil
}

func (m *mockConversationRepo) Indexes(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (m *mockConversationRepo) Close() error {
	return nil
}

// newTestHistory returns a usecase whose clock advances one second per call
func newTestHistory(convRepo *mockConversationRepo) *HistoryUsecase {
	uc := NewHistoryUsecase(convRepo, 0)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var tick int
	uc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return uc
}

func TestFetchContext_EmptyConversation(t *testing.T) {
	uc := newTestHistory(&mockConversationRepo{})

	ctx, err := uc.FetchContext(context.Background(), "nobody@c.us", 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ctx.Count != 0 || len(ctx.Messages) != 0 {
		t.Errorf("Expected empty context, got count=%d len=%d", ctx.Count, len(ctx.Messages))
	}
}

func TestFetchContext_ReturnsLastWindowOldestFirst(t *testing.T) {
	uc := newTestHistory(&mockConversationRepo{})
	conv := domain.ConversationID("628123@c.us")

	for i := 1; i <= 15; i++ {
		if err := uc.Append(context.Background(), conv, fmt.Sprintf("msg %d", i), domain.DirectionInbound); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	ctx, err := uc.FetchContext(context.Background(), conv, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ctx.Count != 10 || len(ctx.Messages) != 10 {
		t.Fatalf("Expected 10 messages, got count=%d len=%d", ctx.Count, len(ctx.Messages))
	}
	for i, m := range ctx.Messages {
		want := fmt.Sprintf("msg %d", i+6)
		if m.Text != want {
			t.Errorf("Message %d: expected %q, got %q", i, want, m.Text)
		}
	}
}

func TestFetchContext_DefaultWindow(t *testing.T) {
	uc := newTestHistory(&mockConversationRepo{})
	conv := domain.ConversationID("628123@c.us")

	for i := 0; i < 12; i++ {
		_ = uc.Append(context.Background(), conv, "x", domain.DirectionInbound)
	}

	ctx, _ := uc.FetchContext(context.Background(), conv, 0)
	if ctx.Count != DefaultHistoryWindow {
		t.Errorf("Expected default window %d, got %d", DefaultHistoryWindow, ctx.Count)
	}
}

func TestAppendThenFetch_RoundTrip(t *testing.T) {
	uc := newTestHistory(&mockConversationRepo{})
	conv := domain.ConversationID("628123@c.us")

	_ = uc.Append(context.Background(), conv, "earlier", domain.DirectionOutbound)
	if err := uc.Append(context.Background(), conv, "  hello  ", domain.DirectionInbound); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	ctx, err := uc.FetchContext(context.Background(), conv, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	last := ctx.Last()
	if last == nil {
		t.Fatal("Expected a most recent record")
	}
	if last.Text != "hello" {
		t.Errorf("Expected trimmed text 'hello', got %q", last.Text)
	}
	if last.Direction != domain.DirectionInbound {
		t.Errorf("Expected inbound direction, got %s", last.Direction)
	}
	if last.ID == "" {
		t.Error("Expected record id to be assigned")
	}
}

func TestAppend_RejectsEmpty(t *testing.T) {
	convRepo := &mockConversationRepo{}
	uc := newTestHistory(convRepo)

	if err := uc.Append(context.Background(), "628@c.us", "   ", domain.DirectionInbound); !errors.Is(err, domain.ErrEmptyText) {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
	if err := uc.Append(context.Background(), "", "hi", domain.DirectionInbound); !errors.Is(err, domain.ErrEmptyConversation) {
		t.Errorf("Expected ErrEmptyConversation, got %v", err)
	}
	if err := uc.Append(context.Background(), "628@c.us", "hi", domain.Direction("x")); !errors.Is(err, domain.ErrInvalidDirection) {
		t.Errorf("Expected ErrInvalidDirection, got %v", err)
	}
	if len(convRepo.records) != 0 {
		t.Errorf("Expected no writes, got %d", len(convRepo.records))
	}
}

func TestAppend_WrapsRepoError(t *testing.T) {
	repoErr := errors.New("connection lost")
	uc := newTestHistory(&mockConversationRepo{appendErr: repoErr})

	err := uc.Append(context.Background(), "628@c.us", "hi", domain.DirectionInbound)
	if !errors.Is(err, repoErr) {
		t.Errorf("Expected wrapped repo error, got %v", err)
	}
}

func TestFetchContext_ReadFailureReturnsEmpty(t *testing.T) {
	uc := newTestHistory(&mockConversationRepo{recentErr: errors.New("timeout")})

	ctx, err := uc.FetchContext(context.Background(), "628@c.us", 10)
	if err == nil {
		t.Error("Expected error to be reported")
	}
	if ctx == nil {
		t.Fatal("Expected non-nil context on failure")
	}
	if ctx.Count != 0 || len(ctx.Messages) != 0 {
		t.Errorf("Expected empty context, got count=%d", ctx.Count)
	}
}

func TestFetchPriorContext_ExcludesAnsweredMessage(t *testing.T) {
	uc := newTestHistory(&mockConversationRepo{})
	conv := domain.ConversationID("628123@c.us")

	for i := 1; i <= 12; i++ {
		_ = uc.Append(context.Background(), conv, fmt.Sprintf("msg %d", i), domain.DirectionInbound)
	}
	current, err := uc.Record(context.Background(), conv, "Apa kabar?", domain.DirectionInbound)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	ctx, err := uc.FetchPriorContext(context.Background(), conv, current.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ctx.Count != DefaultHistoryWindow {
		t.Fatalf("Expected %d prior records, got %d", DefaultHistoryWindow, ctx.Count)
	}
	if ctx.Messages[0].Text != "msg 3" {
		t.Errorf("Expected window to start at msg 3, got %q", ctx.Messages[0].Text)
	}
	if last := ctx.Last(); last.Text != "msg 12" {
		t.Errorf("Expected msg 12 as newest prior record, got %q", last.Text)
	}
}

func TestFetchPriorContext_FirstMessageIsEmpty(t *testing.T) {
	uc := newTestHistory(&mockConversationRepo{})
	conv := domain.ConversationID("628123@c.us")

	current, err := uc.Record(context.Background(), conv, "halo", domain.DirectionInbound)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	ctx, err := uc.FetchPriorContext(context.Background(), conv, current.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ctx.Count != 0 || ctx.Messages == nil {
		t.Errorf("Expected empty non-nil context, got %+v", ctx)
	}
}

func TestFetchPriorContext_NoExcludeIDUsesWindow(t *testing.T) {
	uc := newTestHistory(&mockConversationRepo{})
	conv := domain.ConversationID("628123@c.us")

	for i := 0; i < 12; i++ {
		_ = uc.Append(context.Background(), conv, "x", domain.DirectionInbound)
	}

	ctx, _ := uc.FetchPriorContext(context.Background(), conv, "")
	if ctx.Count != DefaultHistoryWindow {
		t.Errorf("Expected %d records, got %d", DefaultHistoryWindow, ctx.Count)
	}
}
