package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
	"github.com/flatpee/flatpee-bot/internal/biz/usecase"
	"github.com/flatpee/flatpee-bot/internal/conf"
)

// Mock implementations

type mockConversationRepo struct {
	records   []domain.MessageRecord
	appendErr error
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
	var out []domain.MessageRecord
	for _, r := range m.records {
		if r.ConversationID == conversationID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockConversationRepo) Ping(ctx context.Context) error { return nil }

func (m *mockConversationRepo) Indexes(ctx context.Context) ([]string, error) { return nil, nil }

func (m *mockConversationRepo) Close() error { return nil }

func (m *mockConversationRepo) byDirection(d domain.Direction) []domain.MessageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MessageRecord
	for _, r := range m.records {
		if r.Direction == d {
			out = append(out, r)
		}
	}
	return out
}

type mockGenerator struct {
	reply   string
	failed  bool
	panics  bool
	calls   int
	prompts []string
	history []*domain.ConversationContext
	mu      sync.Mutex
}

func (m *mockGenerator) Name() string { return "mock" }

func (m *mockGenerator) Generate(ctx context.Context, prompt string, history *domain.ConversationContext) domain.Generation {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.history = append(m.history, history)
	m.mu.Unlock()
	if m.panics {
		panic("backend exploded")
	}
	return domain.Generation{Text: m.reply, Failed: m.failed}
}

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockClassifier struct {
	answer string
	err    error
	calls  int
	mu     sync.Mutex
}

func (m *mockClassifier) Complete(ctx context.Context, instruction, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.answer, m.err
}

type sentMessage struct {
	conversationID domain.ConversationID
	replyTo        string
	text           string
}

type mockMessageRepo struct {
	sent    []sentMessage
	sendErr error
	// failFirst fails only the first send, so the apology goes through
	failFirst bool
	mu        sync.Mutex
}

func (m *mockMessageRepo) SendText(ctx context.Context, conversationID domain.ConversationID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFirst {
		m.failFirst = false
		return errors.New("socket closed")
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMessage{conversationID: conversationID, text: text})
	return nil
}

func (m *mockMessageRepo) ReplyText(ctx context.Context, msgID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{replyTo: msgID, text: text})
	return nil
}

func (m *mockMessageRepo) sentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		out = append(out, s.text)
	}
	return out
}

type testEnv struct {
	svc        *ConversationService
	store      *mockConversationRepo
	generator  *mockGenerator
	classifier *mockClassifier
	messages   *mockMessageRepo
	responses  conf.ResponseTexts
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:      &mockConversationRepo{},
		generator:  &mockGenerator{reply: "Baik, terima kasih!"},
		classifier: &mockClassifier{answer: "NO"},
		messages:   &mockMessageRepo{},
		responses:  conf.DefaultPromptsConfig().Responses,
	}
	historyUC := usecase.NewHistoryUsecase(env.store, 10)
	decisionUC := usecase.NewDecisionUsecase(env.classifier, "classify", []string{"Flatpee"})
	env.svc = NewConversationService(historyUC, decisionUC, env.generator, env.messages, env.responses)
	env.svc.SetBotID("ou_bot")
	return env
}

func directEvent(text string) *domain.InboundEvent {
	return &domain.InboundEvent{
		From:      domain.DirectConversation("628111"),
		To:        "ou_bot",
		Body:      text,
		MessageID: "om_1",
	}
}

func groupEvent(text string) *domain.InboundEvent {
	return &domain.InboundEvent{
		From:      domain.GroupConversation("oc_group"),
		To:        "ou_bot",
		Body:      text,
		MessageID: "om_2",
	}
}

func TestHandleMessage_DirectReply(t *testing.T) {
	env := newTestEnv()

	result := env.svc.HandleMessage(context.Background(), directEvent("Apa kabar?"))

	if !result.Sent || result.Err != nil {
		t.Fatalf("Expected sent reply, got %+v", result)
	}
	if result.Decision.Reason != domain.ReasonDirect {
		t.Errorf("Expected direct decision, got %s", result.Decision.Reason)
	}
	if env.classifier.calls != 0 {
		t.Errorf("Expected no classification for direct message, got %d calls", env.classifier.calls)
	}

	sent := env.messages.sentTexts()
	if len(sent) != 1 || sent[0] != "Baik, terima kasih!" {
		t.Errorf("Expected reply sent, got %v", sent)
	}
	if env.messages.sent[0].conversationID != "628111@c.us" {
		t.Errorf("Expected reply to originating conversation, got %s", env.messages.sent[0].conversationID)
	}

	if len(env.store.records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(env.store.records))
	}
	in, out := env.store.records[0], env.store.records[1]
	if in.Direction != domain.DirectionInbound || in.Text != "Apa kabar?" {
		t.Errorf("Unexpected inbound record %+v", in)
	}
	if out.Direction != domain.DirectionOutbound || out.Text != "Baik, terima kasih!" {
		t.Errorf("Unexpected outbound record %+v", out)
	}
}

func TestHandleMessage_ContextExcludesCurrentMessage(t *testing.T) {
	env := newTestEnv()

	env.svc.HandleMessage(context.Background(), directEvent("Apa kabar?"))

	if len(env.generator.history) != 1 {
		t.Fatalf("Expected 1 generation, got %d", len(env.generator.history))
	}
	if env.generator.prompts[0] != "Apa kabar?" {
		t.Errorf("Expected prompt Apa kabar?, got %q", env.generator.prompts[0])
	}
	if first := env.generator.history[0]; first.Count != 0 || first.Messages == nil {
		t.Errorf("Expected empty non-nil context on first message, got %+v", first)
	}
	// The inbound record is still stored
	if len(env.store.byDirection(domain.DirectionInbound)) != 1 {
		t.Error("Expected inbound record stored")
	}
}

func TestHandleMessage_ContextHoldsPriorTurns(t *testing.T) {
	env := newTestEnv()

	env.svc.HandleMessage(context.Background(), directEvent("pertama"))
	env.svc.HandleMessage(context.Background(), directEvent("kedua"))

	if len(env.generator.history) != 2 {
		t.Fatalf("Expected 2 generations, got %d", len(env.generator.history))
	}
	second := env.generator.history[1]
	if second.Count != 2 {
		t.Fatalf("Expected 2 records in context, got %d", second.Count)
	}
	if second.Messages[0].Text != "pertama" || second.Messages[0].Direction != domain.DirectionInbound {
		t.Errorf("Unexpected first context record %+v", second.Messages[0])
	}
	if second.Messages[1].Text != "Baik, terima kasih!" || second.Messages[1].Direction != domain.DirectionOutbound {
		t.Errorf("Unexpected second context record %+v", second.Messages[1])
	}
	for _, rec := range second.Messages {
		if rec.Text == "kedua" {
			t.Error("Expected current message kept out of the context")
		}
	}
}

func TestHandleMessage_GroupClassifiedNo(t *testing.T) {
	env := newTestEnv()

	result := env.svc.HandleMessage(context.Background(), groupEvent("lunch at 12?"))

	if result.Decision.Reply {
		t.Fatal("Expected no reply")
	}
	if result.Decision.Reason != domain.ReasonClassifiedNo {
		t.Errorf("Expected classified-no, got %s", result.Decision.Reason)
	}
	if len(env.messages.sentTexts()) != 0 {
		t.Error("Expected nothing sent")
	}
	if env.generator.callCount() != 0 {
		t.Error("Expected no generation")
	}
	if len(env.store.records) != 1 || env.store.records[0].Direction != domain.DirectionInbound {
		t.Errorf("Expected only the inbound record, got %+v", env.store.records)
	}
}

func TestHandleMessage_ClassifierErrorFallsBackToName(t *testing.T) {
	env := newTestEnv()
	env.classifier.err = errors.New("quota exceeded")

	result := env.svc.HandleMessage(context.Background(), groupEvent("hey Flatpee, what's up?"))

	if !result.Decision.Reply || result.Decision.Reason != domain.ReasonPattern {
		t.Fatalf("Expected pattern reply, got %+v", result.Decision)
	}
	if !result.Sent {
		t.Error("Expected reply sent")
	}
}

func TestHandleMessage_MentionSkipsClassifier(t *testing.T) {
	env := newTestEnv()
	event := groupEvent("@Flatpee tolong")
	event.MentionedIDs = []string{"ou_bot"}

	result := env.svc.HandleMessage(context.Background(), event)

	if result.Decision.Reason != domain.ReasonMentioned {
		t.Errorf("Expected mentioned, got %s", result.Decision.Reason)
	}
	if env.classifier.calls != 0 {
		t.Error("Expected no classification")
	}
}

func TestHandleMessage_Media(t *testing.T) {
	env := newTestEnv()
	event := directEvent("")
	event.HasMedia = true

	result := env.svc.HandleMessage(context.Background(), event)

	if !result.Sent {
		t.Fatalf("Expected media response sent, got %+v", result)
	}
	if env.generator.callCount() != 0 {
		t.Error("Expected no provider call for media")
	}
	sent := env.messages.sentTexts()
	if len(sent) != 1 || sent[0] != env.responses.MediaNotSupported {
		t.Errorf("Expected media-not-supported text, got %v", sent)
	}
	// Empty body is not recorded, the preset response is
	if in := env.store.byDirection(domain.DirectionInbound); len(in) != 0 {
		t.Errorf("Expected no inbound record for empty media message, got %d", len(in))
	}
}

func TestHandleMessage_ProviderPanic(t *testing.T) {
	env := newTestEnv()
	env.generator.panics = true

	var result *HandleResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Panic escaped HandleMessage: %v", r)
			}
		}()
		result = env.svc.HandleMessage(context.Background(), directEvent("hello"))
	}()

	if result.Err == nil {
		t.Error("Expected contained error")
	}
	sent := env.messages.sentTexts()
	if len(sent) != 1 || sent[0] != env.responses.ErrorMessage {
		t.Errorf("Expected apology, got %v", sent)
	}
	if out := env.store.byDirection(domain.DirectionOutbound); len(out) != 0 {
		t.Errorf("Expected no outbound record, got %d", len(out))
	}
}

func TestHandleMessage_SendFailure(t *testing.T) {
	env := newTestEnv()
	env.messages.failFirst = true

	result := env.svc.HandleMessage(context.Background(), directEvent("hello"))

	if result.Sent {
		t.Error("Expected Sent to be false")
	}
	if result.Err == nil {
		t.Error("Expected send error in result")
	}
	sent := env.messages.sentTexts()
	if len(sent) != 1 || sent[0] != env.responses.ErrorMessage {
		t.Errorf("Expected apology after failed send, got %v", sent)
	}
	if out := env.store.byDirection(domain.DirectionOutbound); len(out) != 0 {
		t.Errorf("Expected no outbound record after failed send, got %d", len(out))
	}
}

func TestHandleMessage_ApologySendAlsoFails(t *testing.T) {
	env := newTestEnv()
	env.messages.sendErr = errors.New("offline")

	result := env.svc.HandleMessage(context.Background(), directEvent("hello"))

	if result.Err == nil {
		t.Error("Expected original error in result")
	}
	if len(env.messages.sentTexts()) != 0 {
		t.Error("Expected nothing delivered")
	}
}

func TestHandleMessage_FailedGenerationNotRecorded(t *testing.T) {
	env := newTestEnv()
	env.generator.reply = "Maaf, server Ollama mati."
	env.generator.failed = true

	result := env.svc.HandleMessage(context.Background(), directEvent("hello"))

	if !result.Sent || result.Reply != "Maaf, server Ollama mati." {
		t.Errorf("Expected apology delivered, got %+v", result)
	}
	if out := env.store.byDirection(domain.DirectionOutbound); len(out) != 0 {
		t.Errorf("Expected no outbound record for failed generation, got %d", len(out))
	}
}

func TestHandleMessage_StoreFailureDoesNotAbort(t *testing.T) {
	env := newTestEnv()
	env.store.appendErr = errors.New("disk full")

	result := env.svc.HandleMessage(context.Background(), directEvent("hello"))

	if !result.Sent {
		t.Errorf("Expected reply despite store failure, got %+v", result)
	}
}

func TestHandleMessage_ReplyInGroups(t *testing.T) {
	env := newTestEnv()
	env.svc.SetReplyInGroups(true)
	event := groupEvent("halo")
	event.MentionedIDs = []string{"ou_bot"}

	env.svc.HandleMessage(context.Background(), event)

	if len(env.messages.sent) != 1 || env.messages.sent[0].replyTo != "om_2" {
		t.Errorf("Expected quote reply to om_2, got %+v", env.messages.sent)
	}
}

func TestHandleMessage_NilEvent(t *testing.T) {
	env := newTestEnv()

	result := env.svc.HandleMessage(context.Background(), nil)
	if !errors.Is(result.Err, domain.ErrEmptyConversation) {
		t.Errorf("Expected ErrEmptyConversation, got %v", result.Err)
	}
}

func TestHandleMessage_ConcurrentSameConversation(t *testing.T) {
	env := newTestEnv()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env.svc.HandleMessage(context.Background(), directEvent(fmt.Sprintf("pesan %d", i)))
		}(i)
	}
	wg.Wait()

	if len(env.store.records) != 2*n {
		t.Errorf("Expected %d records, got %d", 2*n, len(env.store.records))
	}
	if len(env.messages.sentTexts()) != n {
		t.Errorf("Expected %d replies, got %d", n, len(env.messages.sentTexts()))
	}

	env.generator.mu.Lock()
	defer env.generator.mu.Unlock()
	for _, ctx := range env.generator.history {
		if ctx == nil || ctx.Count != len(ctx.Messages) || ctx.Count > 10 {
			t.Errorf("Malformed context %+v", ctx)
		}
	}
}
