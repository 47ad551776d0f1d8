package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
	"github.com/flatpee/flatpee-bot/internal/infra/feishu"
	"github.com/flatpee/flatpee-bot/internal/service"
)

const dedupWindow = 5 * time.Minute

// EventHandler processes one inbound event
type EventHandler interface {
	HandleMessage(ctx context.Context, event *domain.InboundEvent) *service.HandleResult
}

// FeishuServer feeds Feishu messages into the reply pipeline
type FeishuServer struct {
	feishuClient *feishu.Client
	handler      EventHandler
	debug        bool

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(feishuClient *feishu.Client, handler EventHandler) *FeishuServer {
	return &FeishuServer{
		feishuClient: feishuClient,
		handler:      handler,
		seenMsgs:     make(map[string]time.Time),
	}
}

// SetDebug enables per-event detail logging
func (s *FeishuServer) SetDebug(debug bool) {
	s.debug = debug
}

// Start starts the server (blocking)
func (s *FeishuServer) Start() error {
	s.feishuClient.OnMessage(s.handleMessage)
	return s.feishuClient.Start()
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	s.feishuClient.Stop()
}

// handleMessage runs on its own goroutine per event
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	fmt.Printf("[Server] Received %s from %s (chatType=%s): %s\n",
		msg.MsgType, msg.ChatID, msg.ChatType, truncate(msg.Content, 50))

	// Feishu redelivers when the ACK is slow
	if !s.markMessageSeen(msg.MsgID) {
		fmt.Printf("[Server] Duplicate message ignored: %s\n", msg.MsgID)
		return
	}

	event := toInboundEvent(msg, s.feishuClient.BotOpenID())
	if s.debug {
		logEventDetails(event)
	}

	result := s.handler.HandleMessage(context.Background(), event)
	if result.Err != nil {
		fmt.Printf("[Server] Message %s handled with error: %v\n", msg.MsgID, result.Err)
	}
}

// toInboundEvent maps a Feishu message onto the transport-neutral event
func toInboundEvent(msg *feishu.Message, botOpenID string) *domain.InboundEvent {
	from := domain.DirectConversation(msg.ChatID)
	if msg.ChatType == feishu.ChatTypeGroup {
		from = domain.GroupConversation(msg.ChatID)
	}

	mentioned := append([]string(nil), msg.Mentions...)
	// Mention resolved by the client even if the open_id list is incomplete
	if msg.MentionsBot && botOpenID != "" && !contains(mentioned, botOpenID) {
		mentioned = append(mentioned, botOpenID)
	}

	return &domain.InboundEvent{
		From:          from,
		To:            botOpenID,
		SenderID:      msg.SenderID,
		Body:          msg.Content,
		HasMedia:      msg.HasMedia,
		MessageID:     msg.MsgID,
		MentionedIDs:  mentioned,
		IsReply:       msg.ParentID != "",
		QuotedFromBot: msg.QuotedFromBot,
	}
}

func logEventDetails(event *domain.InboundEvent) {
	fmt.Printf("[Server] Event details:\n")
	fmt.Printf("  From: %s\n", event.From)
	fmt.Printf("  To: %s\n", event.To)
	fmt.Printf("  Sender: %s\n", event.SenderID)
	fmt.Printf("  Body: %s\n", truncate(event.Body, 50))
	fmt.Printf("  Has Media: %v\n", event.HasMedia)
	fmt.Printf("  Type: %s\n", map[bool]string{true: "Group Message", false: "Private Message"}[event.From.IsGroup()])
	if event.From.IsGroup() {
		fmt.Printf("  Bot mentioned: %v\n", event.Mentions(event.To))
		fmt.Printf("  Reply to bot: %v\n", event.IsReply && event.QuotedFromBot)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// markMessageSeen records a message as processed. It returns false when
// the message was already seen; lookup and insert share one lock so
// concurrent redeliveries cannot both pass.
func (s *FeishuServer) markMessageSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := time.Now()
	cutoff := now.Add(-dedupWindow)
	if ts, exists := s.seenMsgs[msgID]; exists && !ts.Before(cutoff) {
		return false
	}
	s.seenMsgs[msgID] = now

	// Drop entries older than the dedup window
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
	return true
}
