package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
	"github.com/flatpee/flatpee-bot/internal/biz/repo"
	"github.com/flatpee/flatpee-bot/internal/biz/usecase"
	"github.com/flatpee/flatpee-bot/internal/service"
	"github.com/google/uuid"
)

// EventHandler processes one inbound event through the reply pipeline
type EventHandler interface {
	HandleMessage(ctx context.Context, event *domain.InboundEvent) *service.HandleResult
}

// Server provides the admin HTTP API used by botctl, the MCP server and
// webhook-style transports
type Server struct {
	convRepo   repo.ConversationRepo
	historyUC  *usecase.HistoryUsecase
	decisionUC *usecase.DecisionUsecase
	handler    EventHandler
	provider   string

	server *http.Server
	port   int
}

// NewServer creates a new API server
func NewServer(
	convRepo repo.ConversationRepo,
	historyUC *usecase.HistoryUsecase,
	decisionUC *usecase.DecisionUsecase,
	handler EventHandler,
	provider string,
	port int,
) *Server {
	return &Server{
		convRepo:   convRepo,
		historyUC:  historyUC,
		decisionUC: decisionUC,
		handler:    handler,
		provider:   provider,
		port:       port,
	}
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/conversations/{id}/context", s.handleContext)
	mux.HandleFunc("GET /api/indexes", s.handleIndexes)
	mux.HandleFunc("POST /api/decisions", s.handleDecision)
	mux.HandleFunc("POST /api/messages", s.handleMessage)

	return mux
}

// Start starts the HTTP server (blocking)
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("[API] Starting HTTP server on port %d\n", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

// ============ Health ============

// HealthResponse reports store reachability and the active provider
type HealthResponse struct {
	Status   string      `json:"status"` // ok, degraded
	Provider string      `json:"provider"`
	Store    StoreHealth `json:"store"`
}

// StoreHealth is the result of a store ping
type StoreHealth struct {
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := s.convRepo.Ping(ctx)
	resp := HealthResponse{
		Status:   "ok",
		Provider: s.provider,
		Store:    StoreHealth{OK: err == nil, LatencyMS: time.Since(start).Milliseconds()},
	}

	status := http.StatusOK
	if err != nil {
		resp.Status = "degraded"
		resp.Store.Error = err.Error()
		status = http.StatusServiceUnavailable
	}
	s.writeJSONStatus(w, status, resp)
}

// ============ Conversation Handlers ============

// MessageView is a stored record as returned by the API
type MessageView struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Direction  string    `json:"direction"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ContextResponse is a conversation context window
type ContextResponse struct {
	ConversationID string        `json:"conversation_id"`
	Count          int           `json:"count"`
	Messages       []MessageView `json:"messages"`
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	convID := domain.ConversationID(r.PathValue("id"))

	window := 0
	if v := r.URL.Query().Get("window"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid window", http.StatusBadRequest)
			return
		}
		window = parsed
	}

	history, err := s.historyUC.FetchContext(r.Context(), convID, window)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := ContextResponse{
		ConversationID: convID.String(),
		Count:          history.Count,
		Messages:       make([]MessageView, len(history.Messages)),
	}
	for i, m := range history.Messages {
		resp.Messages[i] = MessageView{
			ID:         m.ID,
			Text:       m.Text,
			Direction:  string(m.Direction),
			OccurredAt: m.OccurredAt,
		}
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleIndexes(w http.ResponseWriter, r *http.Request) {
	names, err := s.convRepo.Indexes(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"indexes": names})
}

// ============ Decision Handlers ============

// DecisionRequest asks whether the bot would reply to a message
type DecisionRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	MentionsBot    bool   `json:"mentions_bot"`
	ReplyToBot     bool   `json:"reply_to_bot"`
}

// DecisionResponse is the engine's verdict
type DecisionResponse struct {
	Reply  bool   `json:"reply"`
	Reason string `json:"reason"`
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ConversationID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}

	convID := domain.ConversationID(req.ConversationID)
	decision := s.decisionUC.Decide(r.Context(), domain.DecisionInput{
		ConversationID:      convID,
		IsGroup:             convID.IsGroup(),
		RawText:             req.Text,
		MentionsBot:         req.MentionsBot,
		IsReplyToOwnMessage: req.ReplyToBot,
	})

	s.writeJSON(w, DecisionResponse{Reply: decision.Reply, Reason: string(decision.Reason)})
}

// ============ Message Handlers ============

// MessageRequest injects an inbound event into the pipeline
type MessageRequest struct {
	From          string   `json:"from"`
	To            string   `json:"to"`
	SenderID      string   `json:"sender_id"`
	Body          string   `json:"body"`
	HasMedia      bool     `json:"has_media"`
	MessageID     string   `json:"message_id"`
	MentionedIDs  []string `json:"mentioned_ids"`
	IsReply       bool     `json:"is_reply"`
	QuotedFromBot bool     `json:"quoted_from_bot"`
}

// MessageResponse is the outcome of an injected event
type MessageResponse struct {
	MessageID string `json:"message_id"`
	Reply     bool   `json:"reply"`
	Reason    string `json:"reason"`
	Text      string `json:"text,omitempty"`
	Sent      bool   `json:"sent"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.From == "" {
		http.Error(w, "from is required", http.StatusBadRequest)
		return
	}
	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}

	result := s.handler.HandleMessage(r.Context(), &domain.InboundEvent{
		From:          domain.ConversationID(req.From),
		To:            req.To,
		SenderID:      req.SenderID,
		Body:          req.Body,
		HasMedia:      req.HasMedia,
		MessageID:     req.MessageID,
		MentionedIDs:  req.MentionedIDs,
		IsReply:       req.IsReply,
		QuotedFromBot: req.QuotedFromBot,
	})

	resp := MessageResponse{
		MessageID: req.MessageID,
		Reply:     result.Decision.Reply,
		Reason:    string(result.Decision.Reason),
		Text:      result.Reply,
		Sent:      result.Sent,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	s.writeJSON(w, resp)
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	s.writeJSONStatus(w, http.StatusOK, data)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrEmptyConversation) {
		status = http.StatusBadRequest
	}
	s.writeJSONStatus(w, status, map[string]string{"error": err.Error()})
}
