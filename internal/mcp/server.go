package mcp

import (
	"context"

	"github.com/flatpee/flatpee-bot/internal/api"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server exposes conversation history and reply decisions as MCP tools,
// backed by a running bot's admin API
type Server struct {
	server *mcp.Server
	client *Client
}

// NewServer creates the MCP server and registers its tools
func NewServer(client *Client, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "flatpee-history",
			Version: version,
		}, nil),
		client: client,
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until ctx is done or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_conversation_context",
		Description: "Get the most recent stored messages of a conversation, oldest first. Group conversation ids end in @g.us, direct ones in @c.us.",
	}, s.handleGetContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "evaluate_reply_decision",
		Description: "Ask whether the bot would reply to a message in a conversation, and which rule decided it. May call the classification model for group messages.",
	}, s.handleEvaluateDecision)
}

// GetContextInput is the input for get_conversation_context
type GetContextInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"The conversation id, e.g. oc_123@g.us"`
	Window         int    `json:"window,omitempty" jsonschema:"Number of messages to return (default 10)"`
}

// ContextMessage is one stored message
type ContextMessage struct {
	Text       string `json:"text"`
	Direction  string `json:"direction"`
	OccurredAt string `json:"occurred_at"`
}

// GetContextOutput contains the context window
type GetContextOutput struct {
	Count    int              `json:"count"`
	Messages []ContextMessage `json:"messages"`
	Error    string           `json:"error,omitempty"`
}

func (s *Server) handleGetContext(ctx context.Context, req *mcp.CallToolRequest, input GetContextInput) (*mcp.CallToolResult, GetContextOutput, error) {
	if input.ConversationID == "" {
		return nil, GetContextOutput{Messages: []ContextMessage{}, Error: "conversation_id is required"}, nil
	}

	resp, err := s.client.GetContext(ctx, input.ConversationID, input.Window)
	if err != nil {
		return nil, GetContextOutput{Messages: []ContextMessage{}, Error: err.Error()}, nil
	}

	out := GetContextOutput{Count: resp.Count, Messages: make([]ContextMessage, len(resp.Messages))}
	for i, m := range resp.Messages {
		out.Messages[i] = ContextMessage{
			Text:       m.Text,
			Direction:  m.Direction,
			OccurredAt: m.OccurredAt.Format("2006-01-02 15:04:05"),
		}
	}
	return nil, out, nil
}

// EvaluateDecisionInput is the input for evaluate_reply_decision
type EvaluateDecisionInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"The conversation id the message was posted in"`
	Text           string `json:"text" jsonschema:"The message text"`
	MentionsBot    bool   `json:"mentions_bot,omitempty" jsonschema:"Whether the message explicitly mentions the bot"`
	ReplyToBot     bool   `json:"reply_to_bot,omitempty" jsonschema:"Whether the message quotes one of the bot's messages"`
}

// EvaluateDecisionOutput is the decision engine's verdict
type EvaluateDecisionOutput struct {
	Reply  bool   `json:"reply"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleEvaluateDecision(ctx context.Context, req *mcp.CallToolRequest, input EvaluateDecisionInput) (*mcp.CallToolResult, EvaluateDecisionOutput, error) {
	if input.ConversationID == "" {
		return nil, EvaluateDecisionOutput{Error: "conversation_id is required"}, nil
	}

	resp, err := s.client.EvaluateDecision(ctx, api.DecisionRequest{
		ConversationID: input.ConversationID,
		Text:           input.Text,
		MentionsBot:    input.MentionsBot,
		ReplyToBot:     input.ReplyToBot,
	})
	if err != nil {
		return nil, EvaluateDecisionOutput{Error: err.Error()}, nil
	}
	return nil, EvaluateDecisionOutput{Reply: resp.Reply, Reason: resp.Reason}, nil
}
