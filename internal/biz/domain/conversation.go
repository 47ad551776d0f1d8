package domain

import (
	"strings"
	"time"
)

const (
	// GroupSuffix marks a group conversation id
	GroupSuffix = "@g.us"
	// DirectSuffix marks a direct conversation id
	DirectSuffix = "@c.us"
)

// ConversationID identifies a chat. Group and direct chats are
// distinguished by the id's suffix.
type ConversationID string

// GroupConversation builds a group conversation id from a transport chat id
func GroupConversation(chatID string) ConversationID {
	return ConversationID(chatID + GroupSuffix)
}

// DirectConversation builds a direct conversation id from a transport chat id
func DirectConversation(chatID string) ConversationID {
	return ConversationID(chatID + DirectSuffix)
}

// IsGroup checks if the conversation is a group chat
func (id ConversationID) IsGroup() bool {
	return strings.Contains(string(id), GroupSuffix)
}

// ChatID strips the marker suffix and returns the transport chat id
func (id ConversationID) ChatID() string {
	s := string(id)
	s = strings.TrimSuffix(s, GroupSuffix)
	return strings.TrimSuffix(s, DirectSuffix)
}

func (id ConversationID) String() string {
	return string(id)
}

// Direction tells whether a stored message was received or sent
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// MessageRecord is one immutable entry of a conversation log
type MessageRecord struct {
	ID             string         `json:"id"`
	ConversationID ConversationID `json:"conversation_id"`
	Text           string         `json:"text"`
	Direction      Direction      `json:"direction"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// ConversationContext is the most recent slice of a conversation, oldest first
type ConversationContext struct {
	Messages []MessageRecord `json:"messages"`
	Count    int             `json:"count"`
}

// NewConversationContext builds a context from records already ordered oldest first
func NewConversationContext(records []MessageRecord) *ConversationContext {
	if records == nil {
		records = []MessageRecord{}
	}
	return &ConversationContext{
		Messages: records,
		Count:    len(records),
	}
}

// EmptyContext returns a context with no messages
func EmptyContext() *ConversationContext {
	return NewConversationContext(nil)
}

// IsEmpty checks if the context carries no history
func (c *ConversationContext) IsEmpty() bool {
	return c == nil || len(c.Messages) == 0
}

// Last returns the most recent record, or nil
func (c *ConversationContext) Last() *MessageRecord {
	if c.IsEmpty() {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}
