package domain

import "errors"

var (
	// ErrEmptyText is returned when a record has no text after trimming
	ErrEmptyText = errors.New("message text is empty")
	// ErrEmptyConversation is returned when a record has no conversation id
	ErrEmptyConversation = errors.New("conversation id is empty")
	// ErrInvalidDirection is returned for an unknown direction tag
	ErrInvalidDirection = errors.New("invalid message direction")
)

// InboundEvent is a message delivered by the transport
type InboundEvent struct {
	From          ConversationID // originating conversation
	To            string         // recipient id (the bot)
	SenderID      string
	Body          string
	HasMedia      bool
	MessageID     string
	MentionedIDs  []string
	IsReply       bool
	QuotedFromBot bool
}

// Mentions checks if id appears in the explicit mention list
func (e *InboundEvent) Mentions(id string) bool {
	if id == "" {
		return false
	}
	for _, m := range e.MentionedIDs {
		if m == id {
			return true
		}
	}
	return false
}

// DecisionInput returns the reply-decision view of the event
func (e *InboundEvent) DecisionInput(botID string) DecisionInput {
	return DecisionInput{
		ConversationID:      e.From,
		IsGroup:             e.From.IsGroup(),
		RawText:             e.Body,
		MentionsBot:         e.Mentions(botID),
		IsReplyToOwnMessage: e.IsReply && e.QuotedFromBot,
	}
}

// Generation is the outcome of a generation call. Text is never empty;
// when Failed is set it holds the provider's apology.
type Generation struct {
	Text   string
	Failed bool
}
