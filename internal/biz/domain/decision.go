package domain

// DecisionInput is computed once per inbound event and never persisted
type DecisionInput struct {
	ConversationID      ConversationID
	IsGroup             bool
	RawText             string
	MentionsBot         bool
	IsReplyToOwnMessage bool
}

// DecisionReason names the rule that produced a decision
type DecisionReason string

const (
	ReasonDirect       DecisionReason = "direct"
	ReasonMentioned    DecisionReason = "mentioned"
	ReasonQuoted       DecisionReason = "quoted"
	ReasonClassified   DecisionReason = "classified"
	ReasonClassifiedNo DecisionReason = "classified-no"
	ReasonPattern      DecisionReason = "pattern"
	ReasonPatternNo    DecisionReason = "pattern-no"
	ReasonEmpty        DecisionReason = "empty"
)

// Decision is the verdict of the reply-decision engine
type Decision struct {
	Reply  bool
	Reason DecisionReason
}
