package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
	"github.com/flatpee/flatpee-bot/internal/biz/repo"
)

// MaxClassifiableLength is the longest text sent to the classifier, in characters
const MaxClassifiableLength = 500

// genericBotTerms always count as addressing the bot in the pattern fallback
var genericBotTerms = []string{"bot", "assistant", "ai"}

// DecisionUsecase decides whether an inbound message gets a reply
type DecisionUsecase struct {
	classifier  repo.Classifier
	instruction string
	terms       []string
}

// NewDecisionUsecase creates a new decision usecase
// classifier may be nil, in which case group messages fall back to pattern matching
func NewDecisionUsecase(classifier repo.Classifier, instruction string, botNames []string) *DecisionUsecase {
	terms := make([]string, 0, len(botNames)+len(genericBotTerms))
	for _, name := range botNames {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			terms = append(terms, name)
		}
	}
	terms = append(terms, genericBotTerms...)

	return &DecisionUsecase{
		classifier:  classifier,
		instruction: instruction,
		terms:       terms,
	}
}

// Decide evaluates the reply rules in order; the first match wins
func (uc *DecisionUsecase) Decide(ctx context.Context, in domain.DecisionInput) domain.Decision {
	if !in.IsGroup {
		return domain.Decision{Reply: true, Reason: domain.ReasonDirect}
	}
	if in.MentionsBot {
		return domain.Decision{Reply: true, Reason: domain.ReasonMentioned}
	}
	if in.IsReplyToOwnMessage {
		return domain.Decision{Reply: true, Reason: domain.ReasonQuoted}
	}

	text := strings.TrimSpace(in.RawText)
	if text == "" {
		return domain.Decision{Reply: false, Reason: domain.ReasonEmpty}
	}

	if utf8.RuneCountInString(text) <= MaxClassifiableLength {
		should, err := uc.Classify(ctx, text)
		if err == nil {
			if should {
				return domain.Decision{Reply: true, Reason: domain.ReasonClassified}
			}
			return domain.Decision{Reply: false, Reason: domain.ReasonClassifiedNo}
		}
		fmt.Printf("[Decision] Classifier error for %s, using pattern fallback: %v\n", in.ConversationID, err)
	}

	if uc.MatchesPattern(text) {
		return domain.Decision{Reply: true, Reason: domain.ReasonPattern}
	}
	return domain.Decision{Reply: false, Reason: domain.ReasonPatternNo}
}

// Classify asks the classifier for a strict YES/NO verdict
func (uc *DecisionUsecase) Classify(ctx context.Context, text string) (bool, error) {
	if uc.classifier == nil {
		return false, fmt.Errorf("no classifier configured")
	}

	answer, err := uc.classifier.Complete(ctx, uc.instruction, text)
	if err != nil {
		return false, err
	}
	return strings.ToUpper(strings.TrimSpace(answer)) == "YES", nil
}

// MatchesPattern checks for literal bot names or generic bot terms, case-insensitive
func (uc *DecisionUsecase) MatchesPattern(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range uc.terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
