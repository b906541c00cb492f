package services

import (
	"chat-sync/errors"
	"chat-sync/moderation"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// GateDecision is the content allowed to leave, with what moderation removed.
type GateDecision struct {
	Content  string
	Censored []string
	Language string
}

// OutboundGate runs every business rule of an outgoing message before any store write.
type OutboundGate struct {
	maxOutbound   int
	maxLength     int
	moderator     moderation.Moderator
	withModerator bool
	log           *slog.Logger
}

func NewOutboundGate(maxOutbound, maxLength int, log *slog.Logger) *OutboundGate {
	return &OutboundGate{maxOutbound: maxOutbound, maxLength: maxLength, log: log}
}

// WithModerator censors content before it is written.
func (g *OutboundGate) WithModerator(moderator moderation.Moderator) *OutboundGate {
	g.moderator = moderator
	g.withModerator = true
	return g
}

// Check rejects blank or oversized content and a conversation that already
// holds maxOutbound messages of the current participant.
func (g *OutboundGate) Check(conversationID, content string, sentBySelf int) (GateDecision, error) {
	// 1. Content rules
	content = strings.TrimSpace(content)
	if err := validate.Var(content, fmt.Sprintf("required,max=%d", g.maxLength)); err != nil {
		return GateDecision{}, fmt.Errorf("%w: %v", errors.ErrInvalidContent, err)
	}

	// 2. Business cap
	if g.maxOutbound > 0 && sentBySelf >= g.maxOutbound {
		g.log.Info("Outbound message rejected", "conversation", conversationID, "sent", sentBySelf, "max", g.maxOutbound)
		return GateDecision{}, fmt.Errorf("%w: %d of %d", errors.ErrOutboundLimitReached, sentBySelf, g.maxOutbound)
	}

	// 3. Moderation
	decision := GateDecision{Content: content}
	if g.withModerator {
		decision.Content, decision.Censored = g.moderator.Censor(content)
	}

	// 4. Language, for the logs only
	info := whatlanggo.Detect(decision.Content)
	decision.Language = info.Lang.Iso6391()
	if len(decision.Censored) > 0 {
		g.log.Warn("Outbound content censored", "conversation", conversationID, "words", len(decision.Censored), "lang", decision.Language)
	} else {
		g.log.Debug("Outbound content accepted", "conversation", conversationID, "lang", decision.Language, "confidence", info.Confidence)
	}
	return decision, nil
}
