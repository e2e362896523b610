package core

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/olyamironova/escrow-engine/internal/domain"
)

// PostMessage appends a chat message to a live trade.
func (e *Engine) PostMessage(ctx context.Context, c domain.Caller, tradeID, text string) (*domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.Validation("message text is required")
	}
	if utf8.RuneCountInString(text) > domain.MaxMessageLength {
		return nil, domain.Validation("message longer than %d characters", domain.MaxMessageLength)
	}
	t, err := e.GetTrade(ctx, c, tradeID)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, domain.InvalidState("trade %s is %s; chat is closed", t.ID, t.Status)
	}
	m := &domain.ChatMessage{
		ID:        e.newID(),
		TradeID:   t.ID,
		SenderID:  c.AccountID,
		Text:      text,
		CreatedAt: e.now(),
	}
	if err := e.repo.AppendMessage(ctx, m); err != nil {
		return nil, err
	}
	recipients := []string{t.BuyerID, t.SellerID}
	if t.IsParty(c.AccountID) {
		recipients = []string{t.Counterparty(c.AccountID)}
	}
	e.publish(ctx, domain.Event{
		Type:       domain.EventMessagePosted,
		TradeID:    t.ID,
		Actor:      c.AccountID,
		Recipients: recipients,
		Status:     string(t.Status),
	})
	return m, nil
}

// ListMessages returns messages of a trade with Seq greater than after, in order.
func (e *Engine) ListMessages(ctx context.Context, c domain.Caller, tradeID string, after int64, limit int) ([]*domain.ChatMessage, error) {
	if after < 0 {
		return nil, domain.Validation("cursor must not be negative")
	}
	if _, err := e.GetTrade(ctx, c, tradeID); err != nil {
		return nil, err
	}
	return e.repo.ListMessages(ctx, tradeID, after, clampLimit(limit))
}
