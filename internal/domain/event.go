package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventOfferCreated    EventType = "offer.created"
	EventOfferCancelled  EventType = "offer.cancelled"
	EventTradeCreated    EventType = "trade.created"
	EventTradePaid       EventType = "trade.paid"
	EventTradeCompleted  EventType = "trade.completed"
	EventTradeCancelled  EventType = "trade.cancelled"
	EventTradeDisputed   EventType = "trade.disputed"
	EventTradeLarge      EventType = "trade.large"
	EventDisputeResolved EventType = "dispute.resolved"
	EventMessagePosted   EventType = "message.posted"
)

// Event is published after a state change commits. Delivery is best effort.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	OfferID    string          `json:"offer_id,omitempty"`
	TradeID    string          `json:"trade_id,omitempty"`
	DisputeID  string          `json:"dispute_id,omitempty"`
	Actor      string          `json:"actor"`
	Recipients []string        `json:"recipients,omitempty"`
	Status     string          `json:"status,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Key groups events of one aggregate for ordered delivery.
func (e Event) Key() string {
	switch {
	case e.TradeID != "":
		return e.TradeID
	case e.OfferID != "":
		return e.OfferID
	default:
		return e.ID
	}
}
