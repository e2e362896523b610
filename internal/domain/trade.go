package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeStatus string

const (
	TradeInit      TradeStatus = "INIT"
	TradePending   TradeStatus = "PENDING"
	TradeCompleted TradeStatus = "COMPLETED"
	TradeCancelled TradeStatus = "CANCELLED"
	TradeDisputed  TradeStatus = "DISPUTED"
)

// transitions lists every legal edge of the trade state machine.
var transitions = map[TradeStatus][]TradeStatus{
	TradeInit:     {TradePending, TradeCancelled},
	TradePending:  {TradeCompleted, TradeCancelled, TradeDisputed},
	TradeDisputed: {TradeCompleted, TradeCancelled},
}

func (s TradeStatus) Valid() bool {
	switch s {
	case TradeInit, TradePending, TradeCompleted, TradeCancelled, TradeDisputed:
		return true
	default:
		return false
	}
}

func (s TradeStatus) Terminal() bool {
	return s == TradeCompleted || s == TradeCancelled
}

func (s TradeStatus) CanTransition(to TradeStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Trade is a commitment between buyer and seller against part of an offer.
// The seller's Amount of Asset stays reserved until the trade is terminal.
type Trade struct {
	ID            string
	OfferID       string
	BuyerID       string
	SellerID      string
	Amount        decimal.Decimal
	Asset         string
	Fiat          string
	Price         decimal.Decimal
	Fee           decimal.Decimal
	PaymentMethod string
	Status        TradeStatus
	CancelledBy   string
	CreatedAt     time.Time
	PaidAt        *time.Time
	CompletedAt   *time.Time
	UpdatedAt     time.Time
}

// FiatAmount is what the buyer pays off-platform.
func (t *Trade) FiatAmount() decimal.Decimal {
	return t.Amount.Mul(t.Price)
}

func (t *Trade) IsParty(accountID string) bool {
	return accountID == t.BuyerID || accountID == t.SellerID
}

// Counterparty returns the other side of the trade.
func (t *Trade) Counterparty(accountID string) string {
	if accountID == t.BuyerID {
		return t.SellerID
	}
	return t.BuyerID
}

// Transition moves the trade to status to, or reports why it cannot.
func (t *Trade) Transition(to TradeStatus, now time.Time) error {
	if !t.Status.CanTransition(to) {
		return InvalidState("trade %s cannot move from %s to %s", t.ID, t.Status, to)
	}
	t.Status = to
	t.UpdatedAt = now
	switch to {
	case TradePending:
		t.PaidAt = &now
	case TradeCompleted:
		t.CompletedAt = &now
	}
	return nil
}

type TradeFilter struct {
	AccountID string
	Status    TradeStatus
	Limit     int
}
