package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string
type OfferStatus string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"

	OfferActive    OfferStatus = "ACTIVE"
	OfferReserved  OfferStatus = "RESERVED"
	OfferCompleted OfferStatus = "COMPLETED"
	OfferCancelled OfferStatus = "CANCELLED"
)

func (s Side) Valid() bool { return s == Buy || s == Sell }

// Offer is a standing advertisement. Remaining only decreases except when a
// trade against it is cancelled; Filled counts amount settled by completed trades.
type Offer struct {
	ID            string
	OwnerID       string
	Side          Side
	Asset         string
	Fiat          string
	Price         decimal.Decimal
	TotalAmount   decimal.Decimal
	Remaining     decimal.Decimal
	Filled        decimal.Decimal
	MinLimit      decimal.Decimal
	MaxLimit      decimal.Decimal
	PaymentMethod string
	Contact       string
	Status        OfferStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (o *Offer) Market() Market { return Market{Asset: o.Asset, Fiat: o.Fiat} }

func (o *Offer) Terminal() bool {
	return o.Status == OfferCompleted || o.Status == OfferCancelled
}

// Parties returns buyer and seller for a trade taken by taker.
func (o *Offer) Parties(taker string) (buyer, seller string) {
	if o.Side == Sell {
		return taker, o.OwnerID
	}
	return o.OwnerID, taker
}

// CheckLimits validates a requested trade amount against the per-trade limits
// and the remaining amount. Taking the whole remainder is allowed below the
// minimum so a partially filled offer can always be exhausted.
func (o *Offer) CheckLimits(amount decimal.Decimal) error {
	if o.MinLimit.IsPositive() && amount.LessThan(o.MinLimit) && !amount.Equal(o.Remaining) {
		return Validation("amount %s below offer minimum %s", amount.String(), o.MinLimit.String())
	}
	if o.MaxLimit.IsPositive() && amount.GreaterThan(o.MaxLimit) {
		return Validation("amount %s above offer maximum %s", amount.String(), o.MaxLimit.String())
	}
	if amount.GreaterThan(o.Remaining) {
		return InsufficientFunds("offer %s has %s remaining, %s requested", o.ID, o.Remaining.String(), amount.String())
	}
	return nil
}

// Take decrements the remaining amount and moves the offer to reserved when exhausted.
func (o *Offer) Take(amount decimal.Decimal) {
	o.Remaining = o.Remaining.Sub(amount)
	if o.Remaining.IsZero() && o.Status == OfferActive {
		o.Status = OfferReserved
	}
}

// Restore gives back the amount of a cancelled trade.
func (o *Offer) Restore(amount decimal.Decimal) {
	o.Remaining = o.Remaining.Add(amount)
	if o.Status == OfferReserved {
		o.Status = OfferActive
	}
}

// Fill records a completed trade; the offer completes once fully settled.
func (o *Offer) Fill(amount decimal.Decimal) {
	o.Filled = o.Filled.Add(amount)
	if o.Filled.GreaterThanOrEqual(o.TotalAmount) && o.Status == OfferReserved {
		o.Status = OfferCompleted
	}
}

type OfferFilter struct {
	OwnerID string
	Asset   string
	Fiat    string
	Status  OfferStatus
}

type Market struct {
	Asset string
	Fiat  string
}

func (m Market) String() string { return m.Asset + "/" + m.Fiat }
