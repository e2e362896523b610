package core

import (
	"context"
	"strings"
	"time"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/port"
	"github.com/shopspring/decimal"
)

// OfferRequest describes an offer to publish.
type OfferRequest struct {
	Side          domain.Side
	Asset         string
	Fiat          string
	Price         decimal.Decimal
	Amount        decimal.Decimal
	MinLimit      decimal.Decimal
	MaxLimit      decimal.Decimal
	PaymentMethod string
	Contact       string
}

func (r *OfferRequest) normalize() error {
	r.Side = domain.Side(strings.ToUpper(strings.TrimSpace(string(r.Side))))
	if !r.Side.Valid() {
		return domain.Validation("side must be BUY or SELL")
	}
	r.Asset = domain.NormalizeCurrency(r.Asset)
	r.Fiat = domain.NormalizeCurrency(r.Fiat)
	if r.Asset == "" || r.Fiat == "" {
		return domain.Validation("asset and fiat are required")
	}
	if r.Asset == r.Fiat {
		return domain.Validation("asset and fiat must differ")
	}
	if err := domain.ValidateAmount("price", r.Price); err != nil {
		return err
	}
	if err := domain.ValidateAmount("amount", r.Amount); err != nil {
		return err
	}
	if r.MinLimit.IsNegative() || r.MaxLimit.IsNegative() {
		return domain.Validation("limits must not be negative")
	}
	if err := domain.ValidateScale("min_limit", r.MinLimit); err != nil {
		return err
	}
	if err := domain.ValidateScale("max_limit", r.MaxLimit); err != nil {
		return err
	}
	if r.MaxLimit.IsPositive() && r.MinLimit.GreaterThan(r.MaxLimit) {
		return domain.Validation("min_limit %s exceeds max_limit %s", r.MinLimit.String(), r.MaxLimit.String())
	}
	if r.MinLimit.GreaterThan(r.Amount) {
		return domain.Validation("min_limit %s exceeds amount %s", r.MinLimit.String(), r.Amount.String())
	}
	r.PaymentMethod = strings.TrimSpace(r.PaymentMethod)
	if r.PaymentMethod == "" {
		return domain.Validation("payment_method is required")
	}
	r.Contact = strings.TrimSpace(r.Contact)
	return nil
}

// CreateOffer publishes an offer owned by the caller.
func (e *Engine) CreateOffer(ctx context.Context, c domain.Caller, req OfferRequest) (*domain.Offer, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}
	var out *domain.Offer
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		now := e.now()
		owner, err := tx.LockAccount(ctx, c.AccountID)
		if err != nil {
			return err
		}
		if owner.IsBlocked(now) {
			return domain.Unauthorized("account %s is blocked until %s", owner.ID, owner.BlockedUntil.Format(time.RFC3339))
		}
		o := &domain.Offer{
			ID:            e.newID(),
			OwnerID:       c.AccountID,
			Side:          req.Side,
			Asset:         req.Asset,
			Fiat:          req.Fiat,
			Price:         req.Price,
			TotalAmount:   req.Amount,
			Remaining:     req.Amount,
			Filled:        decimal.Zero,
			MinLimit:      req.MinLimit,
			MaxLimit:      req.MaxLimit,
			PaymentMethod: req.PaymentMethod,
			Contact:       req.Contact,
			Status:        domain.OfferActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.SaveOffer(ctx, o); err != nil {
			return err
		}
		fx.touched(o.Market())
		fx.emit(domain.Event{Type: domain.EventOfferCreated, OfferID: o.ID, Actor: c.AccountID,
			Status: string(o.Status), Amount: o.TotalAmount, Currency: o.Asset})
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelOffer withdraws an offer from the book. Trades already taken against
// it run to completion.
func (e *Engine) CancelOffer(ctx context.Context, c domain.Caller, offerID string) (*domain.Offer, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	var out *domain.Offer
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		o, err := tx.LockOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if o.OwnerID != c.AccountID && !c.Admin {
			return domain.Unauthorized("only the owner may cancel offer %s", o.ID)
		}
		if o.Terminal() {
			return domain.InvalidState("offer %s is %s", o.ID, o.Status)
		}
		o.Status = domain.OfferCancelled
		o.UpdatedAt = e.now()
		if err := tx.SaveOffer(ctx, o); err != nil {
			return err
		}
		fx.touched(o.Market())
		fx.emit(domain.Event{Type: domain.EventOfferCancelled, OfferID: o.ID, Actor: c.AccountID,
			Recipients: []string{o.OwnerID}, Status: string(o.Status), Amount: o.Remaining, Currency: o.Asset})
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) GetOffer(ctx context.Context, offerID string) (*domain.Offer, error) {
	return e.repo.GetOffer(ctx, offerID)
}

func (e *Engine) ListMyOffers(ctx context.Context, c domain.Caller, status domain.OfferStatus) ([]*domain.Offer, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	return e.repo.ListOffers(ctx, domain.OfferFilter{OwnerID: c.AccountID, Status: status})
}

// OfferBook lists the active offers of one market.
func (e *Engine) OfferBook(ctx context.Context, asset, fiat string) (*domain.OfferBook, error) {
	m := domain.Market{Asset: domain.NormalizeCurrency(asset), Fiat: domain.NormalizeCurrency(fiat)}
	if m.Asset == "" || m.Fiat == "" {
		return nil, domain.Validation("asset and fiat are required")
	}
	return e.getOrLoadBook(ctx, m)
}
