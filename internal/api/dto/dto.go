package dto

import (
	"errors"
	"time"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/shopspring/decimal"
)

type WithdrawRequest struct {
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

type DepositRequest struct {
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

type BlockRequest struct {
	Until time.Time `json:"until"`
}

type VerifyRequest struct {
	Verified *bool `json:"verified,omitempty"`
}

type CreateOfferRequest struct {
	Side          string          `json:"side" binding:"required"`
	Asset         string          `json:"asset" binding:"required"`
	Fiat          string          `json:"fiat" binding:"required"`
	Price         decimal.Decimal `json:"price"`
	Amount        decimal.Decimal `json:"amount"`
	MinLimit      decimal.Decimal `json:"min_limit"`
	MaxLimit      decimal.Decimal `json:"max_limit"`
	PaymentMethod string          `json:"payment_method" binding:"required"`
	Contact       string          `json:"contact,omitempty"`
}

type CreateTradeRequest struct {
	OfferID string          `json:"offer_id,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
}

type TradeRequest struct {
	TradeID string `json:"trade_id" binding:"required"`
}

type ListTradesRequest struct {
	AccountID string `json:"account_id,omitempty" form:"account_id"`
	Status    string `json:"status,omitempty" form:"status"`
	Limit     int    `json:"limit,omitempty" form:"limit"`
}

type OpenDisputeRequest struct {
	TradeID  string   `json:"trade_id,omitempty"`
	Reason   string   `json:"reason" binding:"required"`
	Evidence []string `json:"evidence,omitempty"`
}

type EvidenceRequest struct {
	Handles []string `json:"handles" binding:"required"`
}

type ResolveDisputeRequest struct {
	DisputeID string `json:"dispute_id,omitempty"`
	Outcome   string `json:"outcome" binding:"required"`
}

type PostMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type Balance struct {
	Currency  string          `json:"currency"`
	Total     decimal.Decimal `json:"total"`
	Reserved  decimal.Decimal `json:"reserved"`
	Available decimal.Decimal `json:"available"`
}

type Account struct {
	ID              string     `json:"id"`
	Verified        bool       `json:"verified"`
	CompletedTrades int        `json:"completed_trades"`
	CancelledTrades int        `json:"cancelled_trades"`
	BlockedUntil    *time.Time `json:"blocked_until,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	Balances        []Balance  `json:"balances,omitempty"`
}

type Offer struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Side          string          `json:"side"`
	Asset         string          `json:"asset"`
	Fiat          string          `json:"fiat"`
	Price         decimal.Decimal `json:"price"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Remaining     decimal.Decimal `json:"remaining"`
	Filled        decimal.Decimal `json:"filled"`
	MinLimit      decimal.Decimal `json:"min_limit"`
	MaxLimit      decimal.Decimal `json:"max_limit"`
	PaymentMethod string          `json:"payment_method"`
	Contact       string          `json:"contact,omitempty"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type OfferBook struct {
	Market    string    `json:"market"`
	Buy       []Offer   `json:"buy"`
	Sell      []Offer   `json:"sell"`
	Timestamp time.Time `json:"timestamp"`
}

type Trade struct {
	ID            string          `json:"id"`
	OfferID       string          `json:"offer_id"`
	BuyerID       string          `json:"buyer_id"`
	SellerID      string          `json:"seller_id"`
	Amount        decimal.Decimal `json:"amount"`
	Asset         string          `json:"asset"`
	Fiat          string          `json:"fiat"`
	Price         decimal.Decimal `json:"price"`
	FiatAmount    decimal.Decimal `json:"fiat_amount"`
	Fee           decimal.Decimal `json:"fee"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
	CancelledBy   string          `json:"cancelled_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

type Trades struct {
	Trades []Trade `json:"trades"`
}

type Dispute struct {
	ID         string     `json:"id"`
	TradeID    string     `json:"trade_id"`
	OpenedBy   string     `json:"opened_by"`
	Reason     string     `json:"reason"`
	Evidence   []string   `json:"evidence"`
	Status     string     `json:"status"`
	Outcome    string     `json:"outcome,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type Disputes struct {
	Disputes []Dispute `json:"disputes"`
}

type Offers struct {
	Offers []Offer `json:"offers"`
}

type TradeDispute struct {
	Trade   Trade   `json:"trade"`
	Dispute Dispute `json:"dispute"`
}

type Message struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	TradeID   string    `json:"trade_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Messages is one page of chat; Next is the cursor for the following request.
type Messages struct {
	Messages []Message `json:"messages"`
	Next     int64     `json:"next"`
}

type Token struct {
	Token string `json:"token"`
}

func FromBalance(b *domain.Balance) Balance {
	return Balance{Currency: b.Currency, Total: b.Total, Reserved: b.Reserved, Available: b.Available()}
}

func FromAccount(s *domain.AccountSummary) Account {
	a := s.Account
	out := Account{
		ID:              a.ID,
		Verified:        a.Verified,
		CompletedTrades: a.CompletedTrades,
		CancelledTrades: a.CancelledTrades,
		BlockedUntil:    a.BlockedUntil,
		CreatedAt:       a.CreatedAt,
	}
	for _, b := range s.Balances {
		out.Balances = append(out.Balances, FromBalance(b))
	}
	return out
}

func FromOffer(o *domain.Offer) Offer {
	return Offer{
		ID:            o.ID,
		OwnerID:       o.OwnerID,
		Side:          string(o.Side),
		Asset:         o.Asset,
		Fiat:          o.Fiat,
		Price:         o.Price,
		TotalAmount:   o.TotalAmount,
		Remaining:     o.Remaining,
		Filled:        o.Filled,
		MinLimit:      o.MinLimit,
		MaxLimit:      o.MaxLimit,
		PaymentMethod: o.PaymentMethod,
		Contact:       o.Contact,
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
	}
}

func FromOffers(os []*domain.Offer) Offers {
	out := Offers{Offers: make([]Offer, 0, len(os))}
	for _, o := range os {
		out.Offers = append(out.Offers, FromOffer(o))
	}
	return out
}

func FromOfferBook(ob *domain.OfferBook) OfferBook {
	out := OfferBook{Market: ob.Market, Buy: make([]Offer, 0, len(ob.Buy)), Sell: make([]Offer, 0, len(ob.Sell)), Timestamp: ob.Timestamp}
	for i := range ob.Buy {
		out.Buy = append(out.Buy, FromOffer(&ob.Buy[i]))
	}
	for i := range ob.Sell {
		out.Sell = append(out.Sell, FromOffer(&ob.Sell[i]))
	}
	return out
}

func FromTrade(t *domain.Trade) Trade {
	return Trade{
		ID:            t.ID,
		OfferID:       t.OfferID,
		BuyerID:       t.BuyerID,
		SellerID:      t.SellerID,
		Amount:        t.Amount,
		Asset:         t.Asset,
		Fiat:          t.Fiat,
		Price:         t.Price,
		FiatAmount:    t.FiatAmount(),
		Fee:           t.Fee,
		PaymentMethod: t.PaymentMethod,
		Status:        string(t.Status),
		CancelledBy:   t.CancelledBy,
		CreatedAt:     t.CreatedAt,
		PaidAt:        t.PaidAt,
		CompletedAt:   t.CompletedAt,
	}
}

func FromTrades(ts []*domain.Trade) Trades {
	out := Trades{Trades: make([]Trade, 0, len(ts))}
	for _, t := range ts {
		out.Trades = append(out.Trades, FromTrade(t))
	}
	return out
}

func FromDispute(d *domain.Dispute) Dispute {
	return Dispute{
		ID:         d.ID,
		TradeID:    d.TradeID,
		OpenedBy:   d.OpenedBy,
		Reason:     d.Reason,
		Evidence:   append([]string{}, d.Evidence...),
		Status:     string(d.Status),
		Outcome:    string(d.Outcome),
		ResolvedBy: d.ResolvedBy,
		CreatedAt:  d.CreatedAt,
		ResolvedAt: d.ResolvedAt,
	}
}

func FromDisputes(ds []*domain.Dispute) Disputes {
	out := Disputes{Disputes: make([]Dispute, 0, len(ds))}
	for _, d := range ds {
		out.Disputes = append(out.Disputes, FromDispute(d))
	}
	return out
}

func FromMessage(m *domain.ChatMessage) Message {
	return Message{Seq: m.Seq, ID: m.ID, TradeID: m.TradeID, SenderID: m.SenderID, Text: m.Text, CreatedAt: m.CreatedAt}
}

func FromMessages(ms []*domain.ChatMessage, after int64) Messages {
	out := Messages{Messages: make([]Message, 0, len(ms)), Next: after}
	for _, m := range ms {
		out.Messages = append(out.Messages, FromMessage(m))
		out.Next = m.Seq
	}
	return out
}

// Error renders err with its machine-readable kind.
func Error(err error) ErrorResponse {
	kind := domain.KindOf(err)
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		msg = de.Message
	}
	if kind == domain.KindInternal {
		msg = "internal error"
	}
	return ErrorResponse{Error: ErrorBody{Kind: string(kind), Message: msg}}
}
