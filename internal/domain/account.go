package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SystemAccount is recorded as the actor of transitions made by the engine itself.
const SystemAccount = "system"

type Account struct {
	ID              string
	Verified        bool
	CompletedTrades int
	CancelledTrades int
	BlockedUntil    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a *Account) IsBlocked(now time.Time) bool {
	return a.BlockedUntil != nil && now.Before(*a.BlockedUntil)
}

// Balance is one currency row of an account's ledger.
// Reserved is the part of Total frozen by in-flight trades; 0 <= Reserved <= Total.
type Balance struct {
	AccountID string
	Currency  string
	Total     decimal.Decimal
	Reserved  decimal.Decimal
	UpdatedAt time.Time
}

func NewBalance(accountID, currency string) *Balance {
	return &Balance{AccountID: accountID, Currency: currency, Total: decimal.Zero, Reserved: decimal.Zero}
}

func (b *Balance) Available() decimal.Decimal {
	return b.Total.Sub(b.Reserved)
}

// Reserve freezes amount out of the available balance.
func (b *Balance) Reserve(amount decimal.Decimal) error {
	if amount.GreaterThan(b.Available()) {
		return InsufficientFunds("account %s has %s %s available, %s required",
			b.AccountID, b.Available().String(), b.Currency, amount.String())
	}
	b.Reserved = b.Reserved.Add(amount)
	return nil
}

// Unreserve returns frozen funds to the available balance.
func (b *Balance) Unreserve(amount decimal.Decimal) error {
	if amount.GreaterThan(b.Reserved) {
		return &Error{Kind: KindInternal, Message: "reserved balance of " + b.AccountID + " below refund amount"}
	}
	b.Reserved = b.Reserved.Sub(amount)
	return nil
}

// Settle removes frozen funds from the ledger; the caller credits them elsewhere.
func (b *Balance) Settle(amount decimal.Decimal) error {
	if amount.GreaterThan(b.Reserved) {
		return &Error{Kind: KindInternal, Message: "reserved balance of " + b.AccountID + " below settle amount"}
	}
	b.Reserved = b.Reserved.Sub(amount)
	b.Total = b.Total.Sub(amount)
	return nil
}

func (b *Balance) Credit(amount decimal.Decimal) {
	b.Total = b.Total.Add(amount)
}

// Debit withdraws from the available balance.
func (b *Balance) Debit(amount decimal.Decimal) error {
	if amount.GreaterThan(b.Available()) {
		return InsufficientFunds("account %s has %s %s available, %s requested",
			b.AccountID, b.Available().String(), b.Currency, amount.String())
	}
	b.Total = b.Total.Sub(amount)
	return nil
}

type AccountSummary struct {
	Account  *Account
	Balances []*Balance
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

// AmountScale is the number of fractional digits the ledger stores.
const AmountScale = 18

// ValidateAmount rejects zero and negative amounts and those finer than AmountScale.
func ValidateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return Validation("%s must be > 0", field)
	}
	return ValidateScale(field, amount)
}

func ValidateScale(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return Validation("%s has more than %d decimal places", field, AmountScale)
	}
	return nil
}
