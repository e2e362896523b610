package core

import (
	"context"
	"time"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/port"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OpenAccount registers the caller's account. Opening an existing account
// returns it unchanged.
func (e *Engine) OpenAccount(ctx context.Context, c domain.Caller) (*domain.Account, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	if c.AccountID == domain.SystemAccount {
		return nil, domain.Validation("account id %q is reserved", c.AccountID)
	}
	var out *domain.Account
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		a, err := tx.LockAccount(ctx, c.AccountID)
		if err == nil {
			out = a
			return nil
		}
		if !domain.IsKind(err, domain.KindNotFound) {
			return err
		}
		now := e.now()
		a = &domain.Account{ID: c.AccountID, CreatedAt: now, UpdatedAt: now}
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetAccount returns an account with its balances. Callers see only their own
// account unless they are admins.
func (e *Engine) GetAccount(ctx context.Context, c domain.Caller, accountID string) (*domain.AccountSummary, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	if accountID == "" {
		accountID = c.AccountID
	}
	if accountID != c.AccountID && !c.Admin {
		return nil, domain.Unauthorized("cannot read account %s", accountID)
	}
	a, err := e.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	bals, err := e.repo.ListBalances(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &domain.AccountSummary{Account: a, Balances: bals}, nil
}

// Deposit credits an account. Only admins move money onto the platform.
func (e *Engine) Deposit(ctx context.Context, c domain.Caller, accountID, currency string, amount decimal.Decimal) (*domain.Balance, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	currency = domain.NormalizeCurrency(currency)
	if currency == "" {
		return nil, domain.Validation("currency is required")
	}
	if err := domain.ValidateAmount("amount", amount); err != nil {
		return nil, err
	}
	if _, err := e.repo.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	var out *domain.Balance
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		b, err := tx.LockBalance(ctx, accountID, currency)
		if err != nil {
			return err
		}
		b.Credit(amount)
		b.UpdatedAt = e.now()
		if err := tx.SaveBalance(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("deposit", zap.String("account", accountID), zap.String("currency", currency),
		zap.String("amount", amount.String()), zap.String("by", c.AccountID))
	return out, nil
}

// Withdraw debits the caller's available balance; reserved funds stay put.
func (e *Engine) Withdraw(ctx context.Context, c domain.Caller, currency string, amount decimal.Decimal) (*domain.Balance, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	currency = domain.NormalizeCurrency(currency)
	if currency == "" {
		return nil, domain.Validation("currency is required")
	}
	if err := domain.ValidateAmount("amount", amount); err != nil {
		return nil, err
	}
	a, err := e.repo.GetAccount(ctx, c.AccountID)
	if err != nil {
		return nil, err
	}
	if a.IsBlocked(e.now()) {
		return nil, domain.Unauthorized("account %s is blocked until %s", a.ID, a.BlockedUntil.Format(time.RFC3339))
	}
	var out *domain.Balance
	err = e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		b, err := tx.LockBalance(ctx, c.AccountID, currency)
		if err != nil {
			return err
		}
		if err := b.Debit(amount); err != nil {
			return err
		}
		b.UpdatedAt = e.now()
		if err := tx.SaveBalance(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureFeeAccount opens the account that collects trade fees so it can be
// read like any other. It is a no-op when no fee account is configured.
func (e *Engine) EnsureFeeAccount(ctx context.Context) error {
	id := e.cfg.FeeAccountID
	if id == "" {
		return nil
	}
	if id == domain.SystemAccount {
		return domain.Validation("fee account id %q is reserved", id)
	}
	_, err := e.OpenAccount(ctx, domain.Caller{AccountID: id})
	return err
}

// SetBlocked blocks an account until the given time; a zero time unblocks it.
func (e *Engine) SetBlocked(ctx context.Context, c domain.Caller, accountID string, until time.Time) (*domain.Account, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	return e.updateAccount(ctx, accountID, func(a *domain.Account) {
		if until.IsZero() {
			a.BlockedUntil = nil
			return
		}
		u := until
		a.BlockedUntil = &u
	})
}

func (e *Engine) SetVerified(ctx context.Context, c domain.Caller, accountID string, verified bool) (*domain.Account, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	return e.updateAccount(ctx, accountID, func(a *domain.Account) { a.Verified = verified })
}

func (e *Engine) updateAccount(ctx context.Context, accountID string, mutate func(*domain.Account)) (*domain.Account, error) {
	var out *domain.Account
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		a, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		mutate(a)
		a.UpdatedAt = e.now()
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// penalise counts a cancellation against the account and blocks it once the
// count reaches CancelThreshold. Every later penalised cancellation renews the block.
func (e *Engine) penalise(a *domain.Account, now time.Time) {
	a.CancelledTrades++
	a.UpdatedAt = now
	if e.cfg.CancelThreshold > 0 && a.CancelledTrades >= e.cfg.CancelThreshold {
		until := now.Add(e.cfg.BlockDuration)
		a.BlockedUntil = &until
		e.log.Info("account blocked for cancellations",
			zap.String("account", a.ID), zap.Int("cancelled", a.CancelledTrades), zap.Time("until", until))
	}
}
