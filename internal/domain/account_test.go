package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBalanceReservation(t *testing.T) {
	b := NewBalance("a", "USDT")
	b.Credit(dec("100"))

	require.NoError(t, b.Reserve(dec("60")))
	assert.True(t, b.Available().Equal(dec("40")))

	err := b.Reserve(dec("40.01"))
	assert.Equal(t, KindInsufficientFunds, KindOf(err))
	assert.True(t, b.Reserved.Equal(dec("60")))

	require.NoError(t, b.Unreserve(dec("20")))
	require.NoError(t, b.Settle(dec("40")))
	assert.True(t, b.Total.Equal(dec("60")))
	assert.True(t, b.Reserved.IsZero())

	assert.Equal(t, KindInternal, KindOf(b.Settle(dec("1"))))
	assert.Equal(t, KindInternal, KindOf(b.Unreserve(dec("1"))))

	assert.Equal(t, KindInsufficientFunds, KindOf(b.Debit(dec("60.5"))))
	require.NoError(t, b.Debit(dec("60")))
	assert.True(t, b.Total.IsZero())
}

func TestOfferTakeRestoreFill(t *testing.T) {
	o := &Offer{ID: "o", TotalAmount: dec("100"), Remaining: dec("100"), Filled: decimal.Zero, Status: OfferActive}

	o.Take(dec("100"))
	assert.Equal(t, OfferReserved, o.Status)
	o.Restore(dec("30"))
	assert.Equal(t, OfferActive, o.Status)
	assert.True(t, o.Remaining.Equal(dec("30")))

	o.Take(dec("30"))
	o.Fill(dec("70"))
	assert.Equal(t, OfferReserved, o.Status)
	o.Fill(dec("30"))
	assert.Equal(t, OfferCompleted, o.Status)
	assert.True(t, o.Terminal())
}

func TestOfferCheckLimits(t *testing.T) {
	o := &Offer{ID: "o", Remaining: dec("40"), MinLimit: dec("5"), MaxLimit: dec("50")}
	tests := []struct {
		amount string
		kind   ErrorKind
	}{
		{"4.99", KindValidation},
		{"5", ""},
		{"40", ""},
		{"45", KindInsufficientFunds},
		{"50.01", KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(o.CheckLimits(dec(tt.amount))))
		})
	}
}

func TestOfferRemainderBelowMinimum(t *testing.T) {
	o := &Offer{ID: "o", Remaining: dec("3"), MinLimit: dec("5"), MaxLimit: dec("50")}
	assert.NoError(t, o.CheckLimits(dec("3")))
	assert.Equal(t, KindValidation, KindOf(o.CheckLimits(dec("2"))))
	assert.Equal(t, KindInsufficientFunds, KindOf(o.CheckLimits(dec("6"))))
}

func TestValidateAmountScale(t *testing.T) {
	assert.NoError(t, ValidateAmount("amount", dec("0.000000000000000001")))
	assert.NoError(t, ValidateAmount("amount", dec("1.50000000000000000000")))
	assert.Equal(t, KindValidation, KindOf(ValidateAmount("amount", dec("0.0000000000000000001"))))
	assert.Equal(t, KindValidation, KindOf(ValidateAmount("amount", dec("1.0000000000000000001"))))
	assert.Equal(t, KindValidation, KindOf(ValidateScale("min_limit", dec("0.0000000000000000005"))))
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("deadlock detected")
	err := fmt.Errorf("lock offer: %w", Conflict(base, "offer busy"))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, Retryable(err))
	assert.ErrorIs(t, err, base)

	assert.Equal(t, KindInternal, KindOf(base))
	assert.False(t, Retryable(NotFound("x")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, "validation: amount must be > 0", ValidateAmount("amount", decimal.Zero).Error())
}

func TestDisputeEvidenceLimit(t *testing.T) {
	d := &Dispute{}
	require.NoError(t, d.AddEvidence("a", "b"))
	assert.Equal(t, KindValidation, KindOf(d.AddEvidence("")))
	extra := make([]string, MaxEvidence-1)
	for i := range extra {
		extra[i] = "upload"
	}
	assert.Equal(t, KindValidation, KindOf(d.AddEvidence(extra...)))
	assert.Len(t, d.Evidence, 2)
}
