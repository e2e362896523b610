package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeStatusTransitions(t *testing.T) {
	all := []TradeStatus{TradeInit, TradePending, TradeCompleted, TradeCancelled, TradeDisputed}
	legal := map[[2]TradeStatus]bool{
		{TradeInit, TradePending}:       true,
		{TradeInit, TradeCancelled}:     true,
		{TradePending, TradeCompleted}:  true,
		{TradePending, TradeCancelled}:  true,
		{TradePending, TradeDisputed}:   true,
		{TradeDisputed, TradeCompleted}: true,
		{TradeDisputed, TradeCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]TradeStatus{from, to}], from.CanTransition(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, TradeCompleted.Terminal())
	assert.True(t, TradeCancelled.Terminal())
	assert.False(t, TradeDisputed.Terminal())
	assert.False(t, TradeStatus("PAID").Valid())
}

func TestTradeTransitionStampsTimes(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tr := &Trade{ID: "t1", Status: TradeInit}

	require.NoError(t, tr.Transition(TradePending, now))
	require.NotNil(t, tr.PaidAt)
	assert.Equal(t, now, *tr.PaidAt)

	err := tr.Transition(TradeInit, now)
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.Equal(t, TradePending, tr.Status)

	later := now.Add(time.Minute)
	require.NoError(t, tr.Transition(TradeCompleted, later))
	require.NotNil(t, tr.CompletedAt)
	assert.Equal(t, later, *tr.CompletedAt)
	assert.Equal(t, now, *tr.PaidAt)
}

func TestTradeParties(t *testing.T) {
	tr := &Trade{BuyerID: "b", SellerID: "s", Amount: decimal.NewFromInt(3), Price: decimal.RequireFromString("90.5")}
	assert.True(t, tr.IsParty("b"))
	assert.False(t, tr.IsParty("x"))
	assert.Equal(t, "s", tr.Counterparty("b"))
	assert.Equal(t, "b", tr.Counterparty("s"))
	assert.True(t, tr.FiatAmount().Equal(decimal.RequireFromString("271.5")))

	sell := &Offer{OwnerID: "o", Side: Sell}
	buyer, seller := sell.Parties("t")
	assert.Equal(t, []string{"t", "o"}, []string{buyer, seller})
	buy := &Offer{OwnerID: "o", Side: Buy}
	buyer, seller = buy.Parties("t")
	assert.Equal(t, []string{"o", "t"}, []string{buyer, seller})
}
