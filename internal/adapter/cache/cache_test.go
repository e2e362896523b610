package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/port"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBook() *domain.OfferBook {
	return &domain.OfferBook{
		Market: "USDT/RUB",
		Sell: []domain.Offer{{
			ID: "o1", OwnerID: "s", Side: domain.Sell, Asset: "USDT", Fiat: "RUB",
			Price: decimal.RequireFromString("90.5"), Remaining: decimal.NewFromInt(10), Status: domain.OfferActive,
		}},
		Buy:       []domain.Offer{},
		Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func exerciseCache(t *testing.T, c port.Cache) {
	t.Helper()
	ctx := context.Background()

	ob, err := c.GetOfferBook(ctx, "USDT/RUB")
	require.NoError(t, err)
	assert.Nil(t, ob)

	require.NoError(t, c.SetOfferBook(ctx, "USDT/RUB", sampleBook()))
	ob, err = c.GetOfferBook(ctx, "USDT/RUB")
	require.NoError(t, err)
	require.NotNil(t, ob)
	require.Len(t, ob.Sell, 1)
	assert.Equal(t, "o1", ob.Sell[0].ID)
	assert.True(t, ob.Sell[0].Price.Equal(decimal.RequireFromString("90.5")))

	require.NoError(t, c.Invalidate(ctx, "USDT/RUB"))
	ob, err = c.GetOfferBook(ctx, "USDT/RUB")
	require.NoError(t, err)
	assert.Nil(t, ob)
}

func TestLocalCache(t *testing.T) {
	c, err := NewLocalCache(100, time.Minute)
	require.NoError(t, err)
	defer c.Close()
	exerciseCache(t, c)
}

func TestLocalCacheReturnsCopies(t *testing.T) {
	c, err := NewLocalCache(100, time.Minute)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.SetOfferBook(ctx, "USDT/RUB", sampleBook()))
	ob, err := c.GetOfferBook(ctx, "USDT/RUB")
	require.NoError(t, err)
	ob.Sell[0].ID = "mutated"

	again, err := c.GetOfferBook(ctx, "USDT/RUB")
	require.NoError(t, err)
	assert.Equal(t, "o1", again.Sell[0].ID)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("ESCROW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ESCROW_TEST_REDIS_ADDR not set")
	}
	c := NewRedisCache(addr, "", 0, time.Minute)
	defer c.Close()
	require.NoError(t, c.Ping(context.Background()))
	exerciseCache(t, c)
}
