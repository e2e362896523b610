package pg

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/olyamironova/escrow-engine/internal/core"
	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/escrow?sslmode=disable": "pgx5://u:p@db:5432/escrow?sslmode=disable",
		"postgresql://db/escrow":                        "pgx5://db/escrow",
		"pgx5://db/escrow":                              "pgx5://db/escrow",
	}
	for in, want := range tests {
		assert.Equal(t, want, migrateURL(in))
	}
}

func TestWhereBuilder(t *testing.T) {
	var w where
	w.eq("asset", "USDT")
	w.eq("fiat", "")
	w.eq("status", "ACTIVE")
	assert.Equal(t, " WHERE asset = $1 AND status = $2", w.sql())
	assert.Equal(t, []any{"USDT", "ACTIVE"}, w.args)
	assert.Equal(t, " LIMIT 5", w.limit(5))
	assert.Empty(t, w.limit(0))
}

// newTestRepo connects to ESCROW_TEST_DATABASE_URL on a freshly migrated schema.
func newTestRepo(t *testing.T) *PgRepo {
	t.Helper()
	dsn := os.Getenv("ESCROW_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ESCROW_TEST_DATABASE_URL not set")
	}
	require.NoError(t, MigrateDown(dsn))
	require.NoError(t, MigrateUp(dsn))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	repo, err := NewPgRepo(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close(context.Background()) })
	return repo
}

func TestPgTradeLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	eng := core.NewEngine(repo, nil)

	admin := domain.Caller{AccountID: "admin", Admin: true}
	seller := domain.Caller{AccountID: "seller"}
	buyer := domain.Caller{AccountID: "buyer"}
	for _, c := range []domain.Caller{admin, seller, buyer} {
		_, err := eng.OpenAccount(ctx, c)
		require.NoError(t, err)
	}
	_, err := eng.Deposit(ctx, admin, seller.AccountID, "USDT", decimal.NewFromInt(100))
	require.NoError(t, err)

	offer, err := eng.CreateOffer(ctx, seller, core.OfferRequest{
		Side: domain.Sell, Asset: "USDT", Fiat: "RUB", Price: decimal.RequireFromString("90.25"),
		Amount: decimal.NewFromInt(100), PaymentMethod: "sbp",
	})
	require.NoError(t, err)

	tr, err := eng.CreateTrade(ctx, buyer, offer.ID, decimal.NewFromInt(60))
	require.NoError(t, err)
	_, err = eng.MarkPaid(ctx, buyer, tr.ID)
	require.NoError(t, err)
	tr, err = eng.ConfirmCompletion(ctx, seller, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeCompleted, tr.Status)

	got, err := repo.GetTrade(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeCompleted, got.Status)
	require.NotNil(t, got.PaidAt)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("90.25")))

	bals, err := repo.ListBalances(ctx, buyer.AccountID)
	require.NoError(t, err)
	require.Len(t, bals, 1)
	assert.True(t, bals[0].Total.Equal(decimal.NewFromInt(60)))

	o, err := repo.GetOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.True(t, o.Remaining.Equal(decimal.NewFromInt(40)))

	m := &domain.ChatMessage{ID: "m1", TradeID: tr.ID, SenderID: buyer.AccountID, Text: "thanks", CreatedAt: time.Now()}
	require.NoError(t, repo.AppendMessage(ctx, m))
	assert.Positive(t, m.Seq)
	msgs, err := repo.ListMessages(ctx, tr.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	_, err = repo.GetTrade(ctx, "missing")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestPgConcurrentReservations(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	eng := core.NewEngine(repo, nil)

	admin := domain.Caller{AccountID: "admin", Admin: true}
	seller := domain.Caller{AccountID: "seller"}
	for _, c := range []domain.Caller{admin, seller} {
		_, err := eng.OpenAccount(ctx, c)
		require.NoError(t, err)
	}
	_, err := eng.Deposit(ctx, admin, seller.AccountID, "USDT", decimal.NewFromInt(50))
	require.NoError(t, err)
	offer, err := eng.CreateOffer(ctx, seller, core.OfferRequest{
		Side: domain.Sell, Asset: "USDT", Fiat: "RUB", Price: decimal.NewFromInt(90),
		Amount: decimal.NewFromInt(100), PaymentMethod: "sbp",
	})
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 12; i++ {
		c := domain.Caller{AccountID: fmt.Sprintf("buyer-%d", i)}
		_, err := eng.OpenAccount(ctx, c)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.CreateTrade(ctx, c, offer.ID, decimal.NewFromInt(10)); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// the seller's 50 USDT bound the offer's 100
	assert.Equal(t, 5, ok)
	bals, err := repo.ListBalances(ctx, seller.AccountID)
	require.NoError(t, err)
	require.Len(t, bals, 1)
	assert.True(t, bals[0].Reserved.Equal(decimal.NewFromInt(50)))
}
