package core_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/olyamironova/escrow-engine/internal/adapter/in_memory"
	"github.com/olyamironova/escrow-engine/internal/core"
	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/metrics"
	"github.com/olyamironova/escrow-engine/internal/port"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyRepo loses the commit race a fixed number of times.
type flakyRepo struct {
	*in_memory.MemoryRepo
	failures atomic.Int32
}

func (r *flakyRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	tx, err := r.MemoryRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &flakyTx{Tx: tx, repo: r}, nil
}

type flakyTx struct {
	port.Tx
	repo *flakyRepo
}

func (tx *flakyTx) Commit(ctx context.Context) error {
	if tx.repo.failures.Add(-1) >= 0 {
		_ = tx.Tx.Rollback(ctx)
		return domain.Conflict(errors.New("serialization failure"), "commit lost race")
	}
	return tx.Tx.Commit(ctx)
}

func TestConflictsAreRetried(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{MemoryRepo: in_memory.NewMemoryRepo()}
	eng := core.NewEngine(repo, nil)

	_, err := eng.OpenAccount(ctx, seller)
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.TxConflicts)
	repo.failures.Store(2)
	b, err := eng.Deposit(ctx, admin, seller.AccountID, "USDT", d("5"))
	require.NoError(t, err)
	assert.True(t, b.Total.Equal(d("5")))
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.TxConflicts))

	sum, err := eng.GetAccount(ctx, seller, "")
	require.NoError(t, err)
	require.Len(t, sum.Balances, 1)
	assert.True(t, sum.Balances[0].Total.Equal(d("5")), "retries must not apply the credit twice")
}

func TestConflictSurfacesAfterRetries(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{MemoryRepo: in_memory.NewMemoryRepo()}
	cfg := core.DefaultConfig()
	cfg.MaxRetries = 1
	eng := core.NewEngine(repo, nil, core.WithConfig(cfg))

	repo.failures.Store(5)
	_, err := eng.OpenAccount(ctx, seller)
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.True(t, domain.Retryable(err))

	_, err = repo.GetAccount(ctx, seller.AccountID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}
