package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (c *countingExpirer) ExpireStaleTrades(ctx context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestSweeperRunsOnSchedule(t *testing.T) {
	target := &countingExpirer{}
	s, err := NewSweeper("@every 1s", target, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return target.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	after := target.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, target.calls.Load())
}

func TestSweeperRunOnceSurvivesErrors(t *testing.T) {
	target := &countingExpirer{err: errors.New("db down")}
	s, err := NewSweeper("@every 1m", target, zap.NewNop())
	require.NoError(t, err)
	s.RunOnce()
	s.RunOnce()
	assert.Equal(t, int32(2), target.calls.Load())
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	_, err := NewSweeper("every minute", &countingExpirer{}, zap.NewNop())
	assert.Error(t, err)
}
