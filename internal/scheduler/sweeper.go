package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Expirer is the engine operation the sweeper drives.
type Expirer interface {
	ExpireStaleTrades(ctx context.Context) (int, error)
}

// Sweeper periodically cancels abandoned trades on a cron schedule.
// Runs never overlap; a tick that finds the previous run active is skipped.
type Sweeper struct {
	cron    *cron.Cron
	target  Expirer
	log     *zap.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSweeper(schedule string, target Expirer, log *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{
		target:  target,
		log:     log.Named("sweeper"),
		timeout: 30 * time.Second,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("scheduler: schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts scheduling, cancels a run in progress and waits for it to return.
func (s *Sweeper) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce performs one sweep synchronously.
func (s *Sweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	start := time.Now()
	n, err := s.target.ExpireStaleTrades(ctx)
	if err != nil {
		s.log.Error("sweep failed", zap.Int("expired", n), zap.Error(err))
		return
	}
	s.log.Debug("sweep done", zap.Int("expired", n), zap.Duration("took", time.Since(start)))
}
