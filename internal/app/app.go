package app

import (
	"context"
	"fmt"

	"github.com/olyamironova/escrow-engine/internal/adapter/cache"
	"github.com/olyamironova/escrow-engine/internal/adapter/in_memory"
	"github.com/olyamironova/escrow-engine/internal/adapter/notify"
	"github.com/olyamironova/escrow-engine/internal/adapter/pg"
	"github.com/olyamironova/escrow-engine/internal/config"
	"github.com/olyamironova/escrow-engine/internal/core"
	"github.com/olyamironova/escrow-engine/internal/port"
	"go.uber.org/zap"
)

// App owns the engine and the adapters it was built from.
type App struct {
	Engine *core.Engine

	repo    port.Repository
	closers []func(context.Context)
}

// Build wires storage, cache and notification sinks according to cfg.
// Postgres is used when DATABASE_URL is set, the in-memory store otherwise.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close(context.Background())
		}
	}()

	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := pg.MigrateUp(cfg.DatabaseURL); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		repo, err := pg.NewPgRepo(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.repo = repo
		log.Info("storage", zap.String("backend", "postgres"))
	} else {
		a.repo = in_memory.NewMemoryRepo()
		log.Warn("storage", zap.String("backend", "memory"))
	}
	a.closers = append(a.closers, a.repo.Close)

	c, err := buildCache(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	var sink port.Notifier = notify.NewLogPublisher(log)
	if len(cfg.KafkaBrokers) > 0 {
		kp := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, func(context.Context) { _ = kp.Close() })
		sink = notify.Fanout{kp, sink}
		log.Info("events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	disp := notify.NewDispatcher(sink, log, cfg.NotifyBuffer, cfg.NotifyWorkers)
	// drained before the sinks it writes to are closed
	a.closers = append(a.closers, func(ctx context.Context) {
		if err := disp.Close(ctx); err != nil {
			log.Warn("notification queue not drained", zap.Error(err))
		}
	})

	a.Engine = core.NewEngine(a.repo, c,
		core.WithNotifier(disp),
		core.WithLogger(log.Named("engine")),
		core.WithConfig(cfg.Engine()),
	)
	if err := a.Engine.EnsureFeeAccount(ctx); err != nil {
		return nil, fmt.Errorf("fee account: %w", err)
	}
	ok = true
	return a, nil
}

func buildCache(ctx context.Context, cfg config.Config, a *App) (port.Cache, error) {
	switch cfg.CacheBackend {
	case "redis":
		rc := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) { _ = rc.Close() })
		return rc, nil
	case "ristretto":
		lc, err := cache.NewLocalCache(1024, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) { lc.Close() })
		return lc, nil
	case "memory":
		return in_memory.NewCache(), nil
	default:
		return nil, nil
	}
}

// Close releases adapters in reverse order of construction.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}
