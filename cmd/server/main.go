package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olyamironova/escrow-engine/internal/api/grpc"
	"github.com/olyamironova/escrow-engine/internal/api/http"
	"github.com/olyamironova/escrow-engine/internal/app"
	"github.com/olyamironova/escrow-engine/internal/auth"
	"github.com/olyamironova/escrow-engine/internal/config"
	"github.com/olyamironova/escrow-engine/internal/scheduler"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := cfg.Logger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Close(closeCtx)
	}()

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}

	sweeper, err := scheduler.NewSweeper(cfg.SweepSchedule, a.Engine, logger)
	if err != nil {
		return err
	}
	sweeper.Start()

	httpSrv := http.NewHTTPServer(a.Engine, issuer, logger, http.Options{
		CORSOrigin:     cfg.CORSOrigin,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})
	grpcSrv := grpc.NewGRPCServer(a.Engine, issuer, logger)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	errc := make(chan error, 2)
	go func() { errc <- httpSrv.Run(cfg.HTTPAddr) }()
	go func() { errc <- grpcSrv.Serve(lis) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
		if err != nil {
			logger.Error("listener failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if serr := httpSrv.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, context.DeadlineExceeded) {
		logger.Warn("http shutdown", zap.Error(serr))
	}
	grpcSrv.Stop()
	sweeper.Stop(shutdownCtx)
	return err
}
