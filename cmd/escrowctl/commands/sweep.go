package commands

import (
	"context"
	"fmt"

	"github.com/olyamironova/escrow-engine/internal/app"
	"github.com/olyamironova/escrow-engine/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Cancel trades left unpaid past INIT_TRADE_TIMEOUT",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := cfg.Logger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := app.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		n, err := a.Engine.ExpireStaleTrades(ctx)
		if err != nil {
			logger.Error("sweep failed", zap.Int("expired", n), zap.Error(err))
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "expired %d trade(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
