package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "escrowctl",
	Short: "Operator tooling for the escrow engine",
	Long: `escrowctl runs maintenance tasks against an escrow engine deployment:
schema migrations, session tokens for operators and one-off sweeps of
abandoned trades. Settings are read from the environment and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

// Execute runs the command tree; called once from main.
func Execute() error {
	return rootCmd.Execute()
}
