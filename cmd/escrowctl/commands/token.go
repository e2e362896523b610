package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/olyamironova/escrow-engine/internal/auth"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a session token for an account",
	Long: `Sign a session token with JWT_SECRET. Identity is established elsewhere;
this is meant for operators and local testing.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringP("account", "a", "", "Account id to issue the token for")
	tokenCmd.Flags().Bool("admin", false, "Grant the admin role")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("account")
}

func runToken(cmd *cobra.Command, args []string) error {
	account, _ := cmd.Flags().GetString("account")
	admin, _ := cmd.Flags().GetBool("admin")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	iss, err := auth.NewIssuer(secret, ttl)
	if err != nil {
		return err
	}
	tok, err := iss.Issue(account, admin)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
