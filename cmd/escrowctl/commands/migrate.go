package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/olyamironova/escrow-engine/internal/adapter/pg"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the Postgres schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := dsnFlag(cmd)
		if err != nil {
			return err
		}
		if err := pg.MigrateUp(dsn); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := dsnFlag(cmd)
		if err != nil {
			return err
		}
		if err := pg.MigrateDown(dsn); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema rolled back")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	migrateCmd.PersistentFlags().String("dsn", "", "Postgres connection string (default $DATABASE_URL)")
}

func dsnFlag(cmd *cobra.Command) (string, error) {
	dsn, _ := cmd.Flags().GetString("dsn")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return "", errors.New("no database: pass --dsn or set DATABASE_URL")
	}
	return dsn, nil
}
