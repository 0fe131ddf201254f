package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/magicparents/carebook/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			pool, err := connectDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := migrate.Up(ctx, pool)
			if err != nil {
				return err
			}
			log.Info("migrations applied", zap.Strings("files", applied))
			return nil
		},
	}
}
