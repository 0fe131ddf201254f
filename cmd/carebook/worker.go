package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/magicparents/carebook/internal/app"
	"github.com/magicparents/carebook/internal/notify"
)

func newWorkerCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume queued notifications and hand them to the sender",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			if cfg.RedisAddr == "" {
				return errors.New("REDIS_ADDR is required for the worker")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := notify.NewWorker(app.QueueRedisOpt(cfg), notify.LogSender{Logger: log}, log, concurrency)
			return w.Run(ctx)
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 5, "number of notifications processed in parallel")
	return cmd
}
