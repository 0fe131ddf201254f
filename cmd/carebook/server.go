package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/magicparents/carebook/internal/app"
	"github.com/magicparents/carebook/internal/migrate"
)

func newServerCmd() *cobra.Command {
	var (
		migrateUp    bool
		runScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP API and the background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			// For receiving Ctrl+C / SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := connectDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if migrateUp {
				applied, err := migrate.Up(ctx, pool)
				if err != nil {
					return err
				}
				if len(applied) > 0 {
					log.Info("migrations applied", zap.Strings("files", applied))
				}
			}

			container := app.NewContainer(cfg, pool, log, nil)
			defer container.Close() //nolint:errcheck

			if err := container.Ping(ctx); err != nil {
				log.Warn("redis unreachable", zap.Error(err))
			}

			if runScheduler {
				sched, err := container.NewScheduler()
				if err != nil {
					return err
				}
				sched.Start(ctx)
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					sched.Stop(stopCtx)
				}()
			}

			server := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           container.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("server running", zap.String("addr", cfg.HTTPAddr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
				log.Info("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn("server forced to shutdown", zap.Error(err))
			}

			log.Info("server exited gracefully")
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", false, "run database migrations on startup")
	cmd.Flags().BoolVar(&runScheduler, "scheduler", true, "run the background jobs in this process")
	return cmd
}
