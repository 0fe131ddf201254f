package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/magicparents/carebook/internal/app"
	"github.com/magicparents/carebook/internal/scheduler"
)

func newTickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick [job...]",
		Short: "Run background jobs once (promote, complete, rollforward; default all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := connectDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			container := app.NewContainer(cfg, pool, log, nil)
			defer container.Close() //nolint:errcheck

			jobs, err := selectJobs(container.Jobs(), args)
			if err != nil {
				return err
			}
			return scheduler.RunOnce(ctx, log, jobs...)
		},
	}
	return cmd
}

// selectJobs picks the named jobs, or every job in a fixed order when names is empty.
func selectJobs(all map[string]scheduler.Job, names []string) ([]scheduler.Job, error) {
	if len(names) == 0 {
		names = []string{"rollforward", "promote", "complete"}
	}

	jobs := make([]scheduler.Job, 0, len(names))
	for _, name := range names {
		job, ok := all[name]
		if !ok {
			known := make([]string, 0, len(all))
			for k := range all {
				known = append(known, k)
			}
			sort.Strings(known)
			return nil, fmt.Errorf("unknown job %q (known: %v)", name, known)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
