// Package scheduler runs the periodic booking and availability maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs jobs on fixed intervals. A job whose previous run is still
// in progress skips that tick.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
}

func New(logger *zap.Logger) *Scheduler {
	l := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		logger: logger,
		ctx:    context.Background(),
	}
}

// Every schedules job to run once per interval.
func (s *Scheduler) Every(interval time.Duration, job Job) error {
	if interval < time.Second {
		return fmt.Errorf("job %s: interval %s is below one second", job.Name(), interval)
	}
	if _, err := s.cron.AddFunc("@every "+interval.String(), func() { s.run(job) }); err != nil {
		return fmt.Errorf("schedule job %s: %w", job.Name(), err)
	}
	s.logger.Info("job scheduled", zap.String("job", job.Name()), zap.Duration("every", interval))
	return nil
}

// Start begins running jobs. ctx is passed to every run.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
}

// Stop prevents new runs and waits for running ones or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stopped before jobs finished")
	}
}

func (s *Scheduler) run(job Job) {
	if err := RunOnce(s.ctx, s.logger, job); err != nil {
		s.logger.Error("job failed", zap.String("job", job.Name()), zap.Error(err))
	}
}

// RunOnce runs jobs sequentially, stopping at the first failure.
func RunOnce(ctx context.Context, logger *zap.Logger, jobs ...Job) error {
	for _, job := range jobs {
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			return fmt.Errorf("%s: %w", job.Name(), err)
		}
		logger.Debug("job finished", zap.String("job", job.Name()), zap.Duration("took", time.Since(start)))
	}
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
