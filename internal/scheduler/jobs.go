package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/magicparents/carebook/internal/availability"
	"github.com/magicparents/carebook/internal/pkg/clock"
	"github.com/magicparents/carebook/internal/pkg/slottime"
)

// Job is one unit of background work. Runs must tolerate overlapping with
// request traffic and with another run of the same job on another instance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Advancer moves bookings along the time driven part of their lifecycle.
type Advancer interface {
	PromoteDue(ctx context.Context) (int, error)
	CompleteDue(ctx context.Context) (int, error)
}

// Roller recurs past availability forward.
type Roller interface {
	RollForward(ctx context.Context, before time.Time) (availability.RollResult, error)
}

type promoteJob struct {
	ledger Advancer
	logger *zap.Logger
}

// NewPromoteJob returns the pass that moves confirmed bookings to ongoing.
func NewPromoteJob(ledger Advancer, logger *zap.Logger) Job {
	return &promoteJob{ledger: ledger, logger: logger}
}

func (j *promoteJob) Name() string { return "promote" }

func (j *promoteJob) Run(ctx context.Context) error {
	n, err := j.ledger.PromoteDue(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		j.logger.Info("bookings promoted to ongoing", zap.Int("count", n))
	}
	return nil
}

type completeJob struct {
	ledger Advancer
	logger *zap.Logger
}

// NewCompleteJob returns the pass that moves ended bookings to completed.
func NewCompleteJob(ledger Advancer, logger *zap.Logger) Job {
	return &completeJob{ledger: ledger, logger: logger}
}

func (j *completeJob) Name() string { return "complete" }

func (j *completeJob) Run(ctx context.Context) error {
	n, err := j.ledger.CompleteDue(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		j.logger.Info("bookings completed", zap.Int("count", n))
	}
	return nil
}

// MaxRollPasses bounds one roll-forward run. Each pass moves every stale slot
// one week, so this covers a gap of about a year.
const MaxRollPasses = 53

type rollForwardJob struct {
	slots  Roller
	clock  clock.Clock
	loc    *time.Location
	logger *zap.Logger
}

// NewRollForwardJob returns the job that recurs availability dated before
// today seven days forward until none is left behind.
func NewRollForwardJob(slots Roller, clk clock.Clock, loc *time.Location, logger *zap.Logger) Job {
	return &rollForwardJob{slots: slots, clock: clk, loc: loc, logger: logger}
}

func (j *rollForwardJob) Name() string { return "rollforward" }

func (j *rollForwardJob) Run(ctx context.Context) error {
	today := slottime.DateIn(j.clock.Now(), j.loc)

	var total availability.RollResult
	for pass := 1; pass <= MaxRollPasses; pass++ {
		res, err := j.slots.RollForward(ctx, today)
		if err != nil {
			return err
		}
		if res.Rolled == 0 {
			if total.Rolled > 0 {
				j.logger.Info("availability rolled forward",
					zap.String("today", today.Format(slottime.DateLayout)),
					zap.Int("rolled", total.Rolled),
					zap.Int("inserted", total.Inserted),
					zap.Int("passes", pass-1),
				)
			}
			return nil
		}
		total.Rolled += res.Rolled
		total.Inserted += res.Inserted
	}
	return fmt.Errorf("availability still behind %s after %d passes", today.Format(slottime.DateLayout), MaxRollPasses)
}
