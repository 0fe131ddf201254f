package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/magicparents/carebook/internal/availability"
	"github.com/magicparents/carebook/internal/pkg/clock"
	"github.com/magicparents/carebook/internal/pkg/slottime"
)

const providerID = "11111111-1111-1111-1111-111111111111"

type fakeAdvancer struct {
	promoted, completed int
	err                 error
}

func (f *fakeAdvancer) PromoteDue(context.Context) (int, error) {
	return f.promoted, f.err
}

func (f *fakeAdvancer) CompleteDue(context.Context) (int, error) {
	return f.completed, f.err
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := slottime.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestStatusJobs(t *testing.T) {
	ctx := context.Background()
	adv := &fakeAdvancer{promoted: 2, completed: 1}

	require.NoError(t, NewPromoteJob(adv, zap.NewNop()).Run(ctx))
	require.NoError(t, NewCompleteJob(adv, zap.NewNop()).Run(ctx))

	adv.err = errors.New("db down")
	assert.Error(t, NewPromoteJob(adv, zap.NewNop()).Run(ctx))
	assert.Error(t, NewCompleteJob(adv, zap.NewNop()).Run(ctx))
}

// Scenario D: a slot dated yesterday recurs exactly one week after its date.
func TestRollForwardYesterday(t *testing.T) {
	ctx := context.Background()
	repo := availability.NewMemoryRepository()
	_, err := repo.ReplaceDay(ctx, providerID, mustDate(t, "2025-06-01"), []slottime.TimeOfDay{slottime.At(9, 0)})
	require.NoError(t, err)

	clk := clock.NewFixed(time.Date(2025, 6, 2, 0, 5, 0, 0, time.UTC))
	job := NewRollForwardJob(repo, clk, time.UTC, zap.NewNop())
	require.NoError(t, job.Run(ctx))

	hours, err := repo.HoursForDay(ctx, providerID, mustDate(t, "2025-06-08"))
	require.NoError(t, err)
	assert.Equal(t, []slottime.TimeOfDay{slottime.At(9, 0)}, hours)

	history, err := repo.HoursForDay(ctx, providerID, mustDate(t, "2025-06-01"))
	require.NoError(t, err)
	assert.Len(t, history, 1, "the original slot is kept")

	// Running again changes nothing.
	before := repo.Slots()
	require.NoError(t, job.Run(ctx))
	assert.Equal(t, before, repo.Slots())
}

func TestRollForwardCatchesUpAfterDowntime(t *testing.T) {
	ctx := context.Background()
	repo := availability.NewMemoryRepository()
	_, err := repo.ReplaceDay(ctx, providerID, mustDate(t, "2025-04-01"), []slottime.TimeOfDay{slottime.At(9, 0), slottime.At(10, 0)})
	require.NoError(t, err)

	clk := clock.NewFixed(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, NewRollForwardJob(repo, clk, time.UTC, zap.NewNop()).Run(ctx))

	days, err := repo.DistinctDays(ctx, providerID)
	require.NoError(t, err)
	latest := days[len(days)-1]
	assert.Equal(t, mustDate(t, "2025-06-03"), latest)
	assert.False(t, latest.Before(mustDate(t, "2025-06-02")))
}

func TestRollForwardUsesLocalToday(t *testing.T) {
	ctx := context.Background()
	repo := availability.NewMemoryRepository()
	_, err := repo.ReplaceDay(ctx, providerID, mustDate(t, "2025-06-01"), []slottime.TimeOfDay{slottime.At(9, 0)})
	require.NoError(t, err)

	// 2025-06-01 20:00 UTC is already 2025-06-02 in UTC+8.
	clk := clock.NewFixed(time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC))
	require.NoError(t, NewRollForwardJob(repo, clk, time.FixedZone("UTC+8", 8*3600), zap.NewNop()).Run(ctx))

	hours, err := repo.HoursForDay(ctx, providerID, mustDate(t, "2025-06-08"))
	require.NoError(t, err)
	assert.Len(t, hours, 1)
}

type stuckRoller struct{}

func (stuckRoller) RollForward(context.Context, time.Time) (availability.RollResult, error) {
	return availability.RollResult{Rolled: 1}, nil
}

func TestRollForwardIsBounded(t *testing.T) {
	job := NewRollForwardJob(stuckRoller{}, clock.Real{}, time.UTC, zap.NewNop())
	assert.Error(t, job.Run(context.Background()))
}

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestRunOnceStopsAtFirstFailure(t *testing.T) {
	a := &countingJob{name: "a", err: errors.New("boom")}
	b := &countingJob{name: "b"}

	err := RunOnce(context.Background(), zap.NewNop(), a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: boom")
	assert.EqualValues(t, 0, b.runs.Load())
}

func TestSchedulerRunsJobs(t *testing.T) {
	job := &countingJob{name: "tick"}
	s := New(zap.NewNop())
	require.NoError(t, s.Every(time.Second, job))

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestSchedulerRejectsSubSecondInterval(t *testing.T) {
	s := New(zap.NewNop())
	assert.Error(t, s.Every(100*time.Millisecond, &countingJob{name: "fast"}))
}
