package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticPeriods struct {
	periods []tax.OpenPeriod
	err     error
}

func (s staticPeriods) FindOpenPeriods(ctx context.Context) ([]tax.OpenPeriod, error) {
	return s.periods, s.err
}

type captureScheduler struct {
	mu    sync.Mutex
	jobs  []tax.ReconcilePeriodJob
	limit int
}

func (c *captureScheduler) Schedule(ctx context.Context, job tax.ReconcilePeriodJob) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit > 0 && len(c.jobs) >= c.limit {
		return ErrQueueFull
	}
	c.jobs = append(c.jobs, job)
	return nil
}

func (c *captureScheduler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

func openPeriods(n int) []tax.OpenPeriod {
	periods := make([]tax.OpenPeriod, 0, n)
	for i := range n {
		periods = append(periods, tax.OpenPeriod{
			CompanyID: uuid.New(),
			Period:    tax.TaxPeriod{Year: 2568, Month: i + 1},
		})
	}
	return periods
}

func TestPeriodSweeper_Sweep(t *testing.T) {
	periods := openPeriods(3)
	capture := &captureScheduler{}
	sweeper := NewPeriodSweeper(time.Minute, staticPeriods{periods: periods}, capture, zap.NewNop())

	scheduled, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, scheduled)
	for i, job := range capture.jobs {
		assert.Equal(t, periods[i].CompanyID, job.CompanyID)
		assert.Equal(t, periods[i].Period, job.Period)
		assert.Zero(t, job.Attempt)
	}
}

func TestPeriodSweeper_QueueFullCutsShort(t *testing.T) {
	capture := &captureScheduler{limit: 2}
	sweeper := NewPeriodSweeper(time.Minute, staticPeriods{periods: openPeriods(5)}, capture, zap.NewNop())

	scheduled, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, scheduled)
}

func TestPeriodSweeper_SourceError(t *testing.T) {
	sweeper := NewPeriodSweeper(time.Minute, staticPeriods{err: errors.New("connection refused")}, &captureScheduler{}, zap.NewNop())

	_, err := sweeper.Sweep(context.Background())
	assert.EqualError(t, err, "connection refused")
}

func TestPeriodSweeper_StartSweepsImmediately(t *testing.T) {
	capture := &captureScheduler{}
	sweeper := NewPeriodSweeper(time.Hour, staticPeriods{periods: openPeriods(2)}, capture, zap.NewNop())

	require.NoError(t, sweeper.Start(context.Background()))
	require.Eventually(t, func() bool { return capture.count() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, sweeper.Stop(context.Background()))
}

func TestPeriodSweeper_DisabledWithNonPositiveInterval(t *testing.T) {
	capture := &captureScheduler{}
	sweeper := NewPeriodSweeper(-1, staticPeriods{periods: openPeriods(2)}, capture, zap.NewNop())

	require.NoError(t, sweeper.Start(context.Background()))
	require.NoError(t, sweeper.Stop(context.Background()))
	assert.Zero(t, capture.count())
}

func TestPeriodSweeper_FeedsReconcileQueue(t *testing.T) {
	executor := &recordingExecutor{}
	q := startedQueue(t, testQueueConfig(), executor)
	sweeper := NewPeriodSweeper(time.Hour, staticPeriods{periods: openPeriods(4)}, q, zap.NewNop())

	scheduled, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, scheduled)
	require.Eventually(t, func() bool { return q.Stats().Succeeded == 4 }, time.Second, 5*time.Millisecond)
}
