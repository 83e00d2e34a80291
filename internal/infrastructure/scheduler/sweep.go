package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/thaitax/internal/domain/tax"
	"go.uber.org/zap"
)

// OpenPeriodSource lists company periods that still have an open return
type OpenPeriodSource interface {
	FindOpenPeriods(ctx context.Context) ([]tax.OpenPeriod, error)
}

// PeriodSweeper periodically schedules a reconcile job for every open
// return period. It recovers jobs lost when the process stopped between a
// certificate commit and its queued reconciliation.
type PeriodSweeper struct {
	interval  time.Duration
	source    OpenPeriodSource
	scheduler tax.ReconcileScheduler
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewPeriodSweeper creates a new sweeper
func NewPeriodSweeper(interval time.Duration, source OpenPeriodSource, scheduler tax.ReconcileScheduler, logger *zap.Logger) *PeriodSweeper {
	return &PeriodSweeper{
		interval:  interval,
		source:    source,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Start runs one sweep immediately and then one per interval
func (s *PeriodSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if s.interval <= 0 {
		s.logger.Info("Period sweeper disabled")
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Period sweeper started", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the sweeper
func (s *PeriodSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Period sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *PeriodSweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Period sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep schedules one job per open period and returns how many were
// accepted. A full queue ends the sweep early; the next one picks up the rest.
func (s *PeriodSweeper) Sweep(ctx context.Context) (int, error) {
	periods, err := s.source.FindOpenPeriods(ctx)
	if err != nil {
		return 0, err
	}

	scheduled := 0
	for _, p := range periods {
		job := tax.NewReconcilePeriodJob(p.CompanyID, p.Period)
		if err := s.scheduler.Schedule(ctx, job); err != nil {
			if errors.Is(err, ErrQueueFull) {
				s.logger.Warn("Reconcile queue full, sweep cut short",
					zap.Int("scheduled", scheduled),
					zap.Int("open_periods", len(periods)),
				)
				break
			}
			return scheduled, err
		}
		scheduled++
	}

	if scheduled > 0 {
		s.logger.Debug("Open periods swept", zap.Int("scheduled", scheduled))
	}
	return scheduled, nil
}
