package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/thaitax/internal/domain/tax"
	"go.uber.org/zap"
)

// QueueConfig holds reconcile queue configuration
type QueueConfig struct {
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultQueueConfig returns default queue configuration
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Workers:       2,
		QueueSize:     256,
		JobTimeout:    2 * time.Minute,
		RetryAttempts: 5,
		RetryDelay:    10 * time.Second,
	}
}

func (c QueueConfig) validate() error {
	if c.Workers < 1 || c.QueueSize < 1 || c.JobTimeout <= 0 || c.RetryAttempts < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidQueueConfig, c)
	}
	return nil
}

// QueueStats counts jobs by outcome since the queue was created
type QueueStats struct {
	Scheduled int64
	Succeeded int64
	Retried   int64
	Abandoned int64
	Dropped   int64
}

// ReconcileQueue runs periodic return reconcile jobs on a worker pool.
// A failed job is retried after RetryDelay until RetryAttempts is used up.
// Jobs still queued at Stop are drained before the workers exit.
type ReconcileQueue struct {
	config   QueueConfig
	executor tax.ReconcileExecutor
	logger   *zap.Logger

	jobs      chan tax.ReconcilePeriodJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	retries   map[*time.Timer]struct{}

	scheduled atomic.Int64
	succeeded atomic.Int64
	retried   atomic.Int64
	abandoned atomic.Int64
	dropped   atomic.Int64
}

// NewReconcileQueue creates a new reconcile queue
func NewReconcileQueue(config QueueConfig, executor tax.ReconcileExecutor, logger *zap.Logger) (*ReconcileQueue, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &ReconcileQueue{
		config:   config,
		executor: executor,
		logger:   logger,
		retries:  make(map[*time.Timer]struct{}),
	}, nil
}

var _ tax.ReconcileScheduler = (*ReconcileQueue)(nil)

// Start starts the worker pool
func (q *ReconcileQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return nil
	}
	q.isRunning = true
	q.jobs = make(chan tax.ReconcilePeriodJob, q.config.QueueSize)

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = cancel

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i, q.jobs)
	}

	q.logger.Info("Reconcile queue started",
		zap.Int("workers", q.config.Workers),
		zap.Int("queue_size", q.config.QueueSize),
		zap.Duration("job_timeout", q.config.JobTimeout),
	)
	return nil
}

// Stop stops accepting jobs, drains the queue and waits for the workers.
// Pending retries are discarded. When ctx expires first, in-flight jobs are
// cancelled.
func (q *ReconcileQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	for timer := range q.retries {
		if timer.Stop() {
			q.dropped.Add(1)
		}
	}
	clear(q.retries)
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		stats := q.Stats()
		q.logger.Info("Reconcile queue stopped gracefully",
			zap.Int64("succeeded", stats.Succeeded),
			zap.Int64("abandoned", stats.Abandoned),
			zap.Int64("dropped", stats.Dropped),
		)
		return nil
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn("Reconcile queue stop timed out")
		return ctx.Err()
	}
}

// Schedule enqueues a job without blocking
func (q *ReconcileQueue) Schedule(ctx context.Context, job tax.ReconcilePeriodJob) error {
	if err := q.enqueue(job); err != nil {
		return err
	}
	q.scheduled.Add(1)
	q.logger.Debug("Reconcile job scheduled",
		zap.String("job_id", job.ID.String()),
		zap.String("company_id", job.CompanyID.String()),
		zap.String("period", job.Period.String()),
	)
	return nil
}

// Stats returns a snapshot of the job counters
func (q *ReconcileQueue) Stats() QueueStats {
	return QueueStats{
		Scheduled: q.scheduled.Load(),
		Succeeded: q.succeeded.Load(),
		Retried:   q.retried.Load(),
		Abandoned: q.abandoned.Load(),
		Dropped:   q.dropped.Load(),
	}
}

// enqueue holds mu so a send never races with Stop closing the channel
func (q *ReconcileQueue) enqueue(job tax.ReconcilePeriodJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.isRunning {
		return ErrQueueStopped
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *ReconcileQueue) worker(ctx context.Context, workerID int, jobs <-chan tax.ReconcilePeriodJob) {
	defer q.wg.Done()

	q.logger.Debug("Worker started", zap.Int("worker_id", workerID))
	for job := range jobs {
		q.processJob(ctx, job, workerID)
	}
	q.logger.Debug("Job channel closed", zap.Int("worker_id", workerID))
}

func (q *ReconcileQueue) processJob(ctx context.Context, job tax.ReconcilePeriodJob, workerID int) {
	jobCtx, cancel := context.WithTimeout(ctx, q.config.JobTimeout)
	defer cancel()

	start := time.Now()
	err := q.execute(jobCtx, job)
	if err == nil {
		q.succeeded.Add(1)
		q.logger.Debug("Reconcile job completed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}

	fields := []zap.Field{
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("company_id", job.CompanyID.String()),
		zap.String("period", job.Period.String()),
		zap.Int("attempt", job.Attempt),
		zap.Error(err),
	}
	if job.Attempt >= q.config.RetryAttempts {
		q.abandoned.Add(1)
		q.logger.Error("Reconcile job abandoned after retries", fields...)
		return
	}
	q.logger.Warn("Reconcile job failed, scheduling retry", fields...)
	job.Attempt++
	q.retryLater(job)
}

// execute runs the executor, turning a panic into an error
func (q *ReconcileQueue) execute(ctx context.Context, job tax.ReconcilePeriodJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reconcile job panicked: %v", r)
		}
	}()
	return q.executor.Execute(ctx, job)
}

func (q *ReconcileQueue) retryLater(job tax.ReconcilePeriodJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.isRunning {
		q.dropped.Add(1)
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(q.config.RetryDelay, func() {
		q.mu.Lock()
		delete(q.retries, timer)
		q.mu.Unlock()

		if err := q.enqueue(job); err != nil {
			q.dropped.Add(1)
			q.logger.Error("Failed to re-queue reconcile job",
				zap.String("job_id", job.ID.String()),
				zap.Int("attempt", job.Attempt),
				zap.Error(err),
			)
			return
		}
		q.retried.Add(1)
	})
	q.retries[timer] = struct{}{}
}
