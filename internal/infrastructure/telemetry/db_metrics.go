package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds database metrics configuration
type DBMetricsConfig struct {
	SlowQueryThreshold time.Duration // default 200ms
}

// DBMetrics records query counts and latency through a GORM plugin and
// reports connection pool state through observable gauges
type DBMetrics struct {
	queryTotal     metric.Int64Counter
	queryErrors    metric.Int64Counter
	queryDuration  metric.Float64Histogram
	slowQueryTotal metric.Int64Counter
	registration   metric.Registration

	slowThreshold time.Duration
	logger        *zap.Logger
}

// RegisterDBMetrics instruments db and its connection pool
func RegisterDBMetrics(db *gorm.DB, meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	m := &DBMetrics{slowThreshold: cfg.SlowQueryThreshold, logger: logger}
	if m.queryTotal, err = meter.Int64Counter("db_query_total",
		metric.WithDescription("Database statements by operation"),
		metric.WithUnit("{query}")); err != nil {
		return nil, err
	}
	if m.queryErrors, err = meter.Int64Counter("db_query_errors_total",
		metric.WithDescription("Failed database statements by operation"),
		metric.WithUnit("{query}")); err != nil {
		return nil, err
	}
	if m.queryDuration, err = meter.Float64Histogram("db_query_duration_seconds",
		metric.WithDescription("Database statement latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(DBDurationBuckets...)); err != nil {
		return nil, err
	}
	if m.slowQueryTotal, err = meter.Int64Counter("db_slow_query_total",
		metric.WithDescription("Statements slower than the slow query threshold"),
		metric.WithUnit("{query}")); err != nil {
		return nil, err
	}
	if err := m.observePool(meter, sqlDB); err != nil {
		return nil, err
	}

	if err := registerTimedCallbacks(db, "db_metrics", m.record); err != nil {
		return nil, err
	}

	logger.Info("Database metrics registered", zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold))
	return m, nil
}

func (m *DBMetrics) observePool(meter metric.Meter, sqlDB *sql.DB) error {
	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	maxConns, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum open connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Connection requests that had to wait"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return err
	}

	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(conns, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(conns, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(conns, int64(stats.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
		o.ObserveInt64(maxConns, int64(stats.MaxOpenConnections))
		o.ObserveInt64(waits, stats.WaitCount)
		return nil
	}, conns, maxConns, waits)
	return err
}

func (m *DBMetrics) record(db *gorm.DB, operation string, elapsed time.Duration) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	op := metric.WithAttributes(AttrDBOperation.String(operation))
	m.queryTotal.Add(ctx, 1, op)
	m.queryDuration.Record(ctx, elapsed.Seconds(), op)
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		m.queryErrors.Add(ctx, 1, op)
	}
	if elapsed > m.slowThreshold {
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Add(ctx, 1, metric.WithAttributes(
			AttrDBOperation.String(operation),
			AttrDBTable.String(table),
		))
	}
}

// Stop unregisters the pool callback
func (m *DBMetrics) Stop() error {
	if m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}
