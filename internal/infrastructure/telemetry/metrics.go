package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MetricsConfig holds metric export configuration
type MetricsConfig struct {
	ExportConfig
	Enabled        bool
	ExportInterval time.Duration // default 60s
}

// MeterOption customises NewMeterProvider
type MeterOption func(*meterOptions)

type meterOptions struct {
	reader sdkmetric.Reader
}

// WithMetricReader replaces the periodic OTLP reader, e.g. with a manual one
func WithMetricReader(reader sdkmetric.Reader) MeterOption {
	return func(o *meterOptions) { o.reader = reader }
}

// MeterProvider owns the SDK meter provider installed as the global one
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewMeterProvider installs a global meter provider. When disabled the
// global no-op provider stays.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger, opts ...MeterOption) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger}
	if !cfg.Enabled {
		logger.Info("Metrics disabled, using no-op meter provider")
		return mp, nil
	}

	var options meterOptions
	for _, opt := range opts {
		opt(&options)
	}
	reader := options.reader
	if reader == nil {
		interval := cfg.ExportInterval
		if interval <= 0 {
			interval = 60 * time.Second
		}
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	mp.provider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp.provider)

	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
	)
	return mp, nil
}

// Meter returns a named meter, falling back to the global provider
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled reports whether metrics are exported
func (mp *MeterProvider) IsEnabled() bool {
	return mp.provider != nil
}

// Shutdown flushes pending metrics and stops the reader
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	return shutdownWithTimeout(ctx, "meter provider", mp.provider.Shutdown)
}

// Metric attribute keys
var (
	AttrCompanyID   = attribute.Key("company_id")
	AttrDirection   = attribute.Key("direction")
	AttrWithTaxes   = attribute.Key("with_taxes")
	AttrOutcome     = attribute.Key("outcome")
	AttrResult      = attribute.Key("result")
	AttrDBOperation = attribute.Key("db.operation")
	AttrDBTable     = attribute.Key("db.table")
	AttrDBState     = attribute.Key("db.pool.state")
)

// Histogram bucket boundaries in seconds
var (
	DBDurationBuckets  = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	JobDurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60}
)
