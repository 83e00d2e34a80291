package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// ExportConfig holds the collector settings shared by all signals
type ExportConfig struct {
	CollectorEndpoint string
	Insecure          bool
	ServiceName       string
	ServiceVersion    string
	Environment       string
}

// TracingConfig holds trace export configuration
type TracingConfig struct {
	ExportConfig
	Enabled       bool
	SamplingRatio float64
}

// TracerOption customises NewTracerProvider
type TracerOption func(*tracerOptions)

type tracerOptions struct {
	exporter sdktrace.SpanExporter
}

// WithSpanExporter replaces the OTLP exporter, e.g. with an in-memory one
func WithSpanExporter(exporter sdktrace.SpanExporter) TracerOption {
	return func(o *tracerOptions) { o.exporter = exporter }
}

// TracerProvider owns the SDK tracer provider installed as the global one
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	logger   *zap.Logger
}

// NewTracerProvider installs a global tracer provider and the W3C trace
// context propagator. When disabled the global no-op provider stays.
func NewTracerProvider(ctx context.Context, cfg TracingConfig, logger *zap.Logger, opts ...TracerOption) (*TracerProvider, error) {
	tp := &TracerProvider{logger: logger}
	if !cfg.Enabled {
		logger.Info("Tracing disabled, using no-op tracer provider")
		return tp, nil
	}

	var options tracerOptions
	for _, opt := range opts {
		opt(&options)
	}
	exporter := options.exporter
	if exporter == nil {
		exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}
		var err error
		if exporter, err = otlptracegrpc.New(ctx, exporterOpts...); err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	tp.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRatio))),
	)
	otel.SetTracerProvider(tp.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry TracerProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
	)
	return tp, nil
}

// IsEnabled reports whether spans are exported
func (tp *TracerProvider) IsEnabled() bool {
	return tp.provider != nil
}

// ForceFlush exports all finished spans now
func (tp *TracerProvider) ForceFlush(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return tp.provider.ForceFlush(ctx)
}

// Shutdown flushes pending spans and stops the exporter
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return shutdownWithTimeout(ctx, "tracer provider", tp.provider.Shutdown)
}
