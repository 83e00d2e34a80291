package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds log export configuration
type LogsConfig struct {
	ExportConfig
	Enabled bool
	Level   string // minimum level shipped to the collector
}

// LogsOption customises NewLoggerProvider
type LogsOption func(*logsOptions)

type logsOptions struct {
	exporter sdklog.Exporter
}

// WithLogExporter replaces the OTLP exporter. Records are then exported
// synchronously.
func WithLogExporter(exporter sdklog.Exporter) LogsOption {
	return func(o *logsOptions) { o.exporter = exporter }
}

// LoggerProvider owns the SDK logger provider that zap entries are
// bridged into
type LoggerProvider struct {
	provider *sdklog.LoggerProvider
	config   LogsConfig
}

// NewLoggerProvider installs a global logger provider. logger is only used
// to report setup; it is not yet bridged.
func NewLoggerProvider(ctx context.Context, cfg LogsConfig, logger *zap.Logger, opts ...LogsOption) (*LoggerProvider, error) {
	lp := &LoggerProvider{config: cfg}
	if !cfg.Enabled {
		logger.Info("OTEL logs disabled")
		return lp, nil
	}

	var options logsOptions
	for _, opt := range opts {
		opt(&options)
	}
	var processor sdklog.Processor
	if options.exporter != nil {
		processor = sdklog.NewSimpleProcessor(options.exporter)
	} else {
		exporterOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlploggrpc.WithInsecure())
		}
		exporter, err := otlploggrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
		}
		processor = sdklog.NewBatchProcessor(exporter)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	lp.provider = sdklog.NewLoggerProvider(sdklog.WithResource(res), sdklog.WithProcessor(processor))
	global.SetLoggerProvider(lp.provider)

	logger.Info("OpenTelemetry LoggerProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.String("level", cfg.Level),
	)
	return lp, nil
}

// IsEnabled reports whether logs are exported
func (lp *LoggerProvider) IsEnabled() bool {
	return lp.provider != nil
}

// ZapCore returns a core that ships entries at or above the configured
// level to the collector. Tee it with the console core via logger.New.
// When disabled it returns a no-op core.
func (lp *LoggerProvider) ZapCore() (zapcore.Core, error) {
	if lp.provider == nil {
		return zapcore.NewNopCore(), nil
	}
	level := zapcore.InfoLevel
	if lp.config.Level != "" {
		parsed, err := zapcore.ParseLevel(lp.config.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid OTEL logs level %q: %w", lp.config.Level, err)
		}
		level = parsed
	}
	core := otelzap.NewCore(lp.config.ServiceName, otelzap.WithLoggerProvider(lp.provider))
	return zapcore.NewIncreaseLevelCore(core, level)
}

// Shutdown flushes pending records and stops the exporter
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.provider == nil {
		return nil
	}
	return shutdownWithTimeout(ctx, "logger provider", lp.provider.Shutdown)
}
