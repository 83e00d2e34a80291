// Package telemetry wires OpenTelemetry traces, metrics and logs for the
// settlement engine and exports them over OTLP/gRPC.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

const shutdownTimeout = 10 * time.Second

// ErrMeterNil is returned when a metrics constructor gets no meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// newResource describes this process to the collector
func newResource(serviceName, serviceVersion, environment string) (*resource.Resource, error) {
	if serviceVersion == "" {
		serviceVersion = "dev"
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	}
	if environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentName(environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// shutdownWithTimeout bounds a provider shutdown so a dead collector cannot
// hang process exit
func shutdownWithTimeout(ctx context.Context, what string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return fmt.Errorf("failed to shutdown %s: %w", what, err)
	}
	return nil
}
