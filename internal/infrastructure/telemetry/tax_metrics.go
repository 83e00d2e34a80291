package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

// TaxMetrics counts settlement activity: payment submissions, certificate
// outcomes and reconciliation runs
type TaxMetrics struct {
	submissions       metric.Int64Counter
	certificates      metric.Int64Counter
	reconciles        metric.Int64Counter
	reconcileDuration metric.Float64Histogram
}

// NewTaxMetrics creates the settlement instruments on meter
func NewTaxMetrics(meter metric.Meter) (*TaxMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   TaxMetrics
		err error
	)
	if m.submissions, err = meter.Int64Counter("thaitax_payment_submitted_total",
		metric.WithDescription("Payments submitted through the settlement engine"),
		metric.WithUnit("{payment}")); err != nil {
		return nil, err
	}
	if m.certificates, err = meter.Int64Counter("thaitax_certificate_total",
		metric.WithDescription("Withholding tax certificate attempts by outcome"),
		metric.WithUnit("{certificate}")); err != nil {
		return nil, err
	}
	if m.reconciles, err = meter.Int64Counter("thaitax_reconcile_total",
		metric.WithDescription("Periodic return reconciliations by result"),
		metric.WithUnit("{run}")); err != nil {
		return nil, err
	}
	if m.reconcileDuration, err = meter.Float64Histogram("thaitax_reconcile_duration_seconds",
		metric.WithDescription("Periodic return reconciliation latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(JobDurationBuckets...)); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordSubmission counts a submitted payment
func (m *TaxMetrics) RecordSubmission(ctx context.Context, companyID uuid.UUID, direction string, withTaxes bool) {
	m.submissions.Add(ctx, 1, metric.WithAttributes(
		AttrCompanyID.String(companyID.String()),
		AttrDirection.String(direction),
		AttrWithTaxes.Bool(withTaxes),
	))
}

// RecordCertificate counts a certificate outcome
func (m *TaxMetrics) RecordCertificate(ctx context.Context, companyID uuid.UUID, outcome string) {
	m.certificates.Add(ctx, 1, metric.WithAttributes(
		AttrCompanyID.String(companyID.String()),
		AttrOutcome.String(outcome),
	))
}

// RecordReconcile counts a reconciliation run and records its latency
func (m *TaxMetrics) RecordReconcile(ctx context.Context, companyID uuid.UUID, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	attrs := metric.WithAttributes(AttrCompanyID.String(companyID.String()), AttrResult.String(result))
	m.reconciles.Add(ctx, 1, attrs)
	m.reconcileDuration.Record(ctx, duration.Seconds(), attrs)
}
