package tax

import (
	"context"
	"time"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/erp/thaitax/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repositories groups the persistence ports the settlement services use
type Repositories struct {
	Companies    tax.CompanyRepository
	Accounts     tax.AccountRepository
	Invoices     tax.InvoiceRepository
	Payments     tax.PaymentRepository
	Ledger       tax.LedgerRepository
	Certificates tax.CertificateRepository
	Returns      tax.PeriodicReturnRepository
}

// Metrics receives settlement counters. A nil Metrics records nothing.
type Metrics interface {
	RecordSubmission(ctx context.Context, companyID uuid.UUID, direction string, withTaxes bool)
	RecordCertificate(ctx context.Context, companyID uuid.UUID, outcome string)
	RecordReconcile(ctx context.Context, companyID uuid.UUID, duration time.Duration, err error)
}

// Certificate outcomes reported to Metrics
const (
	CertificateOutcomeIssued      = "issued"
	CertificateOutcomeNotEligible = "not_eligible"
	CertificateOutcomeDuplicate   = "duplicate"
	CertificateOutcomeFailed      = "failed"
	CertificateOutcomeCancelled   = "cancelled"
)

type noopMetrics struct{}

func (noopMetrics) RecordSubmission(context.Context, uuid.UUID, string, bool)        {}
func (noopMetrics) RecordCertificate(context.Context, uuid.UUID, string)             {}
func (noopMetrics) RecordReconcile(context.Context, uuid.UUID, time.Duration, error) {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

// publishAfterCommit drains the pending events of the given aggregates and
// hands them to the publisher once the surrounding transaction commits
func publishAfterCommit(ctx context.Context, tx shared.Transactor, publisher shared.EventPublisher, logger *zap.Logger, aggregates ...shared.AggregateRoot) {
	events := make([]shared.DomainEvent, 0)
	for _, agg := range aggregates {
		events = append(events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
	if len(events) == 0 || publisher == nil {
		return
	}
	tx.AfterCommit(ctx, func(ctx context.Context) {
		if err := publisher.Publish(ctx, events...); err != nil {
			logger.Error("failed to publish domain events",
				zap.Int("count", len(events)),
				zap.Error(err),
			)
		}
	})
}

var _ Metrics = (*telemetry.TaxMetrics)(nil)
