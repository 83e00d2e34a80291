package tax

import (
	"context"
	"fmt"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"go.uber.org/zap"
)

// CertificateLifecycleHandler schedules reconciliation of the period a
// certificate belongs to whenever one is issued or cancelled
type CertificateLifecycleHandler struct {
	scheduler tax.ReconcileScheduler
	logger    *zap.Logger
}

// NewCertificateLifecycleHandler creates a new CertificateLifecycleHandler
func NewCertificateLifecycleHandler(scheduler tax.ReconcileScheduler, logger *zap.Logger) *CertificateLifecycleHandler {
	return &CertificateLifecycleHandler{scheduler: scheduler, logger: logger}
}

var _ shared.EventHandler = (*CertificateLifecycleHandler)(nil)

// EventTypes returns the event types this handler is interested in
func (h *CertificateLifecycleHandler) EventTypes() []string {
	return []string{
		tax.EventTypeCertificateIssued,
		tax.EventTypeCertificateCancelled,
	}
}

// Handle enqueues a reconcile job for the event's period
func (h *CertificateLifecycleHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	period, ok := tax.PeriodOfEvent(event)
	if !ok {
		h.logger.Warn("unexpected event type in certificate lifecycle handler",
			zap.String("event_type", event.EventType()),
		)
		return nil
	}

	job := tax.NewReconcilePeriodJob(event.CompanyID(), period)
	if err := h.scheduler.Schedule(ctx, job); err != nil {
		h.logger.Error("failed to schedule periodic return reconciliation",
			zap.String("event_id", event.EventID().String()),
			zap.String("period", period.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}

	h.logger.Debug("periodic return reconciliation scheduled",
		zap.String("job_id", job.ID.String()),
		zap.String("event_type", event.EventType()),
		zap.String("period", period.String()),
	)
	return nil
}
