package tax

import (
	"context"

	"github.com/google/uuid"
)

// ReconcilePeriodJob asks the background reconciler to rebuild the periodic
// returns of one company period
type ReconcilePeriodJob struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Period    TaxPeriod `json:"period"`
	Attempt   int       `json:"attempt"`
}

// NewReconcilePeriodJob creates a first-attempt job
func NewReconcilePeriodJob(companyID uuid.UUID, period TaxPeriod) ReconcilePeriodJob {
	return ReconcilePeriodJob{
		ID:        uuid.New(),
		CompanyID: companyID,
		Period:    period,
	}
}

// ReconcileScheduler accepts jobs for at-least-once background execution
type ReconcileScheduler interface {
	Schedule(ctx context.Context, job ReconcilePeriodJob) error
}

// ReconcileExecutor runs one job. Returning an error makes the queue retry it.
type ReconcileExecutor interface {
	Execute(ctx context.Context, job ReconcilePeriodJob) error
}

// OpenPeriod names a company period that still has an unfiled return
type OpenPeriod struct {
	CompanyID uuid.UUID
	Period    TaxPeriod
}
