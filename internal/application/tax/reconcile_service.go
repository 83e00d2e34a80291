package tax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/erp/thaitax/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconcileResult summarises one reconciliation run
type ReconcileResult struct {
	Period       tax.TaxPeriod
	Certificates int
	Rebuilt      int
	Unchanged    int
	SkippedFiled int
}

// ReconcileService keeps periodic returns equal to the issued certificates
// of their period
type ReconcileService struct {
	repos   Repositories
	tx      shared.Transactor
	events  shared.EventPublisher
	metrics Metrics
	logger  *zap.Logger
}

// NewReconcileService creates a new ReconcileService
func NewReconcileService(repos Repositories, tx shared.Transactor, events shared.EventPublisher, metrics Metrics, logger *zap.Logger) *ReconcileService {
	return &ReconcileService{
		repos:   repos,
		tx:      tx,
		events:  events,
		metrics: metricsOrNoop(metrics),
		logger:  logger,
	}
}

var _ tax.ReconcileExecutor = (*ReconcileService)(nil)

// Execute runs a queued job. Failures are wrapped as transient so the queue
// retries them.
func (s *ReconcileService) Execute(ctx context.Context, job tax.ReconcilePeriodJob) error {
	if _, err := s.ReconcilePeriod(ctx, job.CompanyID, job.Period); err != nil {
		return &tax.TransientReconciliationError{Period: job.Period, Err: err}
	}
	return nil
}

// ReconcilePeriod rebuilds every open return of a period from the issued
// certificates. Periods without a return are left alone. Running it twice
// with no certificate change writes nothing the second time.
func (s *ReconcileService) ReconcilePeriod(ctx context.Context, companyID uuid.UUID, period tax.TaxPeriod) (*ReconcileResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconcile", "period",
		telemetry.WithAttribute(telemetry.SpanAttrTaxPeriod, period.String()),
	)
	defer span.End()

	start := time.Now()
	result := &ReconcileResult{Period: period}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		returns, err := s.repos.Returns.FindByPeriod(ctx, companyID, period)
		if err != nil {
			return fmt.Errorf("failed to load periodic returns: %w", err)
		}
		if len(returns) == 0 {
			return nil
		}
		certs, err := s.repos.Certificates.FindIssuedForPeriod(ctx, companyID, period)
		if err != nil {
			return fmt.Errorf("failed to load issued certificates: %w", err)
		}
		result.Certificates = len(certs)

		for i := range returns {
			if err := s.rebuild(ctx, &returns[i], certs, result); err != nil {
				return err
			}
		}
		return nil
	})
	s.metrics.RecordReconcile(ctx, companyID, time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("periodic return reconciliation failed",
			zap.String("company_id", companyID.String()),
			zap.String("period", period.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("periodic returns reconciled",
		zap.String("company_id", companyID.String()),
		zap.String("period", period.String()),
		zap.Int("certificates", result.Certificates),
		zap.Int("rebuilt", result.Rebuilt),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("skipped_filed", result.SkippedFiled),
	)
	return result, nil
}

func (s *ReconcileService) rebuild(ctx context.Context, r *tax.PeriodicReturn, certs []tax.Certificate, result *ReconcileResult) error {
	if r.IsFiled() {
		result.SkippedFiled++
		return nil
	}
	changed, err := r.Rebuild(certs)
	if err != nil {
		return err
	}
	if !changed {
		result.Unchanged++
		return nil
	}
	if err := s.repos.Returns.Save(ctx, r); err != nil {
		return fmt.Errorf("failed to save periodic return: %w", err)
	}
	publishAfterCommit(ctx, s.tx, s.events, s.logger, r)
	result.Rebuilt++
	return nil
}

// OpenPeriodicReturn creates the return of a period for one form, or for all
// forms when form is empty, and fills it immediately
func (s *ReconcileService) OpenPeriodicReturn(ctx context.Context, companyID uuid.UUID, period tax.TaxPeriod, form tax.PNDForm) (*tax.PeriodicReturn, error) {
	r, err := tax.NewPeriodicReturn(companyID, period, form)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repos.Returns.FindByPeriod(ctx, companyID, period)
		if err != nil {
			return fmt.Errorf("failed to load periodic returns: %w", err)
		}
		for _, e := range existing {
			if e.FormType == form {
				return shared.NewDomainErrorf(shared.ErrAlreadyExists.Code,
					"periodic return for %s form %q already exists", period, form)
			}
		}

		certs, err := s.repos.Certificates.FindIssuedForPeriod(ctx, companyID, period)
		if err != nil {
			return fmt.Errorf("failed to load issued certificates: %w", err)
		}
		if _, err := r.Rebuild(certs); err != nil {
			return err
		}
		if err := s.repos.Returns.Save(ctx, r); err != nil {
			return fmt.Errorf("failed to save periodic return: %w", err)
		}
		publishAfterCommit(ctx, s.tx, s.events, s.logger, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("periodic return opened",
		zap.String("return_id", r.ID.String()),
		zap.String("period", period.String()),
		zap.String("form", string(form)),
		zap.Int("certificates", r.CertificateCount),
	)
	return r, nil
}

// GetPeriodicReturns lists the returns of a period
func (s *ReconcileService) GetPeriodicReturns(ctx context.Context, companyID uuid.UUID, period tax.TaxPeriod) ([]tax.PeriodicReturn, error) {
	return s.repos.Returns.FindByPeriod(ctx, companyID, period)
}

// FilePeriodicReturn rebuilds a return one last time and locks it
func (s *ReconcileService) FilePeriodicReturn(ctx context.Context, companyID, id uuid.UUID) (*tax.PeriodicReturn, error) {
	var r *tax.PeriodicReturn
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.repos.Returns.FindByID(ctx, companyID, id)
		if err != nil {
			return err
		}
		if r.IsFiled() {
			return r.File()
		}
		certs, err := s.repos.Certificates.FindIssuedForPeriod(ctx, companyID, r.Period())
		if err != nil {
			return fmt.Errorf("failed to load issued certificates: %w", err)
		}
		if _, err := r.Rebuild(certs); err != nil {
			return err
		}
		if err := r.File(); err != nil {
			return err
		}
		if err := s.repos.Returns.Save(ctx, r); err != nil {
			return fmt.Errorf("failed to save periodic return: %w", err)
		}
		publishAfterCommit(ctx, s.tx, s.events, s.logger, r)
		return nil
	})
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("failed to file periodic return",
				zap.String("return_id", id.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}
	s.logger.Info("periodic return filed",
		zap.String("return_id", r.ID.String()),
		zap.String("period", r.Period().String()),
		zap.String("total_tax_amount", r.TotalTaxAmount.String()),
	)
	return r, nil
}
