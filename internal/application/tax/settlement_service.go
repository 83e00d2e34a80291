package tax

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/erp/thaitax/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TaxEventSink is the surface the host document lifecycle calls into. The
// engine never subscribes to host events itself.
type TaxEventSink interface {
	// OnInvoiceSaved fills absent rates and recomputes the invoice tax amounts
	OnInvoiceSaved(ctx context.Context, invoice *tax.Invoice) error
	// OnPaymentSaved recomputes allocation shares and header totals
	OnPaymentSaved(ctx context.Context, payment *tax.Payment)
	// OnPaymentSubmitted posts the tax entries and tries to issue a certificate
	OnPaymentSubmitted(ctx context.Context, payment *tax.Payment) (*SubmissionResult, error)
	// OnPaymentCancelled reverses the tax entries and cancels the certificate
	OnPaymentCancelled(ctx context.Context, payment *tax.Payment) (*CancellationResult, error)
}

// SubmissionResult reports what submission produced. CertificateError is set
// when the payment posted but its certificate could not be issued; the
// payment stays submitted and the certificate can be retried.
type SubmissionResult struct {
	Payment          *tax.Payment
	Plan             *tax.PostingPlan
	Eligibility      tax.Eligibility
	Certificate      *tax.Certificate
	CertificateError error
}

// CancellationResult reports what a payment cancellation reversed
type CancellationResult struct {
	Payment              *tax.Payment
	ReversedPostings     []*tax.LedgerPosting
	CancelledCertificate *tax.Certificate
}

// SettlementService runs the allocator, the posting generator and
// certificate issuance for payment documents
type SettlementService struct {
	repos        Repositories
	tx           shared.Transactor
	events       shared.EventPublisher
	resolver     *ConfigResolver
	certificates *CertificateService
	metrics      Metrics
	logger       *zap.Logger
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	repos Repositories,
	tx shared.Transactor,
	certificates *CertificateService,
	events shared.EventPublisher,
	metrics Metrics,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		repos:        repos,
		tx:           tx,
		events:       events,
		resolver:     NewConfigResolver(repos.Companies, logger),
		certificates: certificates,
		metrics:      metricsOrNoop(metrics),
		logger:       logger,
	}
}

var _ TaxEventSink = (*SettlementService)(nil)

// OnInvoiceSaved runs before the host persists an invoice
func (s *SettlementService) OnInvoiceSaved(ctx context.Context, invoice *tax.Invoice) error {
	cfg := s.resolver.Resolve(ctx, invoice.CompanyID)
	invoice.ApplyTaxConfig(cfg)
	return invoice.Validate()
}

// OnPaymentSaved runs before the host persists a draft payment
func (s *SettlementService) OnPaymentSaved(ctx context.Context, payment *tax.Payment) {
	cfg := s.resolver.Resolve(ctx, payment.CompanyID)
	payment.ApplyTaxConfig(cfg)
	payment.Recalculate()
}

// OnPaymentSubmitted runs after the host has submitted the payment and
// written its own cash and party postings. Posting failures are returned and
// must abort the caller's transaction. Certificate failures are not.
func (s *SettlementService) OnPaymentSubmitted(ctx context.Context, payment *tax.Payment) (*SubmissionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "payment_submitted",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, payment.ID.String()),
	)
	defer span.End()

	if payment.Status != tax.PaymentStatusSubmitted {
		return nil, shared.NewDomainErrorf("INVALID_STATE", "Payment %s is not submitted", payment.Number)
	}

	result := &SubmissionResult{Payment: payment}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		cfg := s.resolver.Resolve(ctx, payment.CompanyID)
		payment.ApplyTaxConfig(cfg)
		payment.Recalculate()

		plan, err := s.post(ctx, payment, cfg)
		if err != nil {
			return err
		}
		result.Plan = plan
		if err := s.repos.Payments.Save(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		publishAfterCommit(ctx, s.tx, s.events, s.logger, payment)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("tax posting failed, payment submission aborted",
			zap.String("payment_id", payment.ID.String()),
			zap.String("payment_number", payment.Number),
			zap.Error(err),
		)
		return nil, err
	}
	s.metrics.RecordSubmission(ctx, payment.CompanyID, string(payment.Direction), payment.HasThaiTaxes)

	result.Eligibility = tax.CheckIssuable(payment)
	if !result.Eligibility.Eligible {
		return result, nil
	}

	// Runs in its own transaction, or its own savepoint when the host holds
	// one, so a failure here never undoes the postings above.
	certErr := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		cert, err := s.certificates.issue(ctx, payment)
		if err != nil {
			return err
		}
		result.Certificate = cert
		return nil
	})
	if certErr != nil {
		result.Certificate = nil
		result.CertificateError = certErr
		telemetry.AddEvent(span, "certificate_failed", "error", certErr.Error())
		s.metrics.RecordCertificate(ctx, payment.CompanyID, CertificateOutcomeFailed)
		s.logger.Warn("certificate issuance failed, payment remains submitted",
			zap.String("payment_id", payment.ID.String()),
			zap.String("payment_number", payment.Number),
			zap.Error(certErr),
		)
	}
	return result, nil
}

// post generates and persists the posting plan of a payment
func (s *SettlementService) post(ctx context.Context, payment *tax.Payment, cfg tax.TaxConfig) (*tax.PostingPlan, error) {
	if !payment.HasThaiTaxes {
		return &tax.PostingPlan{}, nil
	}
	existing, err := s.repos.Ledger.FindByVoucher(ctx, payment.CompanyID, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load voucher postings: %w", err)
	}
	accounts, err := s.repos.Accounts.FindByCodes(ctx, payment.CompanyID, cfg.AccountsFor(payment.Direction).Codes())
	if err != nil {
		return nil, fmt.Errorf("failed to load tax accounts: %w", err)
	}

	plan, err := tax.GeneratePostings(payment, cfg, tax.NewAccountChart(accounts), existing)
	if err != nil {
		return nil, err
	}

	toSave := make([]*tax.LedgerPosting, 0, len(plan.TaxPostings)+1)
	if plan.CashPosting != nil {
		toSave = append(toSave, plan.CashPosting)
	}
	toSave = append(toSave, plan.TaxPostings...)
	if err := s.repos.Ledger.SaveAll(ctx, toSave); err != nil {
		return nil, fmt.Errorf("failed to save tax postings: %w", err)
	}

	s.logger.Info("tax postings generated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("total_retention", payment.TotalRetention.String()),
		zap.String("total_wht", payment.TotalWHT.String()),
		zap.String("total_vat_undue", payment.TotalVATUndue.String()),
		zap.Int("postings", len(plan.TaxPostings)),
	)
	return plan, nil
}

// OnPaymentCancelled runs after the host has cancelled the payment. It flags
// the tax postings as cancelled and cancels the linked certificate; the
// certificate event re-schedules reconciliation of its period.
func (s *SettlementService) OnPaymentCancelled(ctx context.Context, payment *tax.Payment) (*CancellationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "payment_cancelled",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, payment.ID.String()),
	)
	defer span.End()

	if payment.Status != tax.PaymentStatusCancelled {
		return nil, shared.NewDomainErrorf("INVALID_STATE", "Payment %s is not cancelled", payment.Number)
	}

	result := &CancellationResult{Payment: payment}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		cfg := s.resolver.Resolve(ctx, payment.CompanyID)
		postings, err := s.repos.Ledger.FindByVoucher(ctx, payment.CompanyID, payment.ID)
		if err != nil {
			return fmt.Errorf("failed to load voucher postings: %w", err)
		}
		result.ReversedPostings = tax.ReversePostings(postings, cfg.AccountsFor(payment.Direction))
		if len(result.ReversedPostings) > 0 {
			if err := s.repos.Ledger.SaveAll(ctx, result.ReversedPostings); err != nil {
				return fmt.Errorf("failed to reverse tax postings: %w", err)
			}
		}

		cert, err := s.repos.Certificates.FindActiveByPayment(ctx, payment.CompanyID, payment.ID)
		switch {
		case err == nil:
			if err := s.certificates.cancel(ctx, cert, fmt.Sprintf("Payment %s cancelled", payment.Number)); err != nil {
				return err
			}
			result.CancelledCertificate = cert
		case errors.Is(err, shared.ErrNotFound):
		default:
			return fmt.Errorf("failed to load payment certificate: %w", err)
		}

		publishAfterCommit(ctx, s.tx, s.events, s.logger, payment)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("failed to reverse payment taxes",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("payment taxes reversed",
		zap.String("payment_id", payment.ID.String()),
		zap.Int("reversed_postings", len(result.ReversedPostings)),
		zap.Bool("certificate_cancelled", result.CancelledCertificate != nil),
	)
	return result, nil
}
