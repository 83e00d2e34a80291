package tax

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/erp/thaitax/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CertificateResult is the outcome of a create call. A payment that does not
// qualify yields a nil Certificate and the reasons, not an error.
type CertificateResult struct {
	Certificate *tax.Certificate
	Eligibility tax.Eligibility
}

// PreviewResult is the outcome of a preview call
type PreviewResult struct {
	Preview     *tax.CertificatePreview
	Eligibility tax.Eligibility
}

// CertificateService issues and cancels withholding tax certificates
type CertificateService struct {
	repos     Repositories
	tx        shared.Transactor
	sequencer tax.CertificateSequencer
	events    shared.EventPublisher
	resolver  *ConfigResolver
	prefix    string
	metrics   Metrics
	logger    *zap.Logger
}

// CertificateServiceOption configures a CertificateService
type CertificateServiceOption func(*CertificateService)

// WithCertificatePrefix overrides the WHTC document prefix
func WithCertificatePrefix(prefix string) CertificateServiceOption {
	return func(s *CertificateService) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithCertificateMetrics sets the metrics sink
func WithCertificateMetrics(m Metrics) CertificateServiceOption {
	return func(s *CertificateService) {
		s.metrics = metricsOrNoop(m)
	}
}

// NewCertificateService creates a new CertificateService
func NewCertificateService(
	repos Repositories,
	tx shared.Transactor,
	sequencer tax.CertificateSequencer,
	events shared.EventPublisher,
	logger *zap.Logger,
	opts ...CertificateServiceOption,
) *CertificateService {
	s := &CertificateService{
		repos:     repos,
		tx:        tx,
		sequencer: sequencer,
		events:    events,
		resolver:  NewConfigResolver(repos.Companies, logger),
		prefix:    tax.DefaultCertificatePrefix,
		metrics:   noopMetrics{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCertificate issues a certificate for a submitted outbound payment
func (s *CertificateService) CreateCertificate(ctx context.Context, companyID, paymentID uuid.UUID) (*CertificateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "certificate", "create",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, paymentID.String()),
	)
	defer span.End()

	result := &CertificateResult{}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		payment, err := s.repos.Payments.FindByIDForUpdate(ctx, companyID, paymentID)
		if err != nil {
			return err
		}
		result.Eligibility = tax.CheckIssuable(payment)
		if !result.Eligibility.Eligible {
			return nil
		}
		cert, err := s.issue(ctx, payment)
		if err != nil {
			return err
		}
		result.Certificate = cert
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, tax.ErrDuplicateCertificate) {
			s.metrics.RecordCertificate(ctx, companyID, CertificateOutcomeDuplicate)
		} else {
			s.metrics.RecordCertificate(ctx, companyID, CertificateOutcomeFailed)
		}
		return nil, err
	}
	if !result.Eligibility.Eligible {
		s.logger.Info("payment is not eligible for a withholding tax certificate",
			zap.String("payment_id", paymentID.String()),
			zap.Strings("reasons", result.Eligibility.Reasons),
		)
		s.metrics.RecordCertificate(ctx, companyID, CertificateOutcomeNotEligible)
	}
	return result, nil
}

// issue creates, numbers and issues the certificate of an eligible payment.
// It must run inside a transaction.
func (s *CertificateService) issue(ctx context.Context, payment *tax.Payment) (*tax.Certificate, error) {
	// Existence check before insert. Two concurrent submissions of the same
	// payment can both pass it; the payment row lock narrows that window.
	exists, err := s.repos.Certificates.ExistsActiveForPayment(ctx, payment.CompanyID, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing certificate: %w", err)
	}
	if exists {
		return nil, tax.NewDuplicateCertificateError(payment.Number)
	}

	company, err := s.repos.Companies.FindByID(ctx, payment.CompanyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, tax.NewConfigurationError("company %s has no payer details for certificates", payment.CompanyID)
		}
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	cfg, _ := tax.ResolveTaxConfig(company)
	preview := tax.PrepareCertificate(payment, company.AsPayer(), cfg)

	seq, err := s.sequencer.Next(ctx, tax.SequenceKey(payment.CompanyID, s.prefix, preview.Period))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate certificate number: %w", err)
	}
	number, err := tax.FormatCertificateNumber(s.prefix, preview.Period, seq)
	if err != nil {
		return nil, err
	}

	cert, err := tax.NewCertificate(payment.CompanyID, preview, number)
	if err != nil {
		return nil, err
	}
	if err := cert.Issue(); err != nil {
		return nil, err
	}
	if err := s.repos.Certificates.Save(ctx, cert); err != nil {
		return nil, fmt.Errorf("failed to save certificate: %w", err)
	}

	previous := payment.CertificateID
	payment.LinkCertificate(cert.ID)
	if err := s.repos.Payments.Save(ctx, payment); err != nil {
		payment.CertificateID = previous
		return nil, fmt.Errorf("failed to link certificate to payment: %w", err)
	}

	publishAfterCommit(ctx, s.tx, s.events, s.logger, cert)
	s.metrics.RecordCertificate(ctx, payment.CompanyID, CertificateOutcomeIssued)
	s.logger.Info("withholding tax certificate issued",
		zap.String("certificate_id", cert.ID.String()),
		zap.String("number", cert.Number),
		zap.String("payment_id", payment.ID.String()),
		zap.String("pnd_form", string(cert.PNDForm)),
		zap.String("tax_amount", cert.TaxAmount.String()),
	)
	return cert, nil
}

// GetCertificatePreview returns the fields a certificate would carry
func (s *CertificateService) GetCertificatePreview(ctx context.Context, companyID, paymentID uuid.UUID) (*PreviewResult, error) {
	payment, err := s.repos.Payments.FindByID(ctx, companyID, paymentID)
	if err != nil {
		return nil, err
	}
	e := tax.CheckEligibility(payment)
	if !e.Eligible {
		return &PreviewResult{Eligibility: e}, nil
	}

	var payer tax.CertificateParty
	company, err := s.repos.Companies.FindByID(ctx, companyID)
	switch {
	case err == nil:
		payer = company.AsPayer()
	case errors.Is(err, shared.ErrNotFound):
		s.logger.Warn("previewing certificate without payer details",
			zap.String("company_id", companyID.String()),
		)
	default:
		return nil, err
	}

	preview := tax.PrepareCertificate(payment, payer, s.resolver.Resolve(ctx, companyID))
	return &PreviewResult{Preview: &preview, Eligibility: e}, nil
}

// GetCertificate returns a certificate by ID
func (s *CertificateService) GetCertificate(ctx context.Context, companyID, id uuid.UUID) (*tax.Certificate, error) {
	return s.repos.Certificates.FindByID(ctx, companyID, id)
}

// CertificatePage is one page of the certificate register
type CertificatePage struct {
	Items    []tax.Certificate
	Total    int64
	Page     int
	PageSize int
}

// ListCertificates returns the certificate register, newest number first
// unless the filter orders it otherwise
func (s *CertificateService) ListCertificates(ctx context.Context, companyID uuid.UUID, filter tax.CertificateFilter) (*CertificatePage, error) {
	defaults := shared.DefaultFilter()
	if filter.Page < 1 {
		filter.Page = defaults.Page
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaults.PageSize
	}

	items, total, err := s.repos.Certificates.List(ctx, companyID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	return &CertificatePage{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// CancelCertificate voids an issued certificate. Its number is not reused.
func (s *CertificateService) CancelCertificate(ctx context.Context, companyID, id uuid.UUID, reason string) (*tax.Certificate, error) {
	var cert *tax.Certificate
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		cert, err = s.repos.Certificates.FindByID(ctx, companyID, id)
		if err != nil {
			return err
		}
		return s.cancel(ctx, cert, reason)
	})
	if err != nil {
		return nil, err
	}
	return cert, nil
}

func (s *CertificateService) cancel(ctx context.Context, cert *tax.Certificate, reason string) error {
	if err := cert.Cancel(reason); err != nil {
		return err
	}
	if err := s.repos.Certificates.Save(ctx, cert); err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	publishAfterCommit(ctx, s.tx, s.events, s.logger, cert)
	s.metrics.RecordCertificate(ctx, cert.CompanyID, CertificateOutcomeCancelled)
	s.logger.Info("withholding tax certificate cancelled",
		zap.String("certificate_id", cert.ID.String()),
		zap.String("number", cert.Number),
		zap.String("reason", reason),
	)
	return nil
}
