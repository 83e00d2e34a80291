package tax

import (
	"context"
	"fmt"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AllocationInput applies part of a payment to one invoice
type AllocationInput struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
}

// PaymentService is the host-side payment document lifecycle. It owns the
// payment status, the invoice outstanding amounts and the host's cash and
// party postings, and calls the tax sink at each step.
type PaymentService struct {
	repos  Repositories
	tx     shared.Transactor
	sink   TaxEventSink
	logger *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(repos Repositories, tx shared.Transactor, sink TaxEventSink, logger *zap.Logger) *PaymentService {
	return &PaymentService{repos: repos, tx: tx, sink: sink, logger: logger}
}

// CreatePayment saves a draft payment with its allocations
func (s *PaymentService) CreatePayment(ctx context.Context, companyID uuid.UUID, terms tax.PaymentTerms, allocations []AllocationInput) (*tax.Payment, error) {
	payment, err := tax.NewPayment(companyID, terms)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(allocations))
	for _, a := range allocations {
		ids = append(ids, a.InvoiceID)
	}
	invoices, err := s.repos.Invoices.FindByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	byID := make(map[uuid.UUID]*tax.Invoice, len(invoices))
	for i := range invoices {
		byID[invoices[i].ID] = &invoices[i]
	}
	for _, a := range allocations {
		inv, ok := byID[a.InvoiceID]
		if !ok {
			return nil, shared.NewDomainErrorf(shared.ErrNotFound.Code, "Invoice %s not found", a.InvoiceID)
		}
		if err := payment.AddAllocation(inv, a.Amount); err != nil {
			return nil, err
		}
	}

	s.sink.OnPaymentSaved(ctx, payment)
	if err := s.repos.Payments.Save(ctx, payment); err != nil {
		s.logger.Error("failed to save payment",
			zap.String("number", payment.Number),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	s.logger.Info("draft payment saved",
		zap.String("payment_id", payment.ID.String()),
		zap.String("number", payment.Number),
		zap.String("direction", string(payment.Direction)),
		zap.Int("allocations", len(payment.Allocations)),
		zap.String("net_cash_amount", payment.NetCashAmount.String()),
	)
	return payment, nil
}

// GetPayment returns a payment with its allocations
func (s *PaymentService) GetPayment(ctx context.Context, companyID, id uuid.UUID) (*tax.Payment, error) {
	return s.repos.Payments.FindByID(ctx, companyID, id)
}

// SubmitPayment submits a draft payment. Everything, tax postings included,
// commits or rolls back together; only certificate issuance may fail alone.
func (s *PaymentService) SubmitPayment(ctx context.Context, companyID, id uuid.UUID) (*SubmissionResult, error) {
	var result *SubmissionResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		payment, err := s.repos.Payments.FindByIDForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if err := payment.Submit(); err != nil {
			return err
		}
		if err := s.ensureHostPostings(ctx, payment); err != nil {
			return err
		}
		if err := s.settleInvoices(ctx, payment, decimal.NewFromInt(-1)); err != nil {
			return err
		}
		if err := s.repos.Payments.Save(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		result, err = s.sink.OnPaymentSubmitted(ctx, payment)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment submitted",
		zap.String("payment_id", id.String()),
		zap.Bool("certificate_issued", result.Certificate != nil),
		zap.Bool("certificate_failed", result.CertificateError != nil),
	)
	return result, nil
}

// CancelPayment cancels a submitted payment, reversing host and tax entries
func (s *PaymentService) CancelPayment(ctx context.Context, companyID, id uuid.UUID) (*CancellationResult, error) {
	var result *CancellationResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		payment, err := s.repos.Payments.FindByIDForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if err := payment.Cancel(); err != nil {
			return err
		}

		postings, err := s.repos.Ledger.FindByVoucher(ctx, companyID, payment.ID)
		if err != nil {
			return fmt.Errorf("failed to load voucher postings: %w", err)
		}
		reversed := make([]*tax.LedgerPosting, 0, len(postings))
		for i := range postings {
			if postings[i].Source == tax.PostingSourceHost && !postings[i].IsCancelled {
				postings[i].Cancel()
				reversed = append(reversed, &postings[i])
			}
		}
		if len(reversed) > 0 {
			if err := s.repos.Ledger.SaveAll(ctx, reversed); err != nil {
				return fmt.Errorf("failed to cancel host postings: %w", err)
			}
		}

		if err := s.settleInvoices(ctx, payment, decimal.NewFromInt(1)); err != nil {
			return err
		}
		if err := s.repos.Payments.Save(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		result, err = s.sink.OnPaymentCancelled(ctx, payment)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment cancelled", zap.String("payment_id", id.String()))
	return result, nil
}

// ensureHostPostings writes the default cash and party entries unless the
// host already recorded postings for the voucher
func (s *PaymentService) ensureHostPostings(ctx context.Context, payment *tax.Payment) error {
	existing, err := s.repos.Ledger.FindByVoucher(ctx, payment.CompanyID, payment.ID)
	if err != nil {
		return fmt.Errorf("failed to load voucher postings: %w", err)
	}
	for _, p := range existing {
		if p.Source == tax.PostingSourceHost && !p.IsCancelled {
			return nil
		}
	}
	postings, err := payment.HostPostings()
	if err != nil {
		return err
	}
	if err := s.repos.Ledger.SaveAll(ctx, postings); err != nil {
		return fmt.Errorf("failed to save host postings: %w", err)
	}
	return nil
}

// settleInvoices moves each allocated amount out of (sign -1) or back into
// (sign +1) the outstanding amount of its invoice
func (s *PaymentService) settleInvoices(ctx context.Context, payment *tax.Payment, sign decimal.Decimal) error {
	if len(payment.Allocations) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(payment.Allocations))
	amounts := make(map[uuid.UUID]decimal.Decimal, len(payment.Allocations))
	for _, a := range payment.Allocations {
		ids = append(ids, a.InvoiceID)
		amounts[a.InvoiceID] = a.AllocatedAmount
	}
	invoices, err := s.repos.Invoices.FindByIDs(ctx, payment.CompanyID, ids)
	if err != nil {
		return fmt.Errorf("failed to load invoices: %w", err)
	}
	for i := range invoices {
		inv := &invoices[i]
		outstanding := inv.OutstandingAmount.Add(amounts[inv.ID].Mul(sign))
		if outstanding.IsNegative() {
			outstanding = decimal.Zero
		}
		if outstanding.GreaterThan(inv.GrandTotal) {
			outstanding = inv.GrandTotal
		}
		if err := inv.SetOutstanding(outstanding); err != nil {
			return err
		}
		if err := s.repos.Invoices.Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to update invoice outstanding: %w", err)
		}
	}
	return nil
}
