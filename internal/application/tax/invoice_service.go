package tax

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvoiceService is the host-side invoice save path. It runs the tax hook
// before every write.
type InvoiceService struct {
	invoices tax.InvoiceRepository
	sink     TaxEventSink
	logger   *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(invoices tax.InvoiceRepository, sink TaxEventSink, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{invoices: invoices, sink: sink, logger: logger}
}

// UpsertInvoice creates the invoice with the given ID or revises it
func (s *InvoiceService) UpsertInvoice(ctx context.Context, companyID, id uuid.UUID, terms tax.InvoiceTerms) (*tax.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, companyID, id)
	switch {
	case err == nil:
		if err := inv.Revise(terms); err != nil {
			return nil, err
		}
	case errors.Is(err, shared.ErrNotFound):
		inv, err = tax.NewInvoice(companyID, terms)
		if err != nil {
			return nil, err
		}
		inv.ID = id
	default:
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}

	if err := s.sink.OnInvoiceSaved(ctx, inv); err != nil {
		return nil, err
	}
	if err := s.invoices.Save(ctx, inv); err != nil {
		s.logger.Error("failed to save invoice",
			zap.String("invoice_id", id.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	s.logger.Info("invoice saved",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.String("wht_amount", inv.WHTAmount.String()),
		zap.String("retention_amount", inv.RetentionAmount.String()),
		zap.String("vat_undue_amount", inv.VATUndueAmount.String()),
	)
	return inv, nil
}

// GetInvoice returns an invoice by ID
func (s *InvoiceService) GetInvoice(ctx context.Context, companyID, id uuid.UUID) (*tax.Invoice, error) {
	return s.invoices.FindByID(ctx, companyID, id)
}
