package persistence

import (
	"context"
	"errors"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements tax.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

var _ tax.InvoiceRepository = (*GormInvoiceRepository)(nil)

// FindByID finds an invoice within a company
func (r *GormInvoiceRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*tax.Invoice, error) {
	var invoice tax.Invoice
	if err := conn(ctx, r.db).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// FindByIDs loads the listed invoices; unknown IDs are absent from the result
func (r *GormInvoiceRepository) FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]tax.Invoice, error) {
	var invoices []tax.Invoice
	if len(ids) == 0 {
		return invoices, nil
	}
	if err := conn(ctx, r.db).
		Where("company_id = ? AND id IN ?", companyID, ids).
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *tax.Invoice) error {
	return conn(ctx, r.db).Save(invoice).Error
}
