package persistence

import (
	"context"

	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLedgerRepository implements tax.LedgerRepository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

var _ tax.LedgerRepository = (*GormLedgerRepository)(nil)

// FindByVoucher returns all postings of a voucher, cancelled ones included
func (r *GormLedgerRepository) FindByVoucher(ctx context.Context, companyID, voucherID uuid.UUID) ([]tax.LedgerPosting, error) {
	var postings []tax.LedgerPosting
	if err := conn(ctx, r.db).
		Where("company_id = ? AND voucher_id = ?", companyID, voucherID).
		Order("created_at, id").
		Find(&postings).Error; err != nil {
		return nil, err
	}
	return postings, nil
}

// FindByAccount returns all postings to an account in posting-date order
func (r *GormLedgerRepository) FindByAccount(ctx context.Context, companyID uuid.UUID, account string) ([]tax.LedgerPosting, error) {
	var postings []tax.LedgerPosting
	if err := conn(ctx, r.db).
		Where("company_id = ? AND account = ?", companyID, account).
		Order("posting_date, created_at, id").
		Find(&postings).Error; err != nil {
		return nil, err
	}
	return postings, nil
}

// SaveAll upserts a batch of postings
func (r *GormLedgerRepository) SaveAll(ctx context.Context, postings []*tax.LedgerPosting) error {
	if len(postings) == 0 {
		return nil
	}
	return conn(ctx, r.db).Save(postings).Error
}
