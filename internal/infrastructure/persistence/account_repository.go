package persistence

import (
	"context"
	"errors"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAccountRepository implements tax.AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

var _ tax.AccountRepository = (*GormAccountRepository)(nil)

// FindByCode finds an account by its code within a company
func (r *GormAccountRepository) FindByCode(ctx context.Context, companyID uuid.UUID, code string) (*tax.Account, error) {
	var account tax.Account
	if err := conn(ctx, r.db).
		Where("company_id = ? AND code = ?", companyID, code).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindByCodes loads every listed account that exists
func (r *GormAccountRepository) FindByCodes(ctx context.Context, companyID uuid.UUID, codes []string) ([]tax.Account, error) {
	var accounts []tax.Account
	if len(codes) == 0 {
		return accounts, nil
	}
	if err := conn(ctx, r.db).
		Where("company_id = ? AND code IN ?", companyID, codes).
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// Save creates or updates an account
func (r *GormAccountRepository) Save(ctx context.Context, account *tax.Account) error {
	return conn(ctx, r.db).Save(account).Error
}
