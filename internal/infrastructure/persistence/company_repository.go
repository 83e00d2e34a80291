package persistence

import (
	"context"
	"errors"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCompanyRepository implements tax.CompanyRepository using GORM
type GormCompanyRepository struct {
	db *gorm.DB
}

// NewGormCompanyRepository creates a new GormCompanyRepository
func NewGormCompanyRepository(db *gorm.DB) *GormCompanyRepository {
	return &GormCompanyRepository{db: db}
}

var _ tax.CompanyRepository = (*GormCompanyRepository)(nil)

// FindByID finds a company by its ID
func (r *GormCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*tax.Company, error) {
	var company tax.Company
	if err := conn(ctx, r.db).First(&company, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &company, nil
}

// Save creates or updates a company
func (r *GormCompanyRepository) Save(ctx context.Context, company *tax.Company) error {
	return conn(ctx, r.db).Save(company).Error
}
