package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPeriodicReturnRepository implements tax.PeriodicReturnRepository using GORM
type GormPeriodicReturnRepository struct {
	db *gorm.DB
}

// NewGormPeriodicReturnRepository creates a new GormPeriodicReturnRepository
func NewGormPeriodicReturnRepository(db *gorm.DB) *GormPeriodicReturnRepository {
	return &GormPeriodicReturnRepository{db: db}
}

var _ tax.PeriodicReturnRepository = (*GormPeriodicReturnRepository)(nil)

func preloadLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("line_no")
	})
}

// FindByID finds a periodic return with its lines
func (r *GormPeriodicReturnRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*tax.PeriodicReturn, error) {
	var ret tax.PeriodicReturn
	if err := preloadLines(conn(ctx, r.db)).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&ret).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	ret.MarkStored()
	return &ret, nil
}

// FindByPeriod returns every return of a period ordered by form
func (r *GormPeriodicReturnRepository) FindByPeriod(ctx context.Context, companyID uuid.UUID, period tax.TaxPeriod) ([]tax.PeriodicReturn, error) {
	var returns []tax.PeriodicReturn
	if err := preloadLines(conn(ctx, r.db)).
		Where("company_id = ? AND tax_year = ? AND tax_month = ?", companyID, period.Year, period.Month).
		Order("form_type").
		Find(&returns).Error; err != nil {
		return nil, err
	}
	for i := range returns {
		returns[i].MarkStored()
	}
	return returns, nil
}

// Save writes the return header and replaces its lines. A return that was
// loaded before is only updated while the stored row still carries the version
// it was loaded at; otherwise shared.ErrConcurrencyConflict is returned and
// nothing is written.
func (r *GormPeriodicReturnRepository) Save(ctx context.Context, ret *tax.PeriodicReturn) error {
	err := saveWithChildren(ctx, r.db, func(db *gorm.DB) error {
		if err := writeReturnHeader(db, ret); err != nil {
			return err
		}
		if err := db.Where("return_id = ?", ret.ID).Delete(&tax.PeriodicReturnLine{}).Error; err != nil {
			return fmt.Errorf("failed to clear periodic return lines: %w", err)
		}
		if len(ret.Lines) == 0 {
			return nil
		}
		for i := range ret.Lines {
			ret.Lines[i].ReturnID = ret.ID
		}
		if err := db.Create(&ret.Lines).Error; err != nil {
			return fmt.Errorf("failed to save periodic return lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	ret.MarkStored()
	return nil
}

func writeReturnHeader(db *gorm.DB, ret *tax.PeriodicReturn) error {
	stored := ret.StoredVersion()
	if stored == 0 {
		if err := db.Omit(clause.Associations).Create(ret).Error; err != nil {
			return fmt.Errorf("failed to save periodic return: %w", err)
		}
		return nil
	}
	res := db.Model(ret).
		Select("*").
		Omit(clause.Associations, "created_at").
		Where("version = ?", stored).
		Updates(ret)
	if res.Error != nil {
		return fmt.Errorf("failed to save periodic return: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("periodic return %s changed since version %d: %w", ret.ID, stored, shared.ErrConcurrencyConflict)
	}
	return nil
}

// FindOpenPeriods lists the distinct company periods that still have an
// open return, oldest first
func (r *GormPeriodicReturnRepository) FindOpenPeriods(ctx context.Context) ([]tax.OpenPeriod, error) {
	var rows []struct {
		CompanyID uuid.UUID
		TaxYear   int
		TaxMonth  int
	}
	if err := conn(ctx, r.db).Model(&tax.PeriodicReturn{}).
		Distinct("company_id", "tax_year", "tax_month").
		Where("status = ?", tax.PeriodicReturnOpen).
		Order("tax_year, tax_month, company_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list open periods: %w", err)
	}
	periods := make([]tax.OpenPeriod, 0, len(rows))
	for _, row := range rows {
		periods = append(periods, tax.OpenPeriod{
			CompanyID: row.CompanyID,
			Period:    tax.TaxPeriod{Year: row.TaxYear, Month: row.TaxMonth},
		})
	}
	return periods, nil
}
