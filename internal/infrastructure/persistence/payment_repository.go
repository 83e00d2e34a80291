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

// GormPaymentRepository implements tax.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

var _ tax.PaymentRepository = (*GormPaymentRepository)(nil)

// FindByID finds a payment with its allocations
func (r *GormPaymentRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*tax.Payment, error) {
	return r.find(conn(ctx, r.db), companyID, id)
}

// FindByIDForUpdate finds a payment and holds a row lock on it until the
// surrounding transaction ends
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*tax.Payment, error) {
	return r.find(conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), companyID, id)
}

func (r *GormPaymentRepository) find(db *gorm.DB, companyID, id uuid.UUID) (*tax.Payment, error) {
	var payment tax.Payment
	if err := db.
		Preload("Allocations", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at, id")
		}).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// Save writes the payment header and replaces its allocations
func (r *GormPaymentRepository) Save(ctx context.Context, payment *tax.Payment) error {
	return saveWithChildren(ctx, r.db, func(db *gorm.DB) error {
		if err := db.Omit(clause.Associations).Save(payment).Error; err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		if err := db.Where("payment_id = ?", payment.ID).Delete(&tax.PaymentAllocation{}).Error; err != nil {
			return fmt.Errorf("failed to clear allocations: %w", err)
		}
		if len(payment.Allocations) == 0 {
			return nil
		}
		for i := range payment.Allocations {
			payment.Allocations[i].PaymentID = payment.ID
		}
		if err := db.Create(&payment.Allocations).Error; err != nil {
			return fmt.Errorf("failed to save allocations: %w", err)
		}
		return nil
	})
}

// saveWithChildren runs a header-plus-children write atomically, joining the
// transaction on ctx when there is one
func saveWithChildren(ctx context.Context, db *gorm.DB, fn func(db *gorm.DB) error) error {
	return conn(ctx, db).Transaction(fn)
}
