package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCertificateRepository implements tax.CertificateRepository using GORM
type GormCertificateRepository struct {
	db *gorm.DB
}

// NewGormCertificateRepository creates a new GormCertificateRepository
func NewGormCertificateRepository(db *gorm.DB) *GormCertificateRepository {
	return &GormCertificateRepository{db: db}
}

var _ tax.CertificateRepository = (*GormCertificateRepository)(nil)

// FindByID finds a certificate within a company
func (r *GormCertificateRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*tax.Certificate, error) {
	var cert tax.Certificate
	if err := conn(ctx, r.db).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &cert, nil
}

// FindActiveByPayment finds the non-cancelled certificate of a payment
func (r *GormCertificateRepository) FindActiveByPayment(ctx context.Context, companyID, paymentID uuid.UUID) (*tax.Certificate, error) {
	var cert tax.Certificate
	if err := conn(ctx, r.db).
		Where("company_id = ? AND payment_id = ? AND status <> ?", companyID, paymentID, tax.CertificateStatusCancelled).
		Order("created_at DESC").
		First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &cert, nil
}

// ExistsActiveForPayment checks whether a payment already has a live certificate
func (r *GormCertificateRepository) ExistsActiveForPayment(ctx context.Context, companyID, paymentID uuid.UUID) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&tax.Certificate{}).
		Where("company_id = ? AND payment_id = ? AND status <> ?", companyID, paymentID, tax.CertificateStatusCancelled).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindIssuedForPeriod returns the issued certificates of a period ordered by number
func (r *GormCertificateRepository) FindIssuedForPeriod(ctx context.Context, companyID uuid.UUID, period tax.TaxPeriod) ([]tax.Certificate, error) {
	var certs []tax.Certificate
	if err := conn(ctx, r.db).
		Where("company_id = ? AND tax_year = ? AND tax_month = ? AND status = ?",
			companyID, period.Year, period.Month, tax.CertificateStatusIssued).
		Order("number").
		Find(&certs).Error; err != nil {
		return nil, err
	}
	return certs, nil
}

// List returns one page of the certificate register
func (r *GormCertificateRepository) List(ctx context.Context, companyID uuid.UUID, filter tax.CertificateFilter) ([]tax.Certificate, int64, error) {
	query := conn(ctx, r.db).Model(&tax.Certificate{}).Where("company_id = ?", companyID)
	if filter.Period != nil {
		query = query.Where("tax_year = ? AND tax_month = ?", filter.Period.Year, filter.Period.Month)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PNDForm != "" {
		query = query.Where("pnd_form = ?", filter.PNDForm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var certs []tax.Certificate
	if err := query.
		Order(certificateOrder(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&certs).Error; err != nil {
		return nil, 0, err
	}
	return certs, total, nil
}

// activePaymentIndex is the partial unique index that allows one
// non-cancelled certificate per payment.
const activePaymentIndex = "idx_certificates_active_payment"

// Save creates or updates a certificate. Losing an issuance race on the same
// payment surfaces as ErrDuplicateCertificate.
func (r *GormCertificateRepository) Save(ctx context.Context, cert *tax.Certificate) error {
	err := conn(ctx, r.db).Save(cert).Error
	if err != nil && strings.Contains(err.Error(), activePaymentIndex) {
		return tax.NewDuplicateCertificateError(cert.PaymentNumber)
	}
	return err
}
