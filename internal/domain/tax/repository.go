package tax

import (
	"context"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/google/uuid"
)

// CompanyRepository persists companies and their tax settings
type CompanyRepository interface {
	// FindByID returns shared.ErrNotFound when the company does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Company, error)
	Save(ctx context.Context, company *Company) error
}

// AccountRepository reads the chart of accounts
type AccountRepository interface {
	FindByCode(ctx context.Context, companyID uuid.UUID, code string) (*Account, error)
	// FindByCodes returns the accounts that exist; missing codes are simply absent
	FindByCodes(ctx context.Context, companyID uuid.UUID, codes []string) ([]Account, error)
	Save(ctx context.Context, account *Account) error
}

// InvoiceRepository persists host invoices
type InvoiceRepository interface {
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Invoice, error)
	FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]Invoice, error)
	Save(ctx context.Context, invoice *Invoice) error
}

// PaymentRepository persists payments together with their allocations
type PaymentRepository interface {
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Payment, error)
	// FindByIDForUpdate locks the payment row for the rest of the transaction
	FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Payment, error)
	// Save writes the header and replaces the allocation set
	Save(ctx context.Context, payment *Payment) error
}

// LedgerRepository stores general-ledger postings
type LedgerRepository interface {
	FindByVoucher(ctx context.Context, companyID, voucherID uuid.UUID) ([]LedgerPosting, error)
	FindByAccount(ctx context.Context, companyID uuid.UUID, account string) ([]LedgerPosting, error)
	SaveAll(ctx context.Context, postings []*LedgerPosting) error
}

// CertificateRepository persists withholding tax certificates
type CertificateRepository interface {
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Certificate, error)
	// FindActiveByPayment returns the non-cancelled certificate of a payment,
	// or shared.ErrNotFound
	FindActiveByPayment(ctx context.Context, companyID, paymentID uuid.UUID) (*Certificate, error)
	ExistsActiveForPayment(ctx context.Context, companyID, paymentID uuid.UUID) (bool, error)
	// FindIssuedForPeriod returns Issued certificates ordered by number
	FindIssuedForPeriod(ctx context.Context, companyID uuid.UUID, period TaxPeriod) ([]Certificate, error)
	// List returns one page of certificates and the total matching count
	List(ctx context.Context, companyID uuid.UUID, filter CertificateFilter) ([]Certificate, int64, error)
	Save(ctx context.Context, certificate *Certificate) error
}

// CertificateFilter narrows the certificate register. Zero fields match
// everything.
type CertificateFilter struct {
	shared.Filter
	Period   *TaxPeriod
	Status   CertificateStatus
	PNDForm  PNDForm
	OrderBy  string
	OrderDir string
}

// PeriodicReturnRepository persists periodic returns and their lines
type PeriodicReturnRepository interface {
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*PeriodicReturn, error)
	// FindByPeriod returns every return (one per form filter) of a period
	FindByPeriod(ctx context.Context, companyID uuid.UUID, period TaxPeriod) ([]PeriodicReturn, error)
	// Save writes the header and replaces the lines
	Save(ctx context.Context, r *PeriodicReturn) error
}

// CertificateSequencer hands out certificate sequence numbers. Next must be
// a single atomic increment so concurrent issuers never share a number.
type CertificateSequencer interface {
	Next(ctx context.Context, key string) (int64, error)
}
