package persistence

import (
	"testing"
	"time"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTaxTestDB opens an in-memory SQLite database with the tax schema.
// One connection keeps every query on the same in-memory database.
func setupTaxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&tax.Company{},
		&tax.Account{},
		&tax.Invoice{},
		&tax.Payment{},
		&tax.PaymentAllocation{},
		&tax.LedgerPosting{},
		&tax.Certificate{},
		&tax.PeriodicReturn{},
		&tax.PeriodicReturnLine{},
		&CertificateSequence{},
	))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var testDate = time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

func newTestInvoice(t *testing.T, companyID uuid.UUID, number string) *tax.Invoice {
	t.Helper()
	inv, err := tax.NewInvoice(companyID, tax.InvoiceTerms{
		Number:       number,
		Kind:         tax.InvoiceKindSales,
		Party:        tax.Party{Ref: "C-1", Name: "Lanna Trading", TaxID: "0505559876543"},
		PostingDate:  testDate,
		NetTotal:     dec("100"),
		VATAmount:    dec("7"),
		VATTreatment: tax.VATUndue,
		IsService:    true,
		ApplyWHT:     true,
	})
	require.NoError(t, err)
	return inv
}

func newTestPayment(t *testing.T, companyID uuid.UUID, invoices ...*tax.Invoice) *tax.Payment {
	t.Helper()
	p, err := tax.NewPayment(companyID, tax.PaymentTerms{
		Number:       "RV-0001",
		Direction:    tax.DirectionReceive,
		Party:        tax.Party{Ref: "C-1", Name: "Lanna Trading"},
		PaidAmount:   dec("500"),
		PostingDate:  testDate,
		CashAccount:  "1110",
		PartyAccount: "1130",
	})
	require.NoError(t, err)
	for _, inv := range invoices {
		require.NoError(t, p.AddAllocation(inv, dec("107")))
	}
	return p
}

func newTestCertificate(companyID, paymentID uuid.UUID, number string, status tax.CertificateStatus) *tax.Certificate {
	return &tax.Certificate{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Number:               number,
		Prefix:               "WHTC",
		Sequence:             1,
		CertificateDate:      testDate,
		TaxYear:              2568,
		TaxMonth:             3,
		Payee:                tax.CertificateParty{Name: "Lanna Trading", TaxID: "0505559876543"},
		PNDForm:              tax.PND53,
		IncomeType:           tax.IncomeTypeServices,
		TaxBase:              dec("100"),
		TaxRate:              dec("3"),
		TaxAmount:            dec("3"),
		PaymentID:            paymentID,
		PaymentNumber:        "PV-0001",
		Status:               status,
	}
}
