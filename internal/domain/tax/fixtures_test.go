package tax

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCashAccount        = "1110"
	testReceivableAccount  = "1130"
	testPayableAccount     = "2110"
	testWHTAsset           = "1150"
	testRetentionAsset     = "1160"
	testVATUndue           = "2150"
	testVAT                = "2160"
	testWHTPayable         = "2170"
	testRetentionPayable   = "2180"
	testPurchaseVATUndue   = "1170"
	testPurchaseVAT        = "1180"
	testPostingDateISO     = "2025-03-15"
	testPeriodCodeForMarch = "6803"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func testPostingDate() time.Time {
	t, _ := time.Parse("2006-01-02", testPostingDateISO)
	return t
}

func testCompany(t *testing.T) *Company {
	t.Helper()
	c, err := NewCompany("Siam Build Co., Ltd.", "0105551234567")
	require.NoError(t, err)
	require.NoError(t, c.UpdateSettings(TaxSettings{
		ServiceBusinessEnabled:     true,
		ConstructionServiceEnabled: true,
		WHTAssetAccount:            testWHTAsset,
		RetentionAssetAccount:      testRetentionAsset,
		VATUndueAccount:            testVATUndue,
		VATAccount:                 testVAT,
		WHTPayableAccount:          testWHTPayable,
		RetentionPayableAccount:    testRetentionPayable,
		PurchaseVATUndueAccount:    testPurchaseVATUndue,
		PurchaseVATAccount:         testPurchaseVAT,
	}))
	return c
}

func testConfig(t *testing.T) TaxConfig {
	t.Helper()
	cfg, ok := ResolveTaxConfig(testCompany(t))
	require.True(t, ok)
	return cfg
}

func testChart(companyID uuid.UUID) AccountChart {
	accounts := []Account{
		{CompanyID: companyID, Code: testCashAccount, Type: AccountTypeAsset},
		{CompanyID: companyID, Code: testReceivableAccount, Type: AccountTypeAsset},
		{CompanyID: companyID, Code: testPayableAccount, Type: AccountTypeLiability},
		{CompanyID: companyID, Code: testWHTAsset, Type: AccountTypeAsset},
		{CompanyID: companyID, Code: testRetentionAsset, Type: AccountTypeAsset},
		{CompanyID: companyID, Code: testVATUndue, Type: AccountTypeLiability},
		{CompanyID: companyID, Code: testVAT, Type: AccountTypeLiability},
		{CompanyID: companyID, Code: testWHTPayable, Type: AccountTypeLiability},
		{CompanyID: companyID, Code: testRetentionPayable, Type: AccountTypeLiability},
		{CompanyID: companyID, Code: testPurchaseVATUndue, Type: AccountTypeAsset},
		{CompanyID: companyID, Code: testPurchaseVAT, Type: AccountTypeAsset},
	}
	return NewAccountChart(accounts)
}

// scenarioInvoice is net 100, VAT 7 undue, WHT 3%, retention 5%
func scenarioInvoice(t *testing.T, companyID uuid.UUID, kind InvoiceKind, cfg TaxConfig) *Invoice {
	t.Helper()
	inv, err := NewInvoice(companyID, InvoiceTerms{
		Number:         "INV-0001",
		Kind:           kind,
		Party:          Party{Ref: "P-1", Name: "Chiang Mai Services Co., Ltd.", TaxID: "0505559876543"},
		PostingDate:    testPostingDate(),
		NetTotal:       dec("100"),
		VATAmount:      dec("7"),
		VATTreatment:   VATUndue,
		IsService:      true,
		ApplyWHT:       true,
		ApplyRetention: true,
	})
	require.NoError(t, err)
	inv.ApplyTaxConfig(cfg)
	return inv
}

func scenarioPayment(t *testing.T, companyID uuid.UUID, direction PaymentDirection, paid string) *Payment {
	t.Helper()
	partyAccount := testReceivableAccount
	if direction == DirectionPay {
		partyAccount = testPayableAccount
	}
	p, err := NewPayment(companyID, PaymentTerms{
		Number:       "PAY-0001",
		Direction:    direction,
		Party:        Party{Ref: "P-1", Name: "Chiang Mai Services Co., Ltd.", TaxID: "0505559876543"},
		PaidAmount:   dec(paid),
		PostingDate:  testPostingDate(),
		CashAccount:  testCashAccount,
		PartyAccount: partyAccount,
		ApplyWHT:     true,
	})
	require.NoError(t, err)
	return p
}

// hostPostings mirrors what the host ledger writes for a payment before the
// tax engine runs: cash against the party account for the full paid amount
func hostPostings(t *testing.T, p *Payment) []LedgerPosting {
	t.Helper()
	v := Voucher{CompanyID: p.CompanyID, ID: p.ID, Type: VoucherTypePayment, PostingDate: p.PostingDate}
	var cash, party *LedgerPosting
	var err error
	if p.Direction == DirectionReceive {
		cash, err = NewLedgerPosting(v, p.CashAccount, p.PaidAmount, decimal.Zero, PostingSourceHost)
		require.NoError(t, err)
		party, err = NewLedgerPosting(v, p.PartyAccount, decimal.Zero, p.PaidAmount, PostingSourceHost)
		require.NoError(t, err)
	} else {
		party, err = NewLedgerPosting(v, p.PartyAccount, p.PaidAmount, decimal.Zero, PostingSourceHost)
		require.NoError(t, err)
		cash, err = NewLedgerPosting(v, p.CashAccount, decimal.Zero, p.PaidAmount, PostingSourceHost)
		require.NoError(t, err)
	}
	return []LedgerPosting{*cash, *party}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var de *shared.DomainError
	if assert.True(t, errors.As(err, &de), "expected a domain error, got %v", err) {
		assert.Equal(t, code, de.Code)
	}
}
