package tax

import (
	"strings"
	"time"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceKind distinguishes customer invoices from supplier bills
type InvoiceKind string

const (
	InvoiceKindSales    InvoiceKind = "SALES"
	InvoiceKindPurchase InvoiceKind = "PURCHASE"
)

// IsValid checks if the invoice kind is a known value
func (k InvoiceKind) IsValid() bool {
	return k == InvoiceKindSales || k == InvoiceKindPurchase
}

// SettledBy returns the payment direction that settles this kind of invoice
func (k InvoiceKind) SettledBy() PaymentDirection {
	if k == InvoiceKindPurchase {
		return DirectionPay
	}
	return DirectionReceive
}

// VATTreatment describes how output or input VAT is recognised on an invoice
type VATTreatment string

const (
	VATStandard  VATTreatment = "STANDARD"
	VATUndue     VATTreatment = "UNDUE"
	VATExempt    VATTreatment = "EXEMPT"
	VATZeroRated VATTreatment = "ZERO_RATED"
)

// IsValid checks if the VAT treatment is a known value
func (t VATTreatment) IsValid() bool {
	switch t {
	case VATStandard, VATUndue, VATExempt, VATZeroRated:
		return true
	}
	return false
}

// TaxBasis is the set of invoice tax totals an allocation is proportioned against
type TaxBasis struct {
	NetTotal  decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"net_total"`
	Retention decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"retention"`
	WHT       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"wht"`
	VATUndue  decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"vat_undue"`
}

// HasTaxComponents reports whether any of the three tax components is set
func (b TaxBasis) HasTaxComponents() bool {
	return b.Retention.IsPositive() || b.WHT.IsPositive() || b.VATUndue.IsPositive()
}

// Invoice is the host's customer invoice or supplier bill. The engine reads
// it and fills in its tax attributes on save; everything else is owned by the
// host.
type Invoice struct {
	shared.CompanyAggregateRoot
	Number            string           `gorm:"type:varchar(64);not null;index"`
	Kind              InvoiceKind      `gorm:"type:varchar(20);not null"`
	Party             Party            `gorm:"embedded;embeddedPrefix:party_"`
	PostingDate       time.Time        `gorm:"not null"`
	NetTotal          decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	VATAmount         decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	GrandTotal        decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	OutstandingAmount decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	VATTreatment      VATTreatment     `gorm:"type:varchar(20);not null"`
	IsService         bool             `gorm:"not null;default:false"`
	ApplyWHT          bool             `gorm:"not null;default:false"`
	ApplyRetention    bool             `gorm:"not null;default:false"`
	WHTRate           *decimal.Decimal `gorm:"type:decimal(5,2)"`
	RetentionRate     *decimal.Decimal `gorm:"type:decimal(5,2)"`
	WHTAmount         decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	RetentionAmount   decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	VATUndueAmount    decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (Invoice) TableName() string {
	return "invoices"
}

// InvoiceTerms carries the host-supplied commercial fields of an invoice
type InvoiceTerms struct {
	Number         string
	Kind           InvoiceKind
	Party          Party
	PostingDate    time.Time
	NetTotal       decimal.Decimal
	VATAmount      decimal.Decimal
	VATTreatment   VATTreatment
	IsService      bool
	ApplyWHT       bool
	ApplyRetention bool
	WHTRate        *decimal.Decimal
	RetentionRate  *decimal.Decimal
}

// NewInvoice creates an invoice with the whole grand total outstanding
func NewInvoice(companyID uuid.UUID, terms InvoiceTerms) (*Invoice, error) {
	inv := &Invoice{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
	}
	if err := inv.applyTerms(terms); err != nil {
		return nil, err
	}
	inv.OutstandingAmount = inv.GrandTotal
	return inv, nil
}

// Revise replaces the commercial fields, keeping the outstanding amount
// within the new grand total. Tax amounts are recomputed by ApplyTaxConfig.
func (i *Invoice) Revise(terms InvoiceTerms) error {
	if err := i.applyTerms(terms); err != nil {
		return err
	}
	if i.OutstandingAmount.GreaterThan(i.GrandTotal) {
		i.OutstandingAmount = i.GrandTotal
	}
	i.Touch()
	return nil
}

func (i *Invoice) applyTerms(t InvoiceTerms) error {
	if strings.TrimSpace(t.Number) == "" {
		return shared.NewDomainError("INVALID_INVOICE", "Invoice number cannot be empty")
	}
	if !t.Kind.IsValid() {
		return shared.NewDomainErrorf("INVALID_INVOICE", "Unknown invoice kind %q", t.Kind)
	}
	if t.VATTreatment == "" {
		t.VATTreatment = VATStandard
	}
	if !t.VATTreatment.IsValid() {
		return shared.NewDomainErrorf("INVALID_INVOICE", "Unknown VAT treatment %q", t.VATTreatment)
	}
	if !t.Party.Type.IsValid() {
		return shared.NewDomainErrorf("INVALID_INVOICE", "Unknown party type %q", t.Party.Type)
	}
	if t.NetTotal.IsNegative() || t.VATAmount.IsNegative() {
		return shared.NewDomainError(CodeInvalidAmount, "Invoice amounts cannot be negative")
	}
	if err := validateRate("wht_rate", t.WHTRate); err != nil {
		return err
	}
	if err := validateRate("retention_rate", t.RetentionRate); err != nil {
		return err
	}
	if (t.VATTreatment == VATExempt || t.VATTreatment == VATZeroRated) && t.VATAmount.IsPositive() {
		return shared.NewDomainErrorf("INVALID_INVOICE", "VAT amount must be zero for %s invoices", t.VATTreatment)
	}

	i.Number = strings.TrimSpace(t.Number)
	i.Kind = t.Kind
	i.Party = t.Party
	i.PostingDate = t.PostingDate
	i.NetTotal = shared.RoundCurrency(t.NetTotal)
	i.VATAmount = shared.RoundCurrency(t.VATAmount)
	i.GrandTotal = i.NetTotal.Add(i.VATAmount)
	i.VATTreatment = t.VATTreatment
	i.IsService = t.IsService
	i.ApplyWHT = t.ApplyWHT
	i.ApplyRetention = t.ApplyRetention
	i.WHTRate = t.WHTRate
	i.RetentionRate = t.RetentionRate
	return nil
}

// SetOutstanding records the amount still open on the invoice
func (i *Invoice) SetOutstanding(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.GreaterThan(i.GrandTotal) {
		return shared.NewDomainErrorf(CodeInvalidAmount,
			"Outstanding amount %s must be between 0 and the invoice total %s", amount, i.GrandTotal)
	}
	i.OutstandingAmount = shared.RoundCurrency(amount)
	i.Touch()
	return nil
}

// ApplyTaxConfig fills absent rates from cfg and recomputes the three tax
// amounts. Retention and WHT are computed on the pre-VAT net total.
func (i *Invoice) ApplyTaxConfig(cfg TaxConfig) {
	i.WHTAmount = decimal.Zero
	i.RetentionAmount = decimal.Zero
	i.VATUndueAmount = decimal.Zero

	if i.ApplyWHT && cfg.ServiceBusinessEnabled {
		if i.WHTRate == nil {
			rate := cfg.WHTRate
			i.WHTRate = &rate
		}
		i.WHTAmount = CalculateWHT(i.NetTotal, *i.WHTRate)
	}
	if i.ApplyRetention && cfg.ConstructionServiceEnabled {
		if i.RetentionRate == nil {
			rate := cfg.RetentionRate
			i.RetentionRate = &rate
		}
		i.RetentionAmount = CalculateWHT(i.NetTotal, *i.RetentionRate)
	}
	if i.VATTreatment == VATUndue {
		i.VATUndueAmount = i.VATAmount
	}
}

// Validate checks that every tax amount lies within [0, grand total]
func (i *Invoice) Validate() error {
	for name, amount := range map[string]decimal.Decimal{
		"outstanding_amount": i.OutstandingAmount,
		"retention_amount":   i.RetentionAmount,
		"wht_amount":         i.WHTAmount,
		"vat_undue_amount":   i.VATUndueAmount,
	} {
		if amount.IsNegative() || amount.GreaterThan(i.GrandTotal) {
			return shared.NewDomainErrorf(CodeInvalidAmount, "%s must be between 0 and the invoice total", name)
		}
	}
	return nil
}

// TaxBasis snapshots the tax totals allocations are proportioned against
func (i *Invoice) TaxBasis() TaxBasis {
	return TaxBasis{
		NetTotal:  i.NetTotal,
		Retention: i.RetentionAmount,
		WHT:       i.WHTAmount,
		VATUndue:  i.VATUndueAmount,
	}
}

// HasTaxComponents reports whether any tax component is flagged on the invoice
func (i *Invoice) HasTaxComponents() bool {
	return i.TaxBasis().HasTaxComponents()
}

func validateRate(name string, rate *decimal.Decimal) error {
	if rate == nil {
		return nil
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewDomainErrorf("INVALID_RATE", "%s must be between 0 and 100", name)
	}
	return nil
}
