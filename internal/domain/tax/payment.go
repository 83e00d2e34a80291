package tax

import (
	"strings"
	"time"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentDirection tells whether money comes in from a customer or goes out to a supplier
type PaymentDirection string

const (
	DirectionReceive PaymentDirection = "RECEIVE"
	DirectionPay     PaymentDirection = "PAY"
)

// IsValid checks if the direction is a known value
func (d PaymentDirection) IsValid() bool {
	return d == DirectionReceive || d == DirectionPay
}

// PaymentStatus is the document status of a payment
type PaymentStatus string

const (
	PaymentStatusDraft     PaymentStatus = "DRAFT"
	PaymentStatusSubmitted PaymentStatus = "SUBMITTED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// IsValid checks if the status is a known value
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusDraft, PaymentStatusSubmitted, PaymentStatusCancelled:
		return true
	}
	return false
}

// CanModify returns true while allocations may still change
func (s PaymentStatus) CanModify() bool {
	return s == PaymentStatusDraft
}

// CanCancel returns true if the payment can be reversed
func (s PaymentStatus) CanCancel() bool {
	return s == PaymentStatusSubmitted
}

// PaymentAllocation applies part of a payment to one invoice
type PaymentAllocation struct {
	shared.BaseEntity
	PaymentID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceNumber     string          `gorm:"type:varchar(64);not null"`
	IsService         bool            `gorm:"not null;default:false"`
	AllocatedAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	OutstandingAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"` // as read when allocated
	Basis             TaxBasis        `gorm:"embedded;embeddedPrefix:basis_"`
	RetentionShare    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	WHTShare          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	VATUndueShare     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TaxBaseShare      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	NetPayable        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (PaymentAllocation) TableName() string {
	return "payment_allocations"
}

func (a *PaymentAllocation) recalculate() {
	s := AllocateShares(a.Basis, a.AllocatedAmount, a.OutstandingAmount)
	a.RetentionShare = s.Retention
	a.WHTShare = s.WHT
	a.VATUndueShare = s.VATUndue
	a.TaxBaseShare = s.TaxBase
	a.NetPayable = s.NetPayable
}

// Payment is a receipt from a customer or a payment to a supplier, allocated
// against one or more invoices
type Payment struct {
	shared.CompanyAggregateRoot
	Number         string              `gorm:"type:varchar(64);not null;index"`
	Direction      PaymentDirection    `gorm:"type:varchar(20);not null"`
	Party          Party               `gorm:"embedded;embeddedPrefix:party_"`
	PaidAmount     decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	PostingDate    time.Time           `gorm:"not null"`
	CashAccount    string              `gorm:"type:varchar(64);not null"`
	PartyAccount   string              `gorm:"type:varchar(64);not null"`
	ApplyWHT       bool                `gorm:"not null;default:false"`
	WHTRate        *decimal.Decimal    `gorm:"type:decimal(5,2)"`
	Status         PaymentStatus       `gorm:"type:varchar(20);not null;default:'DRAFT'"`
	TotalRetention decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	TotalWHT       decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	TotalVATUndue  decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	NetCashAmount  decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	HasRetention   bool                `gorm:"not null;default:false"`
	HasWHT         bool                `gorm:"not null;default:false"`
	HasThaiTaxes   bool                `gorm:"not null;default:false"`
	CertificateID  *uuid.UUID          `gorm:"type:uuid"`
	SubmittedAt    *time.Time          `gorm:""`
	CancelledAt    *time.Time          `gorm:""`
	Allocations    []PaymentAllocation `gorm:"foreignKey:PaymentID;references:ID"`
}

// TableName returns the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// PaymentTerms carries the host-supplied header of a payment
type PaymentTerms struct {
	Number       string
	Direction    PaymentDirection
	Party        Party
	PaidAmount   decimal.Decimal
	PostingDate  time.Time
	CashAccount  string
	PartyAccount string
	ApplyWHT     bool
	WHTRate      *decimal.Decimal
}

// NewPayment creates a draft payment
func NewPayment(companyID uuid.UUID, terms PaymentTerms) (*Payment, error) {
	if strings.TrimSpace(terms.Number) == "" {
		return nil, shared.NewDomainError("INVALID_PAYMENT", "Payment number cannot be empty")
	}
	if !terms.Direction.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_PAYMENT", "Unknown payment direction %q", terms.Direction)
	}
	if !terms.PaidAmount.IsPositive() {
		return nil, shared.NewDomainError(CodeInvalidAmount, "Paid amount must be positive")
	}
	if terms.CashAccount == "" || terms.PartyAccount == "" {
		return nil, shared.NewDomainError("INVALID_PAYMENT", "Cash and party accounts are required")
	}
	if terms.PostingDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_PAYMENT", "Posting date is required")
	}
	if err := validateRate("wht_rate", terms.WHTRate); err != nil {
		return nil, err
	}

	p := &Payment{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Number:               strings.TrimSpace(terms.Number),
		Direction:            terms.Direction,
		Party:                terms.Party,
		PaidAmount:           shared.RoundCurrency(terms.PaidAmount),
		PostingDate:          terms.PostingDate,
		CashAccount:          terms.CashAccount,
		PartyAccount:         terms.PartyAccount,
		ApplyWHT:             terms.ApplyWHT,
		WHTRate:              terms.WHTRate,
		Status:               PaymentStatusDraft,
		Allocations:          make([]PaymentAllocation, 0),
	}
	p.Recalculate()
	return p, nil
}

// AddAllocation applies amount of this payment to inv, snapshotting the
// invoice's outstanding amount and tax totals as they are right now
func (p *Payment) AddAllocation(inv *Invoice, amount decimal.Decimal) error {
	if !p.Status.CanModify() {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot allocate a payment in %s status", p.Status)
	}
	if inv == nil {
		return shared.NewDomainError("INVALID_INVOICE", "Invoice is required")
	}
	if inv.CompanyID != p.CompanyID {
		return shared.NewDomainError(CodeInvoiceMismatch, "Invoice belongs to a different company")
	}
	if inv.Kind.SettledBy() != p.Direction {
		return shared.NewDomainErrorf(CodeInvoiceMismatch,
			"A %s invoice cannot be settled by a %s payment", inv.Kind, p.Direction)
	}
	if amount.IsNegative() {
		return shared.NewDomainError(CodeInvalidAmount, "Allocated amount cannot be negative")
	}
	for _, a := range p.Allocations {
		if a.InvoiceID == inv.ID {
			return shared.NewDomainErrorf(CodeDuplicateAllocation, "Invoice %s is already allocated", inv.Number)
		}
	}
	if p.AllocatedTotal().Add(amount).GreaterThan(p.PaidAmount) {
		return shared.NewDomainError(CodeAllocationExceedsPaid, "Total allocated amount exceeds the paid amount")
	}

	p.Allocations = append(p.Allocations, PaymentAllocation{
		BaseEntity:        shared.NewBaseEntity(),
		PaymentID:         p.ID,
		InvoiceID:         inv.ID,
		InvoiceNumber:     inv.Number,
		IsService:         inv.IsService,
		AllocatedAmount:   shared.RoundCurrency(amount),
		OutstandingAmount: inv.OutstandingAmount,
		Basis:             inv.TaxBasis(),
	})
	p.Recalculate()
	return nil
}

// UpdateAllocation changes the amount allocated to an invoice, keeping the
// original outstanding snapshot
func (p *Payment) UpdateAllocation(invoiceID uuid.UUID, amount decimal.Decimal) error {
	if !p.Status.CanModify() {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot allocate a payment in %s status", p.Status)
	}
	if amount.IsNegative() {
		return shared.NewDomainError(CodeInvalidAmount, "Allocated amount cannot be negative")
	}
	idx := p.allocationIndex(invoiceID)
	if idx < 0 {
		return shared.ErrNotFound
	}
	others := p.AllocatedTotal().Sub(p.Allocations[idx].AllocatedAmount)
	if others.Add(amount).GreaterThan(p.PaidAmount) {
		return shared.NewDomainError(CodeAllocationExceedsPaid, "Total allocated amount exceeds the paid amount")
	}
	p.Allocations[idx].AllocatedAmount = shared.RoundCurrency(amount)
	p.Recalculate()
	return nil
}

// RemoveAllocation drops the allocation against an invoice
func (p *Payment) RemoveAllocation(invoiceID uuid.UUID) error {
	if !p.Status.CanModify() {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot allocate a payment in %s status", p.Status)
	}
	idx := p.allocationIndex(invoiceID)
	if idx < 0 {
		return shared.ErrNotFound
	}
	p.Allocations = append(p.Allocations[:idx], p.Allocations[idx+1:]...)
	p.Recalculate()
	return nil
}

func (p *Payment) allocationIndex(invoiceID uuid.UUID) int {
	for i := range p.Allocations {
		if p.Allocations[i].InvoiceID == invoiceID {
			return i
		}
	}
	return -1
}

// AllocatedTotal sums the allocated amounts
func (p *Payment) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Allocations {
		total = total.Add(a.AllocatedAmount)
	}
	return total
}

// ApplyTaxConfig fills the WHT rate from company defaults when the user left it blank
func (p *Payment) ApplyTaxConfig(cfg TaxConfig) {
	if p.ApplyWHT && p.WHTRate == nil {
		rate := cfg.WHTRate
		p.WHTRate = &rate
	}
}

// EffectiveWHTRate returns the rate printed on the certificate
func (p *Payment) EffectiveWHTRate(cfg TaxConfig) decimal.Decimal {
	return cfg.EffectiveWHTRate(p.WHTRate)
}

// Recalculate runs the proportional allocator over every allocation and
// rolls the shares up into the header totals. Header totals are always the
// exact sum of the per-allocation shares.
func (p *Payment) Recalculate() {
	retention, wht, vatUndue := decimal.Zero, decimal.Zero, decimal.Zero
	for i := range p.Allocations {
		a := &p.Allocations[i]
		a.PaymentID = p.ID
		a.recalculate()
		retention = retention.Add(a.RetentionShare)
		wht = wht.Add(a.WHTShare)
		vatUndue = vatUndue.Add(a.VATUndueShare)
	}

	p.TotalRetention = retention
	p.TotalWHT = wht
	p.TotalVATUndue = vatUndue
	p.HasRetention = retention.IsPositive()
	p.HasWHT = wht.IsPositive()
	p.HasThaiTaxes = p.HasRetention || p.HasWHT || vatUndue.IsPositive()
	p.NetCashAmount = shared.RoundCurrency(p.PaidAmount.Sub(retention).Sub(wht))
}

// CashReduction is how much the cash posting shrinks by: retention plus WHT
func (p *Payment) CashReduction() decimal.Decimal {
	return shared.SumDecimals(p.TotalRetention, p.TotalWHT)
}

// Submit freezes the payment
func (p *Payment) Submit() error {
	if p.Status != PaymentStatusDraft {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot submit a payment in %s status", p.Status)
	}
	p.Recalculate()
	now := time.Now()
	p.Status = PaymentStatusSubmitted
	p.SubmittedAt = &now
	p.Touch()
	p.AddDomainEvent(NewPaymentSubmittedEvent(p))
	return nil
}

// Cancel reverses a submitted payment. Derived records are reversed by the
// caller; the payment itself is kept for audit.
func (p *Payment) Cancel() error {
	if !p.Status.CanCancel() {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot cancel a payment in %s status", p.Status)
	}
	now := time.Now()
	p.Status = PaymentStatusCancelled
	p.CancelledAt = &now
	p.Touch()
	p.AddDomainEvent(NewPaymentCancelledEvent(p))
	return nil
}

// LinkCertificate records the certificate issued for this payment
func (p *Payment) LinkCertificate(certificateID uuid.UUID) {
	p.CertificateID = &certificateID
	p.Touch()
}

// Period is the tax period the payment falls in
func (p *Payment) Period() TaxPeriod {
	return PeriodOf(p.PostingDate)
}

// Voucher identifies the payment in the ledger
func (p *Payment) Voucher() Voucher {
	return Voucher{CompanyID: p.CompanyID, ID: p.ID, Type: VoucherTypePayment, PostingDate: p.PostingDate}
}

// HostPostings builds the host's own cash and party entries for the full
// paid amount. Tax posting later reduces the cash side.
func (p *Payment) HostPostings() ([]*LedgerPosting, error) {
	v := p.Voucher()
	cashDebit, cashCredit := p.PaidAmount, decimal.Zero
	if p.Direction == DirectionPay {
		cashDebit, cashCredit = decimal.Zero, p.PaidAmount
	}
	cash, err := NewLedgerPosting(v, p.CashAccount, cashDebit, cashCredit, PostingSourceHost)
	if err != nil {
		return nil, err
	}
	party, err := NewLedgerPosting(v, p.PartyAccount, cashCredit, cashDebit, PostingSourceHost)
	if err != nil {
		return nil, err
	}
	return []*LedgerPosting{cash, party.WithParty(p.Party)}, nil
}
