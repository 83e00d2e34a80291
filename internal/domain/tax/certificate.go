package tax

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCertificatePrefix is the document prefix of withholding tax certificates
const DefaultCertificatePrefix = "WHTC"

// MaxCertificateSequence is the largest number a 5-digit sequence can hold
const MaxCertificateSequence = 99999

// CertificateStatus is the lifecycle state of a certificate
type CertificateStatus string

const (
	CertificateStatusDraft     CertificateStatus = "DRAFT"
	CertificateStatusIssued    CertificateStatus = "ISSUED"
	CertificateStatusCancelled CertificateStatus = "CANCELLED"
)

// IsValid checks if the status is a known value
func (s CertificateStatus) IsValid() bool {
	switch s {
	case CertificateStatusDraft, CertificateStatusIssued, CertificateStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo allows Draft to Issued and Issued to Cancelled, nothing else
func (s CertificateStatus) CanTransitionTo(target CertificateStatus) bool {
	switch s {
	case CertificateStatusDraft:
		return target == CertificateStatusIssued
	case CertificateStatusIssued:
		return target == CertificateStatusCancelled
	}
	return false
}

// IsActive reports whether the certificate still counts against its payment
func (s CertificateStatus) IsActive() bool {
	return s != CertificateStatusCancelled
}

// CertificateNumber is the parsed form of WHTC-YYMM-NNNNN
type CertificateNumber struct {
	Prefix   string
	YY       int
	MM       int
	Sequence int64
}

// FormatCertificateNumber renders prefix-YYMM-NNNNN for a period
func FormatCertificateNumber(prefix string, period TaxPeriod, sequence int64) (CertificateNumber, error) {
	if sequence < 1 || sequence > MaxCertificateSequence {
		return CertificateNumber{}, shared.NewDomainErrorf(CodeSequenceExhausted,
			"certificate sequence %d for %s-%s is outside 1..%d", sequence, prefix, period.Code(), MaxCertificateSequence)
	}
	if prefix == "" {
		prefix = DefaultCertificatePrefix
	}
	return CertificateNumber{
		Prefix:   prefix,
		YY:       period.ShortYear(),
		MM:       period.Month,
		Sequence: sequence,
	}, nil
}

// String implements fmt.Stringer
func (n CertificateNumber) String() string {
	return fmt.Sprintf("%s-%02d%02d-%05d", n.Prefix, n.YY, n.MM, n.Sequence)
}

// ParseCertificateNumber parses prefix-YYMM-NNNNN. The prefix may itself
// contain dashes.
func ParseCertificateNumber(s string) (CertificateNumber, error) {
	invalid := shared.NewDomainErrorf(CodeInvalidCertificateNum, "invalid certificate number %q", s)
	last := strings.LastIndex(s, "-")
	if last < 0 {
		return CertificateNumber{}, invalid
	}
	mid := strings.LastIndex(s[:last], "-")
	if mid <= 0 {
		return CertificateNumber{}, invalid
	}
	prefix, yymm, seq := s[:mid], s[mid+1:last], s[last+1:]
	if len(yymm) != 4 || len(seq) != 5 || !isDigits(yymm) || !isDigits(seq) {
		return CertificateNumber{}, invalid
	}
	yy, _ := strconv.Atoi(yymm[:2])
	mm, _ := strconv.Atoi(yymm[2:])
	n, _ := strconv.ParseInt(seq, 10, 64)
	if mm < 1 || mm > 12 || n < 1 {
		return CertificateNumber{}, invalid
	}
	return CertificateNumber{Prefix: prefix, YY: yy, MM: mm, Sequence: n}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// SequenceKey names the counter a certificate number is drawn from. One
// counter exists per company, prefix and YYMM.
func SequenceKey(companyID uuid.UUID, prefix string, period TaxPeriod) string {
	if prefix == "" {
		prefix = DefaultCertificatePrefix
	}
	return fmt.Sprintf("%s:%s-%s", companyID, prefix, period.Code())
}

// Eligibility reasons
const (
	ReasonWrongDirection      = "WRONG_DIRECTION"
	ReasonWHTNotApplied       = "WHT_NOT_APPLIED"
	ReasonZeroWHT             = "ZERO_WHT"
	ReasonPaymentCancelled    = "PAYMENT_CANCELLED"
	ReasonPaymentNotSubmitted = "PAYMENT_NOT_SUBMITTED"
)

// Eligibility is the structured answer to "can this payment carry a
// certificate". A payment that does not qualify is a normal outcome, not an error.
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}

// CheckEligibility checks the preconditions that apply to previews and
// issuance alike
func CheckEligibility(p *Payment) Eligibility {
	reasons := make([]string, 0)
	if p.Direction != DirectionPay {
		reasons = append(reasons, ReasonWrongDirection)
	}
	if !p.ApplyWHT {
		reasons = append(reasons, ReasonWHTNotApplied)
	}
	if !p.TotalWHT.IsPositive() {
		reasons = append(reasons, ReasonZeroWHT)
	}
	if p.Status == PaymentStatusCancelled {
		reasons = append(reasons, ReasonPaymentCancelled)
	}
	return Eligibility{Eligible: len(reasons) == 0, Reasons: reasons}
}

// CheckIssuable adds the requirement that the payment is submitted
func CheckIssuable(p *Payment) Eligibility {
	e := CheckEligibility(p)
	if p.Status == PaymentStatusDraft {
		e.Reasons = append(e.Reasons, ReasonPaymentNotSubmitted)
		e.Eligible = false
	}
	return e
}

// CertificatePreview holds the fields a certificate would be issued with
type CertificatePreview struct {
	PaymentID         uuid.UUID        `json:"payment_id"`
	PaymentNumber     string           `json:"payment_number"`
	CertificateDate   time.Time        `json:"certificate_date"`
	Period            TaxPeriod        `json:"period"`
	Payer             CertificateParty `json:"payer"`
	Payee             CertificateParty `json:"payee"`
	PNDForm           PNDForm          `json:"pnd_form"`
	IncomeType        IncomeType       `json:"income_type"`
	IncomeDescription string           `json:"income_description"`
	TaxBase           decimal.Decimal  `json:"tax_base"`
	TaxRate           decimal.Decimal  `json:"tax_rate"`
	TaxAmount         decimal.Decimal  `json:"tax_amount"`
}

// PrepareCertificate computes the preview fields for an eligible payment.
// The tax base is the pre-tax share of every WHT-bearing allocation.
func PrepareCertificate(p *Payment, payer CertificateParty, cfg TaxConfig) CertificatePreview {
	base := decimal.Zero
	for _, a := range p.Allocations {
		if a.WHTShare.IsPositive() {
			base = base.Add(a.TaxBaseShare)
		}
	}
	income := ClassifyIncome(p.Allocations)
	return CertificatePreview{
		PaymentID:       p.ID,
		PaymentNumber:   p.Number,
		CertificateDate: p.PostingDate,
		Period:          p.Period(),
		Payer:           payer,
		Payee: CertificateParty{
			Name:    p.Party.Name,
			TaxID:   p.Party.TaxID,
			Address: p.Party.Address,
		},
		PNDForm:           ClassifyPND(p.Party),
		IncomeType:        income,
		IncomeDescription: income.Description(),
		TaxBase:           base,
		TaxRate:           p.EffectiveWHTRate(cfg),
		TaxAmount:         p.TotalWHT,
	}
}

// Certificate is a withholding tax certificate (50 Tawi). Its number is
// assigned on creation and never reused.
type Certificate struct {
	shared.CompanyAggregateRoot
	Number            string            `gorm:"type:varchar(40);not null;index"`
	Prefix            string            `gorm:"type:varchar(20);not null"`
	Sequence          int64             `gorm:"not null"`
	CertificateDate   time.Time         `gorm:"not null"`
	TaxYear           int               `gorm:"not null;index:idx_certificate_period,priority:1"`
	TaxMonth          int               `gorm:"not null;index:idx_certificate_period,priority:2"`
	Payer             CertificateParty  `gorm:"embedded;embeddedPrefix:payer_"`
	Payee             CertificateParty  `gorm:"embedded;embeddedPrefix:payee_"`
	PNDForm           PNDForm           `gorm:"type:varchar(10);not null"`
	IncomeType        IncomeType        `gorm:"type:varchar(10);not null"`
	IncomeDescription string            `gorm:"type:varchar(200)"`
	TaxBase           decimal.Decimal   `gorm:"type:decimal(18,2);not null"`
	TaxRate           decimal.Decimal   `gorm:"type:decimal(5,2);not null"`
	TaxAmount         decimal.Decimal   `gorm:"type:decimal(18,2);not null"`
	PaymentID         uuid.UUID         `gorm:"type:uuid;not null;index"`
	PaymentNumber     string            `gorm:"type:varchar(64);not null"`
	Status            CertificateStatus `gorm:"type:varchar(20);not null;default:'DRAFT'"`
	IssuedAt          *time.Time
	CancelledAt       *time.Time
	CancelReason      string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Certificate) TableName() string {
	return "certificates"
}

// NewCertificate creates a draft certificate from a preview and its number
func NewCertificate(companyID uuid.UUID, preview CertificatePreview, number CertificateNumber) (*Certificate, error) {
	if !preview.TaxAmount.IsPositive() {
		return nil, shared.NewDomainError(CodeInvalidAmount, "Certificate tax amount must be positive")
	}
	if !preview.PNDForm.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_CERTIFICATE", "Unknown PND form %q", preview.PNDForm)
	}
	if number.YY != preview.Period.ShortYear() || number.MM != preview.Period.Month {
		return nil, shared.NewDomainErrorf(CodeInvalidCertificateNum,
			"certificate number %s does not match period %s", number, preview.Period)
	}
	return &Certificate{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Number:               number.String(),
		Prefix:               number.Prefix,
		Sequence:             number.Sequence,
		CertificateDate:      preview.CertificateDate,
		TaxYear:              preview.Period.Year,
		TaxMonth:             preview.Period.Month,
		Payer:                preview.Payer,
		Payee:                preview.Payee,
		PNDForm:              preview.PNDForm,
		IncomeType:           preview.IncomeType,
		IncomeDescription:    preview.IncomeDescription,
		TaxBase:              preview.TaxBase,
		TaxRate:              preview.TaxRate,
		TaxAmount:            preview.TaxAmount,
		PaymentID:            preview.PaymentID,
		PaymentNumber:        preview.PaymentNumber,
		Status:               CertificateStatusDraft,
	}, nil
}

// Period returns the tax period the certificate is filed in
func (c *Certificate) Period() TaxPeriod {
	return TaxPeriod{Year: c.TaxYear, Month: c.TaxMonth}
}

// Issue moves a draft certificate to Issued
func (c *Certificate) Issue() error {
	if !c.Status.CanTransitionTo(CertificateStatusIssued) {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot issue a certificate in %s status", c.Status)
	}
	now := time.Now()
	c.Status = CertificateStatusIssued
	c.IssuedAt = &now
	c.Touch()
	c.IncrementVersion()
	c.AddDomainEvent(NewCertificateIssuedEvent(c))
	return nil
}

// Cancel voids an issued certificate. The number stays consumed.
func (c *Certificate) Cancel(reason string) error {
	if !c.Status.CanTransitionTo(CertificateStatusCancelled) {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot cancel a certificate in %s status", c.Status)
	}
	now := time.Now()
	c.Status = CertificateStatusCancelled
	c.CancelledAt = &now
	c.CancelReason = reason
	c.Touch()
	c.IncrementVersion()
	c.AddDomainEvent(NewCertificateCancelledEvent(c))
	return nil
}
