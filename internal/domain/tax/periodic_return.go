package tax

import (
	"sort"
	"time"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodicReturnStatus is the filing state of a periodic return
type PeriodicReturnStatus string

const (
	PeriodicReturnOpen  PeriodicReturnStatus = "OPEN"
	PeriodicReturnFiled PeriodicReturnStatus = "FILED"
)

// PeriodicReturnLine is one certificate as listed on a return
type PeriodicReturnLine struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ReturnID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo            int             `gorm:"not null"`
	CertificateID     uuid.UUID       `gorm:"type:uuid;not null"`
	CertificateNumber string          `gorm:"type:varchar(40);not null"`
	CertificateDate   time.Time       `gorm:"not null"`
	PayeeName         string          `gorm:"type:varchar(200)"`
	PayeeTaxID        string          `gorm:"type:varchar(20)"`
	PNDForm           PNDForm         `gorm:"type:varchar(10);not null"`
	IncomeType        IncomeType      `gorm:"type:varchar(10);not null"`
	TaxBase           decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	TaxAmount         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (PeriodicReturnLine) TableName() string {
	return "periodic_return_lines"
}

func (l PeriodicReturnLine) sameAs(o PeriodicReturnLine) bool {
	return l.LineNo == o.LineNo &&
		l.CertificateID == o.CertificateID &&
		l.CertificateNumber == o.CertificateNumber &&
		l.CertificateDate.Equal(o.CertificateDate) &&
		l.PayeeName == o.PayeeName &&
		l.PayeeTaxID == o.PayeeTaxID &&
		l.PNDForm == o.PNDForm &&
		l.IncomeType == o.IncomeType &&
		l.TaxBase.Equal(o.TaxBase) &&
		l.TaxRate.Equal(o.TaxRate) &&
		l.TaxAmount.Equal(o.TaxAmount)
}

// PeriodicReturn aggregates the issued certificates of one tax period. It is
// always rebuilt from scratch, never appended to.
type PeriodicReturn struct {
	shared.CompanyAggregateRoot
	TaxYear          int                  `gorm:"not null"`
	TaxMonth         int                  `gorm:"not null"`
	FormType         PNDForm              `gorm:"type:varchar(10);not null;default:''"` // empty lists every form
	Status           PeriodicReturnStatus `gorm:"type:varchar(20);not null;default:'OPEN'"`
	TotalTaxBase     decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	TotalTaxAmount   decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	CertificateCount int                  `gorm:"not null;default:0"`
	LastRebuiltAt    *time.Time
	FiledAt          *time.Time
	Lines            []PeriodicReturnLine `gorm:"foreignKey:ReturnID;references:ID"`
}

// TableName returns the table name for GORM
func (PeriodicReturn) TableName() string {
	return "periodic_returns"
}

// NewPeriodicReturn opens an empty return for a period
func NewPeriodicReturn(companyID uuid.UUID, period TaxPeriod, form PNDForm) (*PeriodicReturn, error) {
	if _, err := NewTaxPeriod(period.Year, period.Month); err != nil {
		return nil, shared.NewDomainError("INVALID_PERIOD", err.Error())
	}
	if form != "" && !form.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_PERIODIC_RETURN", "Unknown PND form %q", form)
	}
	return &PeriodicReturn{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		TaxYear:              period.Year,
		TaxMonth:             period.Month,
		FormType:             form,
		Status:               PeriodicReturnOpen,
		TotalTaxBase:         decimal.Zero,
		TotalTaxAmount:       decimal.Zero,
		Lines:                make([]PeriodicReturnLine, 0),
	}, nil
}

// Period returns the tax period of the return
func (r *PeriodicReturn) Period() TaxPeriod {
	return TaxPeriod{Year: r.TaxYear, Month: r.TaxMonth}
}

// IsFiled reports whether the return is locked
func (r *PeriodicReturn) IsFiled() bool {
	return r.Status == PeriodicReturnFiled
}

// Includes reports whether a certificate belongs on this return
func (r *PeriodicReturn) Includes(c *Certificate) bool {
	return c.CompanyID == r.CompanyID &&
		c.Status == CertificateStatusIssued &&
		c.TaxYear == r.TaxYear &&
		c.TaxMonth == r.TaxMonth &&
		(r.FormType == "" || c.PNDForm == r.FormType)
}

// Rebuild replaces the lines with exactly the issued certificates of the
// period, ordered by certificate number. It returns false and leaves the
// return untouched when the content would not change.
func (r *PeriodicReturn) Rebuild(certs []Certificate) (bool, error) {
	if r.IsFiled() {
		return false, shared.NewDomainErrorf(CodePeriodicReturnFiled,
			"periodic return for %s is already filed", r.Period())
	}

	selected := make([]*Certificate, 0, len(certs))
	for i := range certs {
		if r.Includes(&certs[i]) {
			selected = append(selected, &certs[i])
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Number < selected[j].Number
	})

	lines := make([]PeriodicReturnLine, 0, len(selected))
	base, amount := decimal.Zero, decimal.Zero
	for i, c := range selected {
		lines = append(lines, PeriodicReturnLine{
			// Same certificate, same line ID: re-rebuilds never churn keys.
			ID:                uuid.NewSHA1(r.ID, c.ID[:]),
			ReturnID:          r.ID,
			LineNo:            i + 1,
			CertificateID:     c.ID,
			CertificateNumber: c.Number,
			CertificateDate:   c.CertificateDate,
			PayeeName:         c.Payee.Name,
			PayeeTaxID:        c.Payee.TaxID,
			PNDForm:           c.PNDForm,
			IncomeType:        c.IncomeType,
			TaxBase:           c.TaxBase,
			TaxRate:           c.TaxRate,
			TaxAmount:         c.TaxAmount,
		})
		base = base.Add(c.TaxBase)
		amount = amount.Add(c.TaxAmount)
	}

	if r.sameLines(lines) && r.TotalTaxBase.Equal(base) && r.TotalTaxAmount.Equal(amount) {
		return false, nil
	}

	now := time.Now()
	r.Lines = lines
	r.TotalTaxBase = base
	r.TotalTaxAmount = amount
	r.CertificateCount = len(lines)
	r.LastRebuiltAt = &now
	r.Touch()
	r.IncrementVersion()
	r.AddDomainEvent(NewPeriodicReturnRebuiltEvent(r))
	return true, nil
}

func (r *PeriodicReturn) sameLines(lines []PeriodicReturnLine) bool {
	if len(r.Lines) != len(lines) {
		return false
	}
	for i := range lines {
		if !r.Lines[i].sameAs(lines[i]) {
			return false
		}
	}
	return true
}

// File locks the return; the reconciler skips filed returns
func (r *PeriodicReturn) File() error {
	if r.IsFiled() {
		return shared.NewDomainErrorf(CodePeriodicReturnFiled,
			"periodic return for %s is already filed", r.Period())
	}
	now := time.Now()
	r.Status = PeriodicReturnFiled
	r.FiledAt = &now
	r.Touch()
	r.IncrementVersion()
	return nil
}
