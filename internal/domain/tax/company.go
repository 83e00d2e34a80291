package tax

import (
	"strings"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TaxSettings holds the company-level Thai tax configuration
type TaxSettings struct {
	ServiceBusinessEnabled     bool             `gorm:"not null;default:false"`
	ConstructionServiceEnabled bool             `gorm:"not null;default:false"`
	DefaultWHTRate             *decimal.Decimal `gorm:"type:decimal(5,2)"`
	DefaultRetentionRate       *decimal.Decimal `gorm:"type:decimal(5,2)"`

	// Sales side: tax withheld by customers and VAT collected
	WHTAssetAccount       string `gorm:"type:varchar(64)"`
	RetentionAssetAccount string `gorm:"type:varchar(64)"`
	VATUndueAccount       string `gorm:"type:varchar(64)"`
	VATAccount            string `gorm:"type:varchar(64)"`

	// Purchase side: tax withheld from suppliers and input VAT
	WHTPayableAccount       string `gorm:"type:varchar(64)"`
	RetentionPayableAccount string `gorm:"type:varchar(64)"`
	PurchaseVATUndueAccount string `gorm:"type:varchar(64)"`
	PurchaseVATAccount      string `gorm:"type:varchar(64)"`
}

// Validate checks that configured rates are percentages
func (s TaxSettings) Validate() error {
	for name, rate := range map[string]*decimal.Decimal{
		"default_wht_rate":       s.DefaultWHTRate,
		"default_retention_rate": s.DefaultRetentionRate,
	} {
		if rate != nil && (rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100))) {
			return shared.NewDomainErrorf("INVALID_RATE", "%s must be between 0 and 100", name)
		}
	}
	return nil
}

// Company is the legal entity that owns the books and issues certificates
type Company struct {
	shared.BaseAggregateRoot
	Name     string      `gorm:"type:varchar(200);not null"`
	TaxID    string      `gorm:"type:varchar(20)"`
	Address  string      `gorm:"type:text"`
	Settings TaxSettings `gorm:"embedded;embeddedPrefix:tax_"`
}

// TableName returns the table name for GORM
func (Company) TableName() string {
	return "companies"
}

// NewCompany creates a company with no tax features enabled
func NewCompany(name, taxID string) (*Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Company name cannot be empty")
	}
	return &Company{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		TaxID:             strings.TrimSpace(taxID),
	}, nil
}

// UpdateSettings replaces the tax settings
func (c *Company) UpdateSettings(settings TaxSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	c.Settings = settings
	c.Touch()
	return nil
}

// AsPayer returns the company identity printed on certificates it issues
func (c *Company) AsPayer() CertificateParty {
	return CertificateParty{
		Name:    c.Name,
		TaxID:   c.TaxID,
		Address: c.Address,
	}
}
