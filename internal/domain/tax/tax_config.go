package tax

import (
	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Fallback rates used when neither the document nor the company sets one
var (
	FallbackWHTRate       = decimal.NewFromInt(3)
	FallbackRetentionRate = decimal.NewFromInt(5)
)

// AccountSet names the four accounts a tax posting run touches
type AccountSet struct {
	Retention string
	WHT       string
	VATUndue  string
	VAT       string
}

// Codes returns the non-empty account codes in the set
func (s AccountSet) Codes() []string {
	codes := make([]string, 0, 4)
	for _, c := range []string{s.Retention, s.WHT, s.VATUndue, s.VAT} {
		if c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

// Contains reports whether code is one of the set's accounts
func (s AccountSet) Contains(code string) bool {
	if code == "" {
		return false
	}
	return code == s.Retention || code == s.WHT || code == s.VATUndue || code == s.VAT
}

// TaxConfig is the company tax configuration resolved once per operation and
// passed down explicitly.
type TaxConfig struct {
	ServiceBusinessEnabled     bool
	ConstructionServiceEnabled bool
	WHTRate                    decimal.Decimal
	RetentionRate              decimal.Decimal
	ReceiveAccounts            AccountSet
	PayAccounts                AccountSet
}

// DefaultTaxConfig is what callers get when no company configuration exists
func DefaultTaxConfig() TaxConfig {
	return TaxConfig{
		WHTRate:       FallbackWHTRate,
		RetentionRate: FallbackRetentionRate,
	}
}

// ResolveTaxConfig builds the config for a company. ok is false when company
// is nil, in which case the returned config is DefaultTaxConfig.
func ResolveTaxConfig(company *Company) (cfg TaxConfig, ok bool) {
	if company == nil {
		return DefaultTaxConfig(), false
	}
	s := company.Settings
	cfg = TaxConfig{
		ServiceBusinessEnabled:     s.ServiceBusinessEnabled,
		ConstructionServiceEnabled: s.ConstructionServiceEnabled,
		WHTRate:                    firstRate(s.DefaultWHTRate, FallbackWHTRate),
		RetentionRate:              firstRate(s.DefaultRetentionRate, FallbackRetentionRate),
		ReceiveAccounts: AccountSet{
			Retention: s.RetentionAssetAccount,
			WHT:       s.WHTAssetAccount,
			VATUndue:  s.VATUndueAccount,
			VAT:       s.VATAccount,
		},
		PayAccounts: AccountSet{
			Retention: s.RetentionPayableAccount,
			WHT:       s.WHTPayableAccount,
			VATUndue:  s.PurchaseVATUndueAccount,
			VAT:       s.PurchaseVATAccount,
		},
	}
	return cfg, true
}

// AccountsFor returns the account set used for a payment direction
func (c TaxConfig) AccountsFor(direction PaymentDirection) AccountSet {
	if direction == DirectionPay {
		return c.PayAccounts
	}
	return c.ReceiveAccounts
}

// EffectiveWHTRate applies the override-wins rule
func (c TaxConfig) EffectiveWHTRate(override *decimal.Decimal) decimal.Decimal {
	return firstRate(override, c.WHTRate)
}

// EffectiveRetentionRate applies the override-wins rule
func (c TaxConfig) EffectiveRetentionRate(override *decimal.Decimal) decimal.Decimal {
	return firstRate(override, c.RetentionRate)
}

func firstRate(override *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return fallback
}

// CalculateWHT returns round(base * rate / 100, 2). Non-positive inputs yield zero.
func CalculateWHT(base, rate decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() || !rate.IsPositive() {
		return decimal.Zero
	}
	return shared.PercentOf(base, rate)
}
