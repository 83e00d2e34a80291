package tax

import (
	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AllocationShares is the slice of an invoice's tax components carried by one
// allocation
type AllocationShares struct {
	Retention  decimal.Decimal
	WHT        decimal.Decimal
	VATUndue   decimal.Decimal
	TaxBase    decimal.Decimal // pre-tax amount the WHT share was computed on
	NetPayable decimal.Decimal
}

// AllocateShares proportions each tax component of basis by
// allocated/outstanding. Every component is rounded to satang on its own, so a
// rounding error in one never leaks into another. outstanding must be the
// snapshot taken when the allocation was made.
func AllocateShares(basis TaxBasis, allocated, outstanding decimal.Decimal) AllocationShares {
	shares := AllocationShares{
		Retention:  decimal.Zero,
		WHT:        decimal.Zero,
		VATUndue:   decimal.Zero,
		TaxBase:    decimal.Zero,
		NetPayable: shared.RoundCurrency(allocated),
	}
	if !allocated.IsPositive() {
		shares.NetPayable = decimal.Zero
		if allocated.IsNegative() {
			shares.NetPayable = shared.RoundCurrency(allocated)
		}
		return shares
	}
	if !outstanding.IsPositive() || !basis.HasTaxComponents() {
		return shares
	}

	full := allocated.GreaterThanOrEqual(outstanding)
	proportion := func(total decimal.Decimal) decimal.Decimal {
		if full {
			return shared.RoundCurrency(total)
		}
		return shared.RoundCurrency(total.Mul(allocated).Div(outstanding))
	}

	shares.Retention = proportion(basis.Retention)
	shares.WHT = proportion(basis.WHT)
	shares.VATUndue = proportion(basis.VATUndue)
	if basis.WHT.IsPositive() {
		shares.TaxBase = proportion(basis.NetTotal)
	}
	shares.NetPayable = shared.RoundCurrency(allocated.Sub(shares.Retention).Sub(shares.WHT))
	return shares
}
