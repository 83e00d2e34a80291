package shared

import "github.com/shopspring/decimal"

// CurrencyPlaces is the number of decimal places used for THB amounts
const CurrencyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundCurrency rounds half away from zero to satang precision
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// PercentOf returns round(base * rate / 100, 2)
func PercentOf(base, rate decimal.Decimal) decimal.Decimal {
	return RoundCurrency(base.Mul(rate).Div(hundred))
}

// SumDecimals adds up the given amounts
func SumDecimals(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
