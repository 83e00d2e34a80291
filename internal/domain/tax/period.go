package tax

import (
	"fmt"
	"time"
)

// BuddhistEraOffset converts a Gregorian year to the Thai Buddhist calendar
const BuddhistEraOffset = 543

// BuddhistYear returns the Buddhist-era year for a Gregorian year
func BuddhistYear(gregorian int) int {
	return gregorian + BuddhistEraOffset
}

// TaxPeriod identifies a monthly filing period in the Buddhist calendar
type TaxPeriod struct {
	Year  int `json:"tax_year"`  // full Buddhist year, e.g. 2568
	Month int `json:"tax_month"` // 1-12
}

// NewTaxPeriod validates and builds a tax period
func NewTaxPeriod(year, month int) (TaxPeriod, error) {
	if month < 1 || month > 12 {
		return TaxPeriod{}, fmt.Errorf("invalid tax month %d", month)
	}
	if year < BuddhistEraOffset+1900 {
		return TaxPeriod{}, fmt.Errorf("invalid Buddhist tax year %d", year)
	}
	return TaxPeriod{Year: year, Month: month}, nil
}

// PeriodOf derives the tax period of a posting date
func PeriodOf(date time.Time) TaxPeriod {
	return TaxPeriod{
		Year:  BuddhistYear(date.Year()),
		Month: int(date.Month()),
	}
}

// ShortYear returns the two-digit Buddhist year used in document numbers
func (p TaxPeriod) ShortYear() int {
	return p.Year % 100
}

// Code renders the YYMM fragment of a certificate number
func (p TaxPeriod) Code() string {
	return fmt.Sprintf("%02d%02d", p.ShortYear(), p.Month)
}

// String implements fmt.Stringer
func (p TaxPeriod) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}
