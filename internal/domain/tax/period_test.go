package tax

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodOf(t *testing.T) {
	p := PeriodOf(time.Date(2025, time.December, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, 2568, p.Year)
	assert.Equal(t, 12, p.Month)
	assert.Equal(t, 68, p.ShortYear())
	assert.Equal(t, "6812", p.Code())
	assert.Equal(t, "2568-12", p.String())

	assert.Equal(t, "6901", PeriodOf(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)).Code())
}

func TestNewTaxPeriod(t *testing.T) {
	p, err := NewTaxPeriod(2568, 3)
	require.NoError(t, err)
	assert.Equal(t, TaxPeriod{Year: 2568, Month: 3}, p)

	_, err = NewTaxPeriod(2568, 0)
	assert.Error(t, err)
	_, err = NewTaxPeriod(2025, 3)
	assert.Error(t, err, "Gregorian years are rejected")
}
