package persistence

import (
	"strings"
)

// certificateSortColumns whitelists the register's order_by values. The
// value is what ends up in ORDER BY, so user input never reaches SQL.
var certificateSortColumns = map[string]string{
	"created_at":       "created_at",
	"number":           "number",
	"certificate_date": "certificate_date",
	"tax_amount":       "tax_amount",
	"tax_base":         "tax_base",
	"payee_name":       "payee_name",
	"status":           "status",
	"payment_number":   "payment_number",
}

// sortDirection normalises a requested direction, defaulting to DESC so the
// newest certificates list first.
func sortDirection(dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// certificateOrder builds the ORDER BY clause for the certificate register.
// Unknown columns fall back to the certificate number; ties on any other
// column are broken by number so pages stay stable.
func certificateOrder(orderBy, orderDir string) string {
	dir := sortDirection(orderDir)
	column, ok := certificateSortColumns[strings.TrimSpace(orderBy)]
	if !ok || column == "number" {
		return "number " + dir
	}
	return column + " " + dir + ", number " + dir
}
