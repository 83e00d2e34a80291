package tax

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// PNDForm is the withholding tax return a certificate is filed on
type PNDForm string

const (
	// PND3 covers payments to individuals
	PND3 PNDForm = "PND3"
	// PND53 covers payments to juristic persons
	PND53 PNDForm = "PND53"
)

// IsValid checks if the form is a known value
func (f PNDForm) IsValid() bool {
	return f == PND3 || f == PND53
}

// IncomeType is the statutory income category printed on a certificate
type IncomeType string

const (
	// IncomeTypeServices is hire of work and services under Section 3 Tredecim
	IncomeTypeServices IncomeType = "5"
	// IncomeTypeOther is every other kind of assessable income
	IncomeTypeOther IncomeType = "6"
)

// Description returns the Thai wording printed next to the income type
func (t IncomeType) Description() string {
	if t == IncomeTypeServices {
		return "ค่าจ้างทำของ ค่าบริการ (ม.3 เตรส)"
	}
	return "เงินได้อื่นๆ"
}

var (
	juristicThaiMarkers = []string{"บริษัท", "จำกัด", "ห้างหุ้นส่วน", "บจก", "หจก", "มหาชน"}
	juristicLatinTokens = map[string]struct{}{
		"ltd": {}, "co": {}, "limited": {}, "inc": {}, "corp": {},
		"corporation": {}, "llc": {}, "plc": {}, "company": {},
	}
)

// ClassifyPND picks the return form for a payee. A known party type wins;
// otherwise the name is matched against juristic-person markers. The name
// match is a heuristic and can be wrong for unusual names.
func ClassifyPND(party Party) PNDForm {
	switch party.Type {
	case PartyTypeJuristic:
		return PND53
	case PartyTypeIndividual:
		return PND3
	}
	if looksJuristic(party.Name) {
		return PND53
	}
	return PND3
}

func looksJuristic(name string) bool {
	normalized := norm.NFC.String(strings.TrimSpace(name))
	if normalized == "" {
		return false
	}
	for _, marker := range juristicThaiMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	folded := cases.Fold().String(normalized)
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, tok := range tokens {
		if _, ok := juristicLatinTokens[tok]; ok {
			return true
		}
	}
	return false
}

// ClassifyIncome returns services when any WHT-bearing allocation settles a
// service invoice
func ClassifyIncome(allocations []PaymentAllocation) IncomeType {
	for _, a := range allocations {
		if a.WHTShare.IsPositive() && a.IsService {
			return IncomeTypeServices
		}
	}
	return IncomeTypeOther
}
