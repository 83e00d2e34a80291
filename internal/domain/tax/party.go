package tax

// PartyType is the legal status of a counter-party when the host knows it
type PartyType string

const (
	PartyTypeUnknown    PartyType = ""
	PartyTypeIndividual PartyType = "INDIVIDUAL"
	PartyTypeJuristic   PartyType = "JURISTIC"
)

// IsValid checks if the party type is a known value
func (t PartyType) IsValid() bool {
	switch t {
	case PartyTypeUnknown, PartyTypeIndividual, PartyTypeJuristic:
		return true
	}
	return false
}

// Party is the customer or supplier on a document. Ref is the host's own
// identifier for the party; it is not named ID so that it cannot shadow the
// owning document's primary key when embedded.
type Party struct {
	Ref     string    `gorm:"column:ref;type:varchar(100)" json:"id"`
	Name    string    `gorm:"type:varchar(200)" json:"name"`
	TaxID   string    `gorm:"type:varchar(20)" json:"tax_id"`
	Type    PartyType `gorm:"type:varchar(20)" json:"type"`
	Address string    `gorm:"type:text" json:"address"`
}

// CertificateParty is a payer or payee as printed on a certificate
type CertificateParty struct {
	Name    string `gorm:"type:varchar(200)" json:"name"`
	TaxID   string `gorm:"type:varchar(20)" json:"tax_id"`
	Address string `gorm:"type:text" json:"address"`
}
