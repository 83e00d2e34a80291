package tax

import (
	"strings"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/google/uuid"
)

// AccountType is the root classification of a chart-of-accounts entry
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// IsValid checks if the account type is a known value
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// Account is a ledger account the engine posts to. Only existence and root
// type are checked; the wider chart belongs to the host ledger.
type Account struct {
	shared.BaseEntity
	CompanyID uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_account_company_code,priority:1"`
	Code      string      `gorm:"type:varchar(64);not null;uniqueIndex:idx_account_company_code,priority:2"`
	Name      string      `gorm:"type:varchar(200);not null"`
	Type      AccountType `gorm:"type:varchar(20);not null"`
	Disabled  bool        `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (Account) TableName() string {
	return "accounts"
}

// NewAccount creates a chart entry
func NewAccount(companyID uuid.UUID, code, name string, accountType AccountType) (*Account, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account code cannot be empty")
	}
	if !accountType.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_ACCOUNT", "Unknown account type %q", accountType)
	}
	if name == "" {
		name = code
	}
	return &Account{
		BaseEntity: shared.NewBaseEntity(),
		CompanyID:  companyID,
		Code:       code,
		Name:       name,
		Type:       accountType,
	}, nil
}

// AccountChart is the set of accounts visible to one posting run, keyed by code
type AccountChart map[string]*Account

// NewAccountChart indexes accounts by code
func NewAccountChart(accounts []Account) AccountChart {
	chart := make(AccountChart, len(accounts))
	for i := range accounts {
		chart[accounts[i].Code] = &accounts[i]
	}
	return chart
}

// Require checks that code exists, is enabled and has the expected root type
func (c AccountChart) Require(role, code string, expected AccountType) error {
	if code == "" {
		return NewConfigurationError("%s account is not configured for this company", role)
	}
	acc, ok := c[code]
	if !ok || acc.Disabled {
		return NewConfigurationError("%s account %q does not exist", role, code)
	}
	if acc.Type != expected {
		return NewConfigurationError("%s account %q must be of type %s, got %s", role, code, expected, acc.Type)
	}
	return nil
}
