package tax

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CompanyInput carries the company identity and its tax settings
type CompanyInput struct {
	Name     string
	TaxID    string
	Address  string
	Settings tax.TaxSettings
}

// AccountInput describes one chart-of-accounts entry
type AccountInput struct {
	Name     string
	Type     tax.AccountType
	Disabled bool
}

// SetupService maintains the master data the engine reads: companies with
// their tax settings and the accounts those settings point to
type SetupService struct {
	companies tax.CompanyRepository
	accounts  tax.AccountRepository
	logger    *zap.Logger
}

// NewSetupService creates a new SetupService
func NewSetupService(companies tax.CompanyRepository, accounts tax.AccountRepository, logger *zap.Logger) *SetupService {
	return &SetupService{companies: companies, accounts: accounts, logger: logger}
}

// UpsertCompany creates the company with the given ID or replaces its
// identity and tax settings
func (s *SetupService) UpsertCompany(ctx context.Context, id uuid.UUID, input CompanyInput) (*tax.Company, error) {
	company, err := s.companies.FindByID(ctx, id)
	switch {
	case err == nil:
		company.Name = input.Name
		company.TaxID = input.TaxID
	case errors.Is(err, shared.ErrNotFound):
		company, err = tax.NewCompany(input.Name, input.TaxID)
		if err != nil {
			return nil, err
		}
		company.ID = id
	default:
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	company.Address = input.Address

	if err := company.UpdateSettings(input.Settings); err != nil {
		return nil, err
	}
	if err := s.companies.Save(ctx, company); err != nil {
		s.logger.Error("failed to save company tax settings",
			zap.String("company_id", id.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to save company: %w", err)
	}

	s.logger.Info("company tax settings saved",
		zap.String("company_id", id.String()),
		zap.Bool("service_business", input.Settings.ServiceBusinessEnabled),
		zap.Bool("construction_service", input.Settings.ConstructionServiceEnabled),
	)
	return company, nil
}

// UpsertAccount creates or updates an account by code
func (s *SetupService) UpsertAccount(ctx context.Context, companyID uuid.UUID, code string, input AccountInput) (*tax.Account, error) {
	account, err := s.accounts.FindByCode(ctx, companyID, code)
	switch {
	case err == nil:
		if !input.Type.IsValid() {
			return nil, shared.NewDomainErrorf("INVALID_ACCOUNT", "Unknown account type %q", input.Type)
		}
		if input.Name != "" {
			account.Name = input.Name
		}
		account.Type = input.Type
		account.Touch()
	case errors.Is(err, shared.ErrNotFound):
		account, err = tax.NewAccount(companyID, code, input.Name, input.Type)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	account.Disabled = input.Disabled

	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	return account, nil
}
