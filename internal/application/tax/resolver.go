package tax

import (
	"context"
	"errors"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfigResolver loads the company tax configuration once per operation
type ConfigResolver struct {
	companies tax.CompanyRepository
	logger    *zap.Logger
}

// NewConfigResolver creates a new ConfigResolver
func NewConfigResolver(companies tax.CompanyRepository, logger *zap.Logger) *ConfigResolver {
	return &ConfigResolver{companies: companies, logger: logger}
}

// Resolve never fails. A missing or unreadable company degrades to the
// default configuration with a warning, so routine saves are never blocked.
func (r *ConfigResolver) Resolve(ctx context.Context, companyID uuid.UUID) tax.TaxConfig {
	company, err := r.companies.FindByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			r.logger.Warn("company not found, using default tax configuration",
				zap.String("company_id", companyID.String()),
			)
		} else {
			r.logger.Warn("failed to load company tax settings, using default tax configuration",
				zap.String("company_id", companyID.String()),
				zap.Error(err),
			)
		}
		cfg, _ := tax.ResolveTaxConfig(nil)
		return cfg
	}
	cfg, _ := tax.ResolveTaxConfig(company)
	return cfg
}
