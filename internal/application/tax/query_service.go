package tax

import (
	"context"
	"fmt"

	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceTaxDetails is the read model of an invoice's tax attributes
type InvoiceTaxDetails struct {
	InvoiceID              uuid.UUID        `json:"invoice_id"`
	InvoiceNumber          string           `json:"invoice_number"`
	NetTotal               decimal.Decimal  `json:"net_total"`
	VATAmount              decimal.Decimal  `json:"vat_amount"`
	GrandTotal             decimal.Decimal  `json:"grand_total"`
	OutstandingAmount      decimal.Decimal  `json:"outstanding_amount"`
	VATTreatment           tax.VATTreatment `json:"vat_treatment"`
	WHTEnabled             bool             `json:"wht_enabled"`
	RetentionEnabled       bool             `json:"retention_enabled"`
	EffectiveWHTRate       decimal.Decimal  `json:"effective_wht_rate"`
	EffectiveRetentionRate decimal.Decimal  `json:"effective_retention_rate"`
	WHTAmount              decimal.Decimal  `json:"wht_amount"`
	RetentionAmount        decimal.Decimal  `json:"retention_amount"`
	VATUndueAmount         decimal.Decimal  `json:"vat_undue_amount"`
	PNDForm                tax.PNDForm      `json:"pnd_form"`
}

// AccountBalance is the net of the active postings on one account
type AccountBalance struct {
	Account string          `json:"account"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
}

// QueryService answers read-only tax questions
type QueryService struct {
	repos    Repositories
	resolver *ConfigResolver
	logger   *zap.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(repos Repositories, logger *zap.Logger) *QueryService {
	return &QueryService{
		repos:    repos,
		resolver: NewConfigResolver(repos.Companies, logger),
		logger:   logger,
	}
}

// CalculateWHT is the standalone calculator: round(base x rate / 100, 2)
func (s *QueryService) CalculateWHT(base, rate decimal.Decimal) decimal.Decimal {
	return tax.CalculateWHT(base, rate)
}

// GetInvoiceTaxDetails returns the tax amounts of an invoice together with
// the rates that are in effect for it
func (s *QueryService) GetInvoiceTaxDetails(ctx context.Context, companyID, invoiceID uuid.UUID) (*InvoiceTaxDetails, error) {
	inv, err := s.repos.Invoices.FindByID(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	cfg := s.resolver.Resolve(ctx, companyID)

	return &InvoiceTaxDetails{
		InvoiceID:              inv.ID,
		InvoiceNumber:          inv.Number,
		NetTotal:               inv.NetTotal,
		VATAmount:              inv.VATAmount,
		GrandTotal:             inv.GrandTotal,
		OutstandingAmount:      inv.OutstandingAmount,
		VATTreatment:           inv.VATTreatment,
		WHTEnabled:             inv.ApplyWHT && cfg.ServiceBusinessEnabled,
		RetentionEnabled:       inv.ApplyRetention && cfg.ConstructionServiceEnabled,
		EffectiveWHTRate:       cfg.EffectiveWHTRate(inv.WHTRate),
		EffectiveRetentionRate: cfg.EffectiveRetentionRate(inv.RetentionRate),
		WHTAmount:              inv.WHTAmount,
		RetentionAmount:        inv.RetentionAmount,
		VATUndueAmount:         inv.VATUndueAmount,
		PNDForm:                tax.ClassifyPND(inv.Party),
	}, nil
}

// AccountBalance sums the active postings of an account
func (s *QueryService) AccountBalance(ctx context.Context, companyID uuid.UUID, account string) (*AccountBalance, error) {
	postings, err := s.repos.Ledger.FindByAccount(ctx, companyID, account)
	if err != nil {
		return nil, fmt.Errorf("failed to load account postings: %w", err)
	}
	debit, credit := tax.VoucherTotals(postings)
	return &AccountBalance{
		Account: account,
		Debit:   debit,
		Credit:  credit,
		Balance: debit.Sub(credit),
	}, nil
}
