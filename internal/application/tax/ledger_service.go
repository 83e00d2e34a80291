package tax

import (
	"context"
	"fmt"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PostingLine is one host-supplied ledger line
type PostingLine struct {
	Account string
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Party   tax.Party
	Remarks string
}

// LedgerService records the host's own ledger entries for a voucher
type LedgerService struct {
	ledger tax.LedgerRepository
	logger *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(ledger tax.LedgerRepository, logger *zap.Logger) *LedgerService {
	return &LedgerService{ledger: ledger, logger: logger}
}

// RecordHostPostings writes a balanced set of host postings for a voucher
func (s *LedgerService) RecordHostPostings(ctx context.Context, voucher tax.Voucher, lines []PostingLine) ([]*tax.LedgerPosting, error) {
	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_POSTING", "At least one posting line is required")
	}
	postings := make([]*tax.LedgerPosting, 0, len(lines))
	check := make([]tax.LedgerPosting, 0, len(lines))
	for _, line := range lines {
		p, err := tax.NewLedgerPosting(voucher, line.Account, line.Debit, line.Credit, tax.PostingSourceHost)
		if err != nil {
			return nil, err
		}
		p.WithParty(line.Party)
		p.Remarks = line.Remarks
		postings = append(postings, p)
		check = append(check, *p)
	}
	if err := tax.CheckBalance(check); err != nil {
		return nil, err
	}
	if err := s.ledger.SaveAll(ctx, postings); err != nil {
		return nil, fmt.Errorf("failed to save host postings: %w", err)
	}

	s.logger.Info("host postings recorded",
		zap.String("voucher_id", voucher.ID.String()),
		zap.String("voucher_type", voucher.Type),
		zap.Int("lines", len(postings)),
	)
	return postings, nil
}

// GetVoucher returns every posting of a voucher
func (s *LedgerService) GetVoucher(ctx context.Context, companyID, voucherID uuid.UUID) ([]tax.LedgerPosting, error) {
	return s.ledger.FindByVoucher(ctx, companyID, voucherID)
}
