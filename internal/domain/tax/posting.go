package tax

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VoucherTypePayment marks postings that belong to a payment voucher
const VoucherTypePayment = "PAYMENT"

// PostingSource tells who wrote a ledger posting
type PostingSource string

const (
	// PostingSourceHost is a posting the host ledger created itself
	PostingSourceHost PostingSource = "HOST"
	// PostingSourceTax is a posting emitted by the posting generator
	PostingSourceTax PostingSource = "TAX"
)

// Voucher identifies the document a set of postings belongs to
type Voucher struct {
	CompanyID   uuid.UUID
	ID          uuid.UUID
	Type        string
	PostingDate time.Time
}

// LedgerPosting is one general-ledger line. Postings are never deleted; a
// reversal flips IsCancelled.
type LedgerPosting struct {
	shared.BaseEntity
	CompanyID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	VoucherID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	VoucherType string          `gorm:"type:varchar(40);not null"`
	Account     string          `gorm:"type:varchar(64);not null;index"`
	Debit       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Credit      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	PartyID     string          `gorm:"type:varchar(100)"`
	PartyName   string          `gorm:"type:varchar(200)"`
	Remarks     string          `gorm:"type:text"`
	Source      PostingSource   `gorm:"type:varchar(10);not null"`
	IsCancelled bool            `gorm:"not null;default:false"`
	PostingDate time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerPosting) TableName() string {
	return "ledger_postings"
}

// NewLedgerPosting creates a posting with exactly one non-zero side
func NewLedgerPosting(v Voucher, account string, debit, credit decimal.Decimal, source PostingSource) (*LedgerPosting, error) {
	if strings.TrimSpace(account) == "" {
		return nil, shared.NewDomainError("INVALID_POSTING", "Posting account cannot be empty")
	}
	if debit.IsNegative() || credit.IsNegative() {
		return nil, shared.NewDomainError(CodeInvalidAmount, "Posting amounts cannot be negative")
	}
	if debit.IsZero() == credit.IsZero() {
		return nil, shared.NewDomainError(CodeInvalidAmount, "A posting needs exactly one of debit or credit")
	}
	return &LedgerPosting{
		BaseEntity:  shared.NewBaseEntity(),
		CompanyID:   v.CompanyID,
		VoucherID:   v.ID,
		VoucherType: v.Type,
		Account:     account,
		Debit:       shared.RoundCurrency(debit),
		Credit:      shared.RoundCurrency(credit),
		Source:      source,
		PostingDate: v.PostingDate,
	}, nil
}

// WithParty sets the counter-party reference
func (p *LedgerPosting) WithParty(party Party) *LedgerPosting {
	p.PartyID = party.Ref
	p.PartyName = party.Name
	return p
}

// Cancel flags the posting as reversed. Cancelling twice is a no-op.
func (p *LedgerPosting) Cancel() {
	if p.IsCancelled {
		return
	}
	p.IsCancelled = true
	p.Touch()
}

// Net returns debit minus credit
func (p *LedgerPosting) Net() decimal.Decimal {
	return p.Debit.Sub(p.Credit)
}

// VoucherTotals sums debits and credits of the active postings
func VoucherTotals(postings []LedgerPosting) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, p := range postings {
		if p.IsCancelled {
			continue
		}
		debit = debit.Add(p.Debit)
		credit = credit.Add(p.Credit)
	}
	return debit, credit
}

// CheckBalance enforces the double-entry rule over a voucher's active postings
func CheckBalance(postings []LedgerPosting) error {
	debit, credit := VoucherTotals(postings)
	if !debit.Equal(credit) {
		return NewBalanceMismatchError(debit, credit)
	}
	return nil
}

// PostingPlan is the outcome of the posting generator for one payment. It is
// persisted as a whole or not at all.
type PostingPlan struct {
	CashPosting *LedgerPosting // adjusted copy of the host cash posting; nil when cash is unchanged
	TaxPostings []*LedgerPosting
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// IsEmpty reports whether the plan changes nothing
func (p *PostingPlan) IsEmpty() bool {
	return p.CashPosting == nil && len(p.TaxPostings) == 0
}

// GeneratePostings builds the cash adjustment and tax postings for a
// submitted payment. existing holds the postings already on the payment's
// voucher, including the host's cash posting. A payment without Thai taxes
// yields an empty plan.
func GeneratePostings(p *Payment, cfg TaxConfig, chart AccountChart, existing []LedgerPosting) (*PostingPlan, error) {
	plan := &PostingPlan{
		TaxPostings: make([]*LedgerPosting, 0, 4),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	if !p.HasThaiTaxes {
		return plan, nil
	}

	accounts := cfg.AccountsFor(p.Direction)
	if err := requirePostingAccounts(p, accounts, chart); err != nil {
		return nil, err
	}

	cashIdx, err := locateCashPosting(p, existing)
	if err != nil {
		return nil, err
	}

	reduction := p.CashReduction()
	if reduction.IsPositive() {
		cash := existing[cashIdx]
		if err := reduceCash(&cash, p.Direction, reduction); err != nil {
			return nil, err
		}
		plan.CashPosting = &cash
	}

	v := p.Voucher()
	emit := func(account string, debit, credit decimal.Decimal, remark string) error {
		lp, err := NewLedgerPosting(v, account, debit, credit, PostingSourceTax)
		if err != nil {
			return err
		}
		lp.WithParty(p.Party)
		lp.Remarks = fmt.Sprintf("%s for payment %s", remark, p.Number)
		plan.TaxPostings = append(plan.TaxPostings, lp)
		return nil
	}

	zero := decimal.Zero
	receive := p.Direction == DirectionReceive
	if p.TotalRetention.IsPositive() {
		d, c := p.TotalRetention, zero
		if !receive {
			d, c = zero, p.TotalRetention
		}
		if err := emit(accounts.Retention, d, c, "Retention"); err != nil {
			return nil, err
		}
	}
	if p.TotalWHT.IsPositive() {
		d, c := p.TotalWHT, zero
		if !receive {
			d, c = zero, p.TotalWHT
		}
		if err := emit(accounts.WHT, d, c, "Withholding tax"); err != nil {
			return nil, err
		}
	}
	if p.TotalVATUndue.IsPositive() {
		// Receive: Dr VAT undue, Cr VAT. Pay: Dr purchase VAT, Cr purchase VAT undue.
		debitAcc, creditAcc := accounts.VATUndue, accounts.VAT
		if !receive {
			debitAcc, creditAcc = accounts.VAT, accounts.VATUndue
		}
		if err := emit(debitAcc, p.TotalVATUndue, zero, "VAT undue conversion"); err != nil {
			return nil, err
		}
		if err := emit(creditAcc, zero, p.TotalVATUndue, "VAT undue conversion"); err != nil {
			return nil, err
		}
	}

	voucher := make([]LedgerPosting, 0, len(existing)+len(plan.TaxPostings))
	for i, lp := range existing {
		if i == cashIdx && plan.CashPosting != nil {
			voucher = append(voucher, *plan.CashPosting)
			continue
		}
		voucher = append(voucher, lp)
	}
	for _, lp := range plan.TaxPostings {
		voucher = append(voucher, *lp)
	}
	plan.TotalDebit, plan.TotalCredit = VoucherTotals(voucher)
	if !plan.TotalDebit.Equal(plan.TotalCredit) {
		return nil, NewBalanceMismatchError(plan.TotalDebit, plan.TotalCredit)
	}
	return plan, nil
}

// requirePostingAccounts checks only the accounts a non-zero component needs
func requirePostingAccounts(p *Payment, accounts AccountSet, chart AccountChart) error {
	assetOrLiability := func(receiveType AccountType) AccountType {
		if p.Direction == DirectionReceive {
			return receiveType
		}
		if receiveType == AccountTypeAsset {
			return AccountTypeLiability
		}
		return AccountTypeAsset
	}

	if p.TotalRetention.IsPositive() {
		if err := chart.Require("Retention", accounts.Retention, assetOrLiability(AccountTypeAsset)); err != nil {
			return err
		}
	}
	if p.TotalWHT.IsPositive() {
		if err := chart.Require("Withholding tax", accounts.WHT, assetOrLiability(AccountTypeAsset)); err != nil {
			return err
		}
	}
	if p.TotalVATUndue.IsPositive() {
		if err := chart.Require("VAT undue", accounts.VATUndue, assetOrLiability(AccountTypeLiability)); err != nil {
			return err
		}
		if err := chart.Require("VAT", accounts.VAT, assetOrLiability(AccountTypeLiability)); err != nil {
			return err
		}
	}
	return nil
}

func locateCashPosting(p *Payment, existing []LedgerPosting) (int, error) {
	idx := -1
	for i, lp := range existing {
		if lp.IsCancelled || lp.Source != PostingSourceHost || lp.Account != p.CashAccount || lp.VoucherID != p.ID {
			continue
		}
		if idx >= 0 {
			return -1, shared.NewDomainErrorf(CodeCashPostingNotFound,
				"payment %s has more than one cash posting on account %s", p.Number, p.CashAccount)
		}
		idx = i
	}
	if idx < 0 {
		return -1, shared.NewDomainErrorf(CodeCashPostingNotFound,
			"no cash posting on account %s found for payment %s", p.CashAccount, p.Number)
	}
	return idx, nil
}

func reduceCash(cash *LedgerPosting, direction PaymentDirection, reduction decimal.Decimal) error {
	side := &cash.Debit
	if direction == DirectionPay {
		side = &cash.Credit
	}
	if side.LessThan(reduction) {
		return shared.NewDomainErrorf(CodeInvalidAmount,
			"cash posting of %s cannot absorb a tax reduction of %s", side.StringFixed(2), reduction.StringFixed(2))
	}
	*side = side.Sub(reduction)
	note := fmt.Sprintf("Reduced by %s for retention and withholding tax", reduction.StringFixed(2))
	if cash.Remarks == "" {
		cash.Remarks = note
	} else {
		cash.Remarks = cash.Remarks + "; " + note
	}
	cash.Touch()
	return nil
}

// ReversePostings flags every active posting on one of the tax accounts as
// cancelled and returns the postings it changed. Postings the generator
// emitted are reversed even if the company has since moved its accounts.
func ReversePostings(postings []LedgerPosting, accounts AccountSet) []*LedgerPosting {
	reversed := make([]*LedgerPosting, 0)
	for i := range postings {
		lp := &postings[i]
		if lp.IsCancelled {
			continue
		}
		if !accounts.Contains(lp.Account) && lp.Source != PostingSourceTax {
			continue
		}
		lp.Cancel()
		reversed = append(reversed, lp)
	}
	return reversed
}
