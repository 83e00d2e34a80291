package handler

import (
	"time"

	apptax "github.com/erp/thaitax/internal/application/tax"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/erp/thaitax/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============================================================================
// Requests
// ============================================================================

// PartyRequest is the customer or supplier on a document
type PartyRequest struct {
	ID      string `json:"id" binding:"max=100"`
	Name    string `json:"name" binding:"max=200"`
	TaxID   string `json:"tax_id" binding:"max=20"`
	Type    string `json:"type" binding:"omitempty,oneof=INDIVIDUAL JURISTIC"`
	Address string `json:"address" binding:"max=1000"`
}

func (r PartyRequest) toDomain() tax.Party {
	return tax.Party{
		Ref:     r.ID,
		Name:    r.Name,
		TaxID:   r.TaxID,
		Type:    tax.PartyType(r.Type),
		Address: r.Address,
	}
}

// TaxSettingsDTO is the company-level tax configuration, in and out
type TaxSettingsDTO struct {
	ServiceBusinessEnabled     bool             `json:"service_business_enabled"`
	ConstructionServiceEnabled bool             `json:"construction_service_enabled"`
	DefaultWHTRate             *decimal.Decimal `json:"default_wht_rate" binding:"omitempty,gte=0,lte=100"`
	DefaultRetentionRate       *decimal.Decimal `json:"default_retention_rate" binding:"omitempty,gte=0,lte=100"`
	WHTAssetAccount            string           `json:"wht_asset_account" binding:"max=64"`
	RetentionAssetAccount      string           `json:"retention_asset_account" binding:"max=64"`
	VATUndueAccount            string           `json:"vat_undue_account" binding:"max=64"`
	VATAccount                 string           `json:"vat_account" binding:"max=64"`
	WHTPayableAccount          string           `json:"wht_payable_account" binding:"max=64"`
	RetentionPayableAccount    string           `json:"retention_payable_account" binding:"max=64"`
	PurchaseVATUndueAccount    string           `json:"purchase_vat_undue_account" binding:"max=64"`
	PurchaseVATAccount         string           `json:"purchase_vat_account" binding:"max=64"`
}

func (r TaxSettingsDTO) toDomain() tax.TaxSettings {
	return tax.TaxSettings{
		ServiceBusinessEnabled:     r.ServiceBusinessEnabled,
		ConstructionServiceEnabled: r.ConstructionServiceEnabled,
		DefaultWHTRate:             r.DefaultWHTRate,
		DefaultRetentionRate:       r.DefaultRetentionRate,
		WHTAssetAccount:            r.WHTAssetAccount,
		RetentionAssetAccount:      r.RetentionAssetAccount,
		VATUndueAccount:            r.VATUndueAccount,
		VATAccount:                 r.VATAccount,
		WHTPayableAccount:          r.WHTPayableAccount,
		RetentionPayableAccount:    r.RetentionPayableAccount,
		PurchaseVATUndueAccount:    r.PurchaseVATUndueAccount,
		PurchaseVATAccount:         r.PurchaseVATAccount,
	}
}

// UpsertCompanyRequest creates or updates a company and its tax settings
type UpsertCompanyRequest struct {
	Name     string         `json:"name" binding:"required,max=200"`
	TaxID    string         `json:"tax_id" binding:"max=20"`
	Address  string         `json:"address" binding:"max=1000"`
	Settings TaxSettingsDTO `json:"settings"`
}

// UpsertAccountRequest creates or updates a chart-of-accounts entry
type UpsertAccountRequest struct {
	Name     string `json:"name" binding:"required,max=200"`
	Type     string `json:"type" binding:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
	Disabled bool   `json:"disabled"`
}

// UpsertInvoiceRequest carries the host's commercial fields of an invoice
type UpsertInvoiceRequest struct {
	Number         string           `json:"number" binding:"required,max=64"`
	Kind           string           `json:"kind" binding:"required,oneof=SALES PURCHASE"`
	Party          PartyRequest     `json:"party"`
	PostingDate    string           `json:"posting_date" binding:"required,datetime=2006-01-02"`
	NetTotal       decimal.Decimal  `json:"net_total" binding:"gte=0"`
	VATAmount      decimal.Decimal  `json:"vat_amount" binding:"gte=0"`
	VATTreatment   string           `json:"vat_treatment" binding:"omitempty,oneof=STANDARD UNDUE EXEMPT ZERO_RATED"`
	IsService      bool             `json:"is_service"`
	ApplyWHT       bool             `json:"apply_wht"`
	ApplyRetention bool             `json:"apply_retention"`
	WHTRate        *decimal.Decimal `json:"wht_rate" binding:"omitempty,gte=0,lte=100"`
	RetentionRate  *decimal.Decimal `json:"retention_rate" binding:"omitempty,gte=0,lte=100"`
}

func (r UpsertInvoiceRequest) toTerms(postingDate time.Time) tax.InvoiceTerms {
	return tax.InvoiceTerms{
		Number:         r.Number,
		Kind:           tax.InvoiceKind(r.Kind),
		Party:          r.Party.toDomain(),
		PostingDate:    postingDate,
		NetTotal:       r.NetTotal,
		VATAmount:      r.VATAmount,
		VATTreatment:   tax.VATTreatment(r.VATTreatment),
		IsService:      r.IsService,
		ApplyWHT:       r.ApplyWHT,
		ApplyRetention: r.ApplyRetention,
		WHTRate:        r.WHTRate,
		RetentionRate:  r.RetentionRate,
	}
}

// AllocationRequest applies part of a payment to one invoice
type AllocationRequest struct {
	InvoiceID string          `json:"invoice_id" binding:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" binding:"gte=0"`
}

// CreatePaymentRequest creates a draft payment with its allocations
type CreatePaymentRequest struct {
	Number       string              `json:"number" binding:"required,max=64"`
	Direction    string              `json:"direction" binding:"required,oneof=RECEIVE PAY"`
	Party        PartyRequest        `json:"party"`
	PaidAmount   decimal.Decimal     `json:"paid_amount" binding:"gt=0"`
	PostingDate  string              `json:"posting_date" binding:"required,datetime=2006-01-02"`
	CashAccount  string              `json:"cash_account" binding:"required,max=64"`
	PartyAccount string              `json:"party_account" binding:"required,max=64"`
	ApplyWHT     bool                `json:"apply_wht"`
	WHTRate      *decimal.Decimal    `json:"wht_rate" binding:"omitempty,gte=0,lte=100"`
	Allocations  []AllocationRequest `json:"allocations" binding:"dive"`
}

func (r CreatePaymentRequest) toTerms(postingDate time.Time) tax.PaymentTerms {
	return tax.PaymentTerms{
		Number:       r.Number,
		Direction:    tax.PaymentDirection(r.Direction),
		Party:        r.Party.toDomain(),
		PaidAmount:   r.PaidAmount,
		PostingDate:  postingDate,
		CashAccount:  r.CashAccount,
		PartyAccount: r.PartyAccount,
		ApplyWHT:     r.ApplyWHT,
		WHTRate:      r.WHTRate,
	}
}

// allocations converts the validated allocation list; ids were checked by the binder
func (r CreatePaymentRequest) allocations() []apptax.AllocationInput {
	out := make([]apptax.AllocationInput, 0, len(r.Allocations))
	for _, a := range r.Allocations {
		out = append(out, apptax.AllocationInput{
			InvoiceID: uuid.MustParse(a.InvoiceID),
			Amount:    a.Amount,
		})
	}
	return out
}

// ListCertificatesQuery filters the certificate register. Year and month
// go together.
type ListCertificatesQuery struct {
	dto.ListRequest
	TaxYear  int    `form:"tax_year" binding:"required_with=TaxMonth,omitempty,gte=2443"`
	TaxMonth int    `form:"tax_month" binding:"required_with=TaxYear,omitempty,min=1,max=12"`
	Status   string `form:"status" binding:"omitempty,oneof=DRAFT ISSUED CANCELLED"`
	PNDForm  string `form:"pnd_form" binding:"omitempty,oneof=PND3 PND53"`
}

// CancelCertificateRequest voids an issued certificate
type CancelCertificateRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PostingLineRequest is one host ledger line
type PostingLineRequest struct {
	Account string          `json:"account" binding:"required,max=64"`
	Debit   decimal.Decimal `json:"debit" binding:"gte=0"`
	Credit  decimal.Decimal `json:"credit" binding:"gte=0"`
	Party   PartyRequest    `json:"party"`
	Remarks string          `json:"remarks" binding:"max=1000"`
}

// RecordPostingsRequest writes the host's own postings for a voucher
type RecordPostingsRequest struct {
	VoucherID   string               `json:"voucher_id" binding:"required,uuid"`
	VoucherType string               `json:"voucher_type" binding:"required,max=40"`
	PostingDate string               `json:"posting_date" binding:"required,datetime=2006-01-02"`
	Lines       []PostingLineRequest `json:"lines" binding:"required,min=2,dive"`
}

func (r RecordPostingsRequest) lines() []apptax.PostingLine {
	out := make([]apptax.PostingLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		out = append(out, apptax.PostingLine{
			Account: l.Account,
			Debit:   l.Debit,
			Credit:  l.Credit,
			Party:   l.Party.toDomain(),
			Remarks: l.Remarks,
		})
	}
	return out
}

// CalculateWHTQuery is the standalone calculator input
type CalculateWHTQuery struct {
	Base string `form:"base" binding:"required,numeric"`
	Rate string `form:"rate" binding:"required,numeric"`
}

// OpenPeriodicReturnRequest creates an open return for a period
type OpenPeriodicReturnRequest struct {
	TaxYear  int    `json:"tax_year" binding:"required,gte=2443"`
	TaxMonth int    `json:"tax_month" binding:"required,min=1,max=12"`
	FormType string `json:"form_type" binding:"omitempty,oneof=PND3 PND53"`
}

// ReconcileQuery selects synchronous or background reconciliation
type ReconcileQuery struct {
	Async bool `form:"async"`
}

// ============================================================================
// Responses
// ============================================================================

// CompanyResponse is a company with its tax settings
type CompanyResponse struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	TaxID     string         `json:"tax_id"`
	Address   string         `json:"address"`
	Settings  TaxSettingsDTO `json:"settings"`
	Version   int            `json:"version"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// AccountResponse is a chart-of-accounts entry
type AccountResponse struct {
	ID       uuid.UUID `json:"id"`
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Disabled bool      `json:"disabled"`
}

// InvoiceResponse is an invoice with its computed tax amounts
type InvoiceResponse struct {
	ID                uuid.UUID        `json:"id"`
	Number            string           `json:"number"`
	Kind              string           `json:"kind"`
	Party             tax.Party        `json:"party"`
	PostingDate       string           `json:"posting_date"`
	NetTotal          decimal.Decimal  `json:"net_total"`
	VATAmount         decimal.Decimal  `json:"vat_amount"`
	GrandTotal        decimal.Decimal  `json:"grand_total"`
	OutstandingAmount decimal.Decimal  `json:"outstanding_amount"`
	VATTreatment      string           `json:"vat_treatment"`
	IsService         bool             `json:"is_service"`
	ApplyWHT          bool             `json:"apply_wht"`
	ApplyRetention    bool             `json:"apply_retention"`
	WHTRate           *decimal.Decimal `json:"wht_rate,omitempty"`
	RetentionRate     *decimal.Decimal `json:"retention_rate,omitempty"`
	WHTAmount         decimal.Decimal  `json:"wht_amount"`
	RetentionAmount   decimal.Decimal  `json:"retention_amount"`
	VATUndueAmount    decimal.Decimal  `json:"vat_undue_amount"`
	Version           int              `json:"version"`
}

// AllocationResponse is one payment allocation with its tax shares
type AllocationResponse struct {
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	InvoiceNumber     string          `json:"invoice_number"`
	IsService         bool            `json:"is_service"`
	AllocatedAmount   decimal.Decimal `json:"allocated_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	Basis             tax.TaxBasis    `json:"basis"`
	RetentionShare    decimal.Decimal `json:"retention_share"`
	WHTShare          decimal.Decimal `json:"wht_share"`
	VATUndueShare     decimal.Decimal `json:"vat_undue_share"`
	TaxBaseShare      decimal.Decimal `json:"tax_base_share"`
	NetPayable        decimal.Decimal `json:"net_payable"`
}

// PaymentResponse is a payment with its tax totals
type PaymentResponse struct {
	ID             uuid.UUID            `json:"id"`
	Number         string               `json:"number"`
	Direction      string               `json:"direction"`
	Party          tax.Party            `json:"party"`
	PaidAmount     decimal.Decimal      `json:"paid_amount"`
	PostingDate    string               `json:"posting_date"`
	CashAccount    string               `json:"cash_account"`
	PartyAccount   string               `json:"party_account"`
	ApplyWHT       bool                 `json:"apply_wht"`
	WHTRate        *decimal.Decimal     `json:"wht_rate,omitempty"`
	Status         string               `json:"status"`
	TotalRetention decimal.Decimal      `json:"total_retention"`
	TotalWHT       decimal.Decimal      `json:"total_wht"`
	TotalVATUndue  decimal.Decimal      `json:"total_vat_undue"`
	NetCashAmount  decimal.Decimal      `json:"net_cash_amount"`
	HasRetention   bool                 `json:"has_retention"`
	HasWHT         bool                 `json:"has_wht"`
	HasThaiTaxes   bool                 `json:"has_thai_taxes"`
	CertificateID  *uuid.UUID           `json:"certificate_id,omitempty"`
	SubmittedAt    *time.Time           `json:"submitted_at,omitempty"`
	CancelledAt    *time.Time           `json:"cancelled_at,omitempty"`
	Allocations    []AllocationResponse `json:"allocations"`
	Version        int                  `json:"version"`
}

// PostingResponse is one general-ledger line
type PostingResponse struct {
	ID          uuid.UUID       `json:"id"`
	VoucherID   uuid.UUID       `json:"voucher_id"`
	VoucherType string          `json:"voucher_type"`
	Account     string          `json:"account"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	PartyID     string          `json:"party_id,omitempty"`
	PartyName   string          `json:"party_name,omitempty"`
	Remarks     string          `json:"remarks,omitempty"`
	Source      string          `json:"source"`
	IsCancelled bool            `json:"is_cancelled"`
	PostingDate string          `json:"posting_date"`
}

// PostingPlanResponse is what the posting generator wrote for a payment
type PostingPlanResponse struct {
	CashPosting *PostingResponse  `json:"cash_posting,omitempty"`
	TaxPostings []PostingResponse `json:"tax_postings"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
}

// CertificateResponse is a withholding tax certificate
type CertificateResponse struct {
	ID                uuid.UUID            `json:"id"`
	Number            string               `json:"number"`
	CertificateDate   string               `json:"certificate_date"`
	TaxYear           int                  `json:"tax_year"`
	TaxMonth          int                  `json:"tax_month"`
	Payer             tax.CertificateParty `json:"payer"`
	Payee             tax.CertificateParty `json:"payee"`
	PNDForm           string               `json:"pnd_form"`
	IncomeType        string               `json:"income_type"`
	IncomeDescription string               `json:"income_description"`
	TaxBase           decimal.Decimal      `json:"tax_base"`
	TaxRate           decimal.Decimal      `json:"tax_rate"`
	TaxAmount         decimal.Decimal      `json:"tax_amount"`
	PaymentID         uuid.UUID            `json:"payment_id"`
	PaymentNumber     string               `json:"payment_number"`
	Status            string               `json:"status"`
	IssuedAt          *time.Time           `json:"issued_at,omitempty"`
	CancelledAt       *time.Time           `json:"cancelled_at,omitempty"`
	CancelReason      string               `json:"cancel_reason,omitempty"`
}

// SubmissionResponse reports what submitting a payment produced
type SubmissionResponse struct {
	Payment          PaymentResponse      `json:"payment"`
	Postings         *PostingPlanResponse `json:"postings,omitempty"`
	Eligibility      tax.Eligibility      `json:"eligibility"`
	Certificate      *CertificateResponse `json:"certificate,omitempty"`
	CertificateError string               `json:"certificate_error,omitempty"`
}

// CancellationResponse reports what cancelling a payment reversed
type CancellationResponse struct {
	Payment              PaymentResponse      `json:"payment"`
	ReversedPostings     []PostingResponse    `json:"reversed_postings"`
	CancelledCertificate *CertificateResponse `json:"cancelled_certificate,omitempty"`
}

// CertificateResultResponse is the outcome of an explicit issuance request
type CertificateResultResponse struct {
	Certificate *CertificateResponse `json:"certificate,omitempty"`
	Eligibility tax.Eligibility      `json:"eligibility"`
}

// PreviewResponse is a certificate preview with the eligibility answer
type PreviewResponse struct {
	Preview     *tax.CertificatePreview `json:"preview,omitempty"`
	Eligibility tax.Eligibility         `json:"eligibility"`
}

// PeriodicReturnLineResponse is one certificate listed on a return
type PeriodicReturnLineResponse struct {
	LineNo            int             `json:"line_no"`
	CertificateID     uuid.UUID       `json:"certificate_id"`
	CertificateNumber string          `json:"certificate_number"`
	CertificateDate   string          `json:"certificate_date"`
	PayeeName         string          `json:"payee_name"`
	PayeeTaxID        string          `json:"payee_tax_id"`
	PNDForm           string          `json:"pnd_form"`
	IncomeType        string          `json:"income_type"`
	TaxBase           decimal.Decimal `json:"tax_base"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
}

// PeriodicReturnResponse is a PND3/PND53 return for one period
type PeriodicReturnResponse struct {
	ID               uuid.UUID                    `json:"id"`
	TaxYear          int                          `json:"tax_year"`
	TaxMonth         int                          `json:"tax_month"`
	FormType         string                       `json:"form_type"`
	Status           string                       `json:"status"`
	TotalTaxBase     decimal.Decimal              `json:"total_tax_base"`
	TotalTaxAmount   decimal.Decimal              `json:"total_tax_amount"`
	CertificateCount int                          `json:"certificate_count"`
	LastRebuiltAt    *time.Time                   `json:"last_rebuilt_at,omitempty"`
	FiledAt          *time.Time                   `json:"filed_at,omitempty"`
	Lines            []PeriodicReturnLineResponse `json:"lines"`
}

// ReconcileResponse summarises one reconciliation run
type ReconcileResponse struct {
	TaxYear      int  `json:"tax_year"`
	TaxMonth     int  `json:"tax_month"`
	Certificates int  `json:"certificates"`
	Rebuilt      int  `json:"rebuilt"`
	Unchanged    int  `json:"unchanged"`
	SkippedFiled int  `json:"skipped_filed"`
	Scheduled    bool `json:"scheduled"`
}

// ============================================================================
// Converters
// ============================================================================

func toCompanyResponse(c *tax.Company) CompanyResponse {
	s := c.Settings
	return CompanyResponse{
		ID:      c.ID,
		Name:    c.Name,
		TaxID:   c.TaxID,
		Address: c.Address,
		Settings: TaxSettingsDTO{
			ServiceBusinessEnabled:     s.ServiceBusinessEnabled,
			ConstructionServiceEnabled: s.ConstructionServiceEnabled,
			DefaultWHTRate:             s.DefaultWHTRate,
			DefaultRetentionRate:       s.DefaultRetentionRate,
			WHTAssetAccount:            s.WHTAssetAccount,
			RetentionAssetAccount:      s.RetentionAssetAccount,
			VATUndueAccount:            s.VATUndueAccount,
			VATAccount:                 s.VATAccount,
			WHTPayableAccount:          s.WHTPayableAccount,
			RetentionPayableAccount:    s.RetentionPayableAccount,
			PurchaseVATUndueAccount:    s.PurchaseVATUndueAccount,
			PurchaseVATAccount:         s.PurchaseVATAccount,
		},
		Version:   c.Version,
		UpdatedAt: c.UpdatedAt,
	}
}

func toAccountResponse(a *tax.Account) AccountResponse {
	return AccountResponse{
		ID:       a.ID,
		Code:     a.Code,
		Name:     a.Name,
		Type:     string(a.Type),
		Disabled: a.Disabled,
	}
}

func toInvoiceResponse(inv *tax.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                inv.ID,
		Number:            inv.Number,
		Kind:              string(inv.Kind),
		Party:             inv.Party,
		PostingDate:       inv.PostingDate.Format(dateLayout),
		NetTotal:          inv.NetTotal,
		VATAmount:         inv.VATAmount,
		GrandTotal:        inv.GrandTotal,
		OutstandingAmount: inv.OutstandingAmount,
		VATTreatment:      string(inv.VATTreatment),
		IsService:         inv.IsService,
		ApplyWHT:          inv.ApplyWHT,
		ApplyRetention:    inv.ApplyRetention,
		WHTRate:           inv.WHTRate,
		RetentionRate:     inv.RetentionRate,
		WHTAmount:         inv.WHTAmount,
		RetentionAmount:   inv.RetentionAmount,
		VATUndueAmount:    inv.VATUndueAmount,
		Version:           inv.Version,
	}
}

func toPaymentResponse(p *tax.Payment) PaymentResponse {
	allocations := make([]AllocationResponse, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		allocations = append(allocations, AllocationResponse{
			InvoiceID:         a.InvoiceID,
			InvoiceNumber:     a.InvoiceNumber,
			IsService:         a.IsService,
			AllocatedAmount:   a.AllocatedAmount,
			OutstandingAmount: a.OutstandingAmount,
			Basis:             a.Basis,
			RetentionShare:    a.RetentionShare,
			WHTShare:          a.WHTShare,
			VATUndueShare:     a.VATUndueShare,
			TaxBaseShare:      a.TaxBaseShare,
			NetPayable:        a.NetPayable,
		})
	}
	return PaymentResponse{
		ID:             p.ID,
		Number:         p.Number,
		Direction:      string(p.Direction),
		Party:          p.Party,
		PaidAmount:     p.PaidAmount,
		PostingDate:    p.PostingDate.Format(dateLayout),
		CashAccount:    p.CashAccount,
		PartyAccount:   p.PartyAccount,
		ApplyWHT:       p.ApplyWHT,
		WHTRate:        p.WHTRate,
		Status:         string(p.Status),
		TotalRetention: p.TotalRetention,
		TotalWHT:       p.TotalWHT,
		TotalVATUndue:  p.TotalVATUndue,
		NetCashAmount:  p.NetCashAmount,
		HasRetention:   p.HasRetention,
		HasWHT:         p.HasWHT,
		HasThaiTaxes:   p.HasThaiTaxes,
		CertificateID:  p.CertificateID,
		SubmittedAt:    p.SubmittedAt,
		CancelledAt:    p.CancelledAt,
		Allocations:    allocations,
		Version:        p.Version,
	}
}

func toPostingResponse(p *tax.LedgerPosting) PostingResponse {
	return PostingResponse{
		ID:          p.ID,
		VoucherID:   p.VoucherID,
		VoucherType: p.VoucherType,
		Account:     p.Account,
		Debit:       p.Debit,
		Credit:      p.Credit,
		PartyID:     p.PartyID,
		PartyName:   p.PartyName,
		Remarks:     p.Remarks,
		Source:      string(p.Source),
		IsCancelled: p.IsCancelled,
		PostingDate: p.PostingDate.Format(dateLayout),
	}
}

func toPostingResponses(postings []*tax.LedgerPosting) []PostingResponse {
	out := make([]PostingResponse, 0, len(postings))
	for _, p := range postings {
		out = append(out, toPostingResponse(p))
	}
	return out
}

func toPostingPlanResponse(plan *tax.PostingPlan) *PostingPlanResponse {
	if plan == nil {
		return nil
	}
	resp := &PostingPlanResponse{
		TaxPostings: toPostingResponses(plan.TaxPostings),
		TotalDebit:  plan.TotalDebit,
		TotalCredit: plan.TotalCredit,
	}
	if plan.CashPosting != nil {
		cash := toPostingResponse(plan.CashPosting)
		resp.CashPosting = &cash
	}
	return resp
}

func toCertificateResponse(c *tax.Certificate) *CertificateResponse {
	if c == nil {
		return nil
	}
	return &CertificateResponse{
		ID:                c.ID,
		Number:            c.Number,
		CertificateDate:   c.CertificateDate.Format(dateLayout),
		TaxYear:           c.TaxYear,
		TaxMonth:          c.TaxMonth,
		Payer:             c.Payer,
		Payee:             c.Payee,
		PNDForm:           string(c.PNDForm),
		IncomeType:        string(c.IncomeType),
		IncomeDescription: c.IncomeDescription,
		TaxBase:           c.TaxBase,
		TaxRate:           c.TaxRate,
		TaxAmount:         c.TaxAmount,
		PaymentID:         c.PaymentID,
		PaymentNumber:     c.PaymentNumber,
		Status:            string(c.Status),
		IssuedAt:          c.IssuedAt,
		CancelledAt:       c.CancelledAt,
		CancelReason:      c.CancelReason,
	}
}

func toSubmissionResponse(r *apptax.SubmissionResult) SubmissionResponse {
	resp := SubmissionResponse{
		Payment:     toPaymentResponse(r.Payment),
		Postings:    toPostingPlanResponse(r.Plan),
		Eligibility: r.Eligibility,
		Certificate: toCertificateResponse(r.Certificate),
	}
	if r.CertificateError != nil {
		resp.CertificateError = r.CertificateError.Error()
	}
	return resp
}

func toCancellationResponse(r *apptax.CancellationResult) CancellationResponse {
	return CancellationResponse{
		Payment:              toPaymentResponse(r.Payment),
		ReversedPostings:     toPostingResponses(r.ReversedPostings),
		CancelledCertificate: toCertificateResponse(r.CancelledCertificate),
	}
}

func toPeriodicReturnResponse(r *tax.PeriodicReturn) PeriodicReturnResponse {
	lines := make([]PeriodicReturnLineResponse, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, PeriodicReturnLineResponse{
			LineNo:            l.LineNo,
			CertificateID:     l.CertificateID,
			CertificateNumber: l.CertificateNumber,
			CertificateDate:   l.CertificateDate.Format(dateLayout),
			PayeeName:         l.PayeeName,
			PayeeTaxID:        l.PayeeTaxID,
			PNDForm:           string(l.PNDForm),
			IncomeType:        string(l.IncomeType),
			TaxBase:           l.TaxBase,
			TaxRate:           l.TaxRate,
			TaxAmount:         l.TaxAmount,
		})
	}
	return PeriodicReturnResponse{
		ID:               r.ID,
		TaxYear:          r.TaxYear,
		TaxMonth:         r.TaxMonth,
		FormType:         string(r.FormType),
		Status:           string(r.Status),
		TotalTaxBase:     r.TotalTaxBase,
		TotalTaxAmount:   r.TotalTaxAmount,
		CertificateCount: r.CertificateCount,
		LastRebuiltAt:    r.LastRebuiltAt,
		FiledAt:          r.FiledAt,
		Lines:            lines,
	}
}
