package handler

import (
	apptax "github.com/erp/thaitax/internal/application/tax"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerHandler exposes the host ledger and the read-only tax queries
type LedgerHandler struct {
	BaseHandler
	ledger  *apptax.LedgerService
	queries *apptax.QueryService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledger *apptax.LedgerService, queries *apptax.QueryService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, queries: queries}
}

// RecordPostings godoc
// POST /ledger/postings
func (h *LedgerHandler) RecordPostings(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}

	var req RecordPostingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	postingDate, err := parseDate(req.PostingDate)
	if err != nil {
		h.BadRequest(c, "Invalid posting_date")
		return
	}

	postings, err := h.ledger.RecordHostPostings(c.Request.Context(), tax.Voucher{
		CompanyID:   companyID,
		ID:          uuid.MustParse(req.VoucherID),
		Type:        req.VoucherType,
		PostingDate: postingDate,
	}, req.lines())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toPostingResponses(postings))
}

// GetVoucher godoc
// GET /ledger/vouchers/:id
func (h *LedgerHandler) GetVoucher(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	postings, err := h.ledger.GetVoucher(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]PostingResponse, 0, len(postings))
	for i := range postings {
		out = append(out, toPostingResponse(&postings[i]))
	}
	h.Success(c, out)
}

// AccountBalance godoc
// GET /ledger/accounts/:code/balance
func (h *LedgerHandler) AccountBalance(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}

	balance, err := h.queries.AccountBalance(c.Request.Context(), companyID, c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// CalculateWHTResponse is the standalone calculator result
type CalculateWHTResponse struct {
	Base   decimal.Decimal `json:"base"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// CalculateWHT godoc
// GET /wht/calculate?base=&rate=
func (h *LedgerHandler) CalculateWHT(c *gin.Context) {
	var q CalculateWHTQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}
	base, err := decimal.NewFromString(q.Base)
	if err != nil {
		h.BadRequest(c, "Invalid base amount")
		return
	}
	rate, err := decimal.NewFromString(q.Rate)
	if err != nil {
		h.BadRequest(c, "Invalid rate")
		return
	}

	h.Success(c, CalculateWHTResponse{
		Base:   base,
		Rate:   rate,
		Amount: h.queries.CalculateWHT(base, rate),
	})
}
