package handler

import (
	apptax "github.com/erp/thaitax/internal/application/tax"
	"github.com/gin-gonic/gin"
)

// InvoiceHandler handles invoice endpoints. Invoices are owned by the host;
// saving one runs the resolver and fills in its tax amounts.
type InvoiceHandler struct {
	BaseHandler
	invoices *apptax.InvoiceService
	queries  *apptax.QueryService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices *apptax.InvoiceService, queries *apptax.QueryService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, queries: queries}
}

// Upsert godoc
// PUT /invoices/:id
func (h *InvoiceHandler) Upsert(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req UpsertInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	postingDate, err := parseDate(req.PostingDate)
	if err != nil {
		h.BadRequest(c, "Invalid posting_date")
		return
	}

	invoice, err := h.invoices.UpsertInvoice(c.Request.Context(), companyID, id, req.toTerms(postingDate))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(invoice))
}

// Get godoc
// GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.invoices.GetInvoice(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(invoice))
}

// GetTaxDetails godoc
// GET /invoices/:id/tax-details
func (h *InvoiceHandler) GetTaxDetails(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	details, err := h.queries.GetInvoiceTaxDetails(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, details)
}
