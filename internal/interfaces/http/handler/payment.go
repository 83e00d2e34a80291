package handler

import (
	apptax "github.com/erp/thaitax/internal/application/tax"
	"github.com/gin-gonic/gin"
)

// PaymentHandler drives the payment lifecycle: draft, submit, cancel
type PaymentHandler struct {
	BaseHandler
	payments *apptax.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *apptax.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create godoc
// POST /payments
func (h *PaymentHandler) Create(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	postingDate, err := parseDate(req.PostingDate)
	if err != nil {
		h.BadRequest(c, "Invalid posting_date")
		return
	}

	payment, err := h.payments.CreatePayment(c.Request.Context(), companyID, req.toTerms(postingDate), req.allocations())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toPaymentResponse(payment))
}

// Get godoc
// GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	payment, err := h.payments.GetPayment(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPaymentResponse(payment))
}

// Submit godoc
// POST /payments/:id/submit
//
// A payment that posts but whose certificate fails still answers 200; the
// failure is reported in certificate_error.
func (h *PaymentHandler) Submit(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.payments.SubmitPayment(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSubmissionResponse(result))
}

// Cancel godoc
// POST /payments/:id/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.payments.CancelPayment(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCancellationResponse(result))
}
