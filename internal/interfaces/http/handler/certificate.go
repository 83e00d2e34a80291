package handler

import (
	apptax "github.com/erp/thaitax/internal/application/tax"
	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/gin-gonic/gin"
)

// CertificateHandler issues, previews and cancels 50 Tawi certificates
type CertificateHandler struct {
	BaseHandler
	certificates *apptax.CertificateService
}

// NewCertificateHandler creates a new CertificateHandler
func NewCertificateHandler(certificates *apptax.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// Create godoc
// POST /payments/:id/certificate
//
// An ineligible payment answers 200 with the reasons and no certificate.
func (h *CertificateHandler) Create(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.certificates.CreateCertificate(c.Request.Context(), companyID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := CertificateResultResponse{
		Certificate: toCertificateResponse(result.Certificate),
		Eligibility: result.Eligibility,
	}
	if result.Certificate == nil {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// Preview godoc
// GET /payments/:id/certificate-preview
func (h *CertificateHandler) Preview(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.certificates.GetCertificatePreview(c.Request.Context(), companyID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, PreviewResponse{Preview: result.Preview, Eligibility: result.Eligibility})
}

// Get godoc
// GET /certificates/:id
func (h *CertificateHandler) Get(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	cert, err := h.certificates.GetCertificate(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCertificateResponse(cert))
}

// List godoc
// GET /certificates
func (h *CertificateHandler) List(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	var q ListCertificatesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	filter := tax.CertificateFilter{
		Filter:   shared.Filter{Page: q.Page, PageSize: q.PageSize},
		Status:   tax.CertificateStatus(q.Status),
		PNDForm:  tax.PNDForm(q.PNDForm),
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
	}
	if q.TaxYear != 0 {
		filter.Period = &tax.TaxPeriod{Year: q.TaxYear, Month: q.TaxMonth}
	}

	page, err := h.certificates.ListCertificates(c.Request.Context(), companyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]*CertificateResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toCertificateResponse(&page.Items[i]))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// Cancel godoc
// POST /certificates/:id/cancel
func (h *CertificateHandler) Cancel(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req CancelCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	cert, err := h.certificates.CancelCertificate(c.Request.Context(), companyID, id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCertificateResponse(cert))
}
