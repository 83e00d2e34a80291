package handler

import (
	apptax "github.com/erp/thaitax/internal/application/tax"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/erp/thaitax/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// TaxReturnHandler handles the PND3/PND53 periodic returns
type TaxReturnHandler struct {
	BaseHandler
	reconciler *apptax.ReconcileService
	scheduler  tax.ReconcileScheduler
}

// NewTaxReturnHandler creates a new TaxReturnHandler. A nil scheduler makes
// every reconcile request run inline.
func NewTaxReturnHandler(reconciler *apptax.ReconcileService, scheduler tax.ReconcileScheduler) *TaxReturnHandler {
	return &TaxReturnHandler{reconciler: reconciler, scheduler: scheduler}
}

// Open godoc
// POST /tax-returns
func (h *TaxReturnHandler) Open(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}

	var req OpenPeriodicReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	period, err := tax.NewTaxPeriod(req.TaxYear, req.TaxMonth)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	r, err := h.reconciler.OpenPeriodicReturn(c.Request.Context(), companyID, period, tax.PNDForm(req.FormType))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toPeriodicReturnResponse(r))
}

// List godoc
// GET /tax-returns/:year/:month
func (h *TaxReturnHandler) List(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	period, ok := h.period(c)
	if !ok {
		return
	}

	returns, err := h.reconciler.GetPeriodicReturns(c.Request.Context(), companyID, period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]PeriodicReturnResponse, 0, len(returns))
	for i := range returns {
		out = append(out, toPeriodicReturnResponse(&returns[i]))
	}
	h.Success(c, out)
}

// Reconcile godoc
// POST /tax-returns/:year/:month/reconcile[?async=true]
//
// The async form only queues the period and answers 202.
func (h *TaxReturnHandler) Reconcile(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	period, ok := h.period(c)
	if !ok {
		return
	}
	var q ReconcileQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	if q.Async && h.scheduler != nil {
		if err := h.scheduler.Schedule(c.Request.Context(), tax.NewReconcilePeriodJob(companyID, period)); err != nil {
			h.HandleError(c, err)
			return
		}
		h.Accepted(c, ReconcileResponse{TaxYear: period.Year, TaxMonth: period.Month, Scheduled: true})
		return
	}

	result, err := h.reconciler.ReconcilePeriod(c.Request.Context(), companyID, period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ReconcileResponse{
		TaxYear:      result.Period.Year,
		TaxMonth:     result.Period.Month,
		Certificates: result.Certificates,
		Rebuilt:      result.Rebuilt,
		Unchanged:    result.Unchanged,
		SkippedFiled: result.SkippedFiled,
	})
}

// File godoc
// POST /periodic-returns/:id/file
func (h *TaxReturnHandler) File(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	r, err := h.reconciler.FilePeriodicReturn(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPeriodicReturnResponse(r))
}

func (h *TaxReturnHandler) period(c *gin.Context) (tax.TaxPeriod, bool) {
	var req dto.PeriodRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.ValidationError(c, err)
		return tax.TaxPeriod{}, false
	}
	period, err := tax.NewTaxPeriod(req.Year, req.Month)
	if err != nil {
		h.BadRequest(c, err.Error())
		return tax.TaxPeriod{}, false
	}
	return period, true
}
