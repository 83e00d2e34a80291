package handler

import (
	"net/http"

	apptax "github.com/erp/thaitax/internal/application/tax"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/erp/thaitax/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SetupHandler maintains companies and their chart of accounts
type SetupHandler struct {
	BaseHandler
	setup *apptax.SetupService
}

// NewSetupHandler creates a new SetupHandler
func NewSetupHandler(setup *apptax.SetupService) *SetupHandler {
	return &SetupHandler{setup: setup}
}

// UpsertCompany godoc
// PUT /companies/:id/tax-settings
//
// The path id must name the company in the X-Company-ID header.
func (h *SetupHandler) UpsertCompany(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if id != companyID {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidIdentifier, "Company ID does not match the X-Company-ID header")
		return
	}

	var req UpsertCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	company, err := h.setup.UpsertCompany(c.Request.Context(), id, apptax.CompanyInput{
		Name:     req.Name,
		TaxID:    req.TaxID,
		Address:  req.Address,
		Settings: req.Settings.toDomain(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCompanyResponse(company))
}

// UpsertAccount godoc
// PUT /accounts/:code
func (h *SetupHandler) UpsertAccount(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}

	var req UpsertAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	account, err := h.setup.UpsertAccount(c.Request.Context(), companyID, c.Param("code"), apptax.AccountInput{
		Name:     req.Name,
		Type:     tax.AccountType(req.Type),
		Disabled: req.Disabled,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAccountResponse(account))
}
