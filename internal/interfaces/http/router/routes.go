package router

import (
	"github.com/erp/thaitax/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// Handlers bundles the settlement API handlers
type Handlers struct {
	Setup        *handler.SetupHandler
	Invoices     *handler.InvoiceHandler
	Payments     *handler.PaymentHandler
	Certificates *handler.CertificateHandler
	Ledger       *handler.LedgerHandler
	TaxReturns   *handler.TaxReturnHandler
}

// SettlementGroups lays out the company-scoped API
func SettlementGroups(h Handlers) []RouteRegistrar {
	companies := NewDomainGroup("companies", "/companies").
		PUT("/:id/tax-settings", h.Setup.UpsertCompany)

	accounts := NewDomainGroup("accounts", "/accounts").
		PUT("/:code", h.Setup.UpsertAccount)

	invoices := NewDomainGroup("invoices", "/invoices").
		PUT("/:id", h.Invoices.Upsert).
		GET("/:id", h.Invoices.Get).
		GET("/:id/tax-details", h.Invoices.GetTaxDetails)

	payments := NewDomainGroup("payments", "/payments").
		POST("", h.Payments.Create).
		GET("/:id", h.Payments.Get).
		POST("/:id/submit", h.Payments.Submit).
		POST("/:id/cancel", h.Payments.Cancel).
		POST("/:id/certificate", h.Certificates.Create).
		GET("/:id/certificate-preview", h.Certificates.Preview)

	certificates := NewDomainGroup("certificates", "/certificates").
		GET("", h.Certificates.List).
		GET("/:id", h.Certificates.Get).
		POST("/:id/cancel", h.Certificates.Cancel)

	ledger := NewDomainGroup("ledger", "/ledger").
		POST("/postings", h.Ledger.RecordPostings).
		GET("/vouchers/:id", h.Ledger.GetVoucher).
		GET("/accounts/:code/balance", h.Ledger.AccountBalance)

	wht := NewDomainGroup("wht", "/wht").
		GET("/calculate", h.Ledger.CalculateWHT)

	taxReturns := NewDomainGroup("tax-returns", "/tax-returns").
		POST("", h.TaxReturns.Open).
		GET("/:year/:month", h.TaxReturns.List).
		POST("/:year/:month/reconcile", h.TaxReturns.Reconcile)

	periodicReturns := NewDomainGroup("periodic-returns", "/periodic-returns").
		POST("/:id/file", h.TaxReturns.File)

	return []RouteRegistrar{
		companies, accounts, invoices, payments, certificates,
		ledger, wht, taxReturns, periodicReturns,
	}
}

// RegisterSystemRoutes mounts the health routes at the engine root, outside the
// company-scoped API
func RegisterSystemRoutes(engine *gin.Engine, system *handler.SystemHandler) {
	engine.GET("/health", system.Health)
	engine.GET("/ready", system.Ready)
}
