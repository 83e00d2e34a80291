package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	apptax "github.com/erp/thaitax/internal/application/tax"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/erp/thaitax/internal/infrastructure/event"
	"github.com/erp/thaitax/internal/infrastructure/persistence"
	"github.com/erp/thaitax/internal/interfaces/http/dto"
	"github.com/erp/thaitax/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// Chart of accounts used by the HTTP tests
const (
	acctCash             = "1000"
	acctPayable          = "2100"
	acctReceivable       = "1100"
	acctWHTAsset         = "1150"
	acctRetentionAsset   = "1160"
	acctPurchaseVATUndue = "1170"
	acctPurchaseVAT      = "1180"
	acctWHTPayable       = "2140"
	acctVATUndue         = "2150"
	acctVAT              = "2160"
	acctRetentionPayable = "2170"
)

// recordingScheduler captures background reconcile jobs
type recordingScheduler struct {
	mu   sync.Mutex
	jobs []tax.ReconcilePeriodJob
	err  error
}

func (s *recordingScheduler) Schedule(_ context.Context, job tax.ReconcilePeriodJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *recordingScheduler) Jobs() []tax.ReconcilePeriodJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tax.ReconcilePeriodJob(nil), s.jobs...)
}

// testServer is the settlement API wired to an in-memory SQLite database
type testServer struct {
	engine    *gin.Engine
	db        *gorm.DB
	scheduler *recordingScheduler
	companyID uuid.UUID
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&tax.Company{},
		&tax.Account{},
		&tax.Invoice{},
		&tax.Payment{},
		&tax.PaymentAllocation{},
		&tax.LedgerPosting{},
		&tax.Certificate{},
		&tax.PeriodicReturn{},
		&tax.PeriodicReturnLine{},
		&persistence.CertificateSequence{},
	))
	return db
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := openTestDB(t)
	log := zap.NewNop()

	repos := apptax.Repositories{
		Companies:    persistence.NewGormCompanyRepository(db),
		Accounts:     persistence.NewGormAccountRepository(db),
		Invoices:     persistence.NewGormInvoiceRepository(db),
		Payments:     persistence.NewGormPaymentRepository(db),
		Ledger:       persistence.NewGormLedgerRepository(db),
		Certificates: persistence.NewGormCertificateRepository(db),
		Returns:      persistence.NewGormPeriodicReturnRepository(db),
	}
	tx := persistence.NewGormTransactor(db)

	scheduler := &recordingScheduler{}
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(apptax.NewCertificateLifecycleHandler(scheduler, log))
	require.NoError(t, bus.Start(context.Background()))

	certificates := apptax.NewCertificateService(repos, tx, persistence.NewGormCertificateSequencer(db), bus, log)
	settlement := apptax.NewSettlementService(repos, tx, certificates, bus, nil, log)
	queries := apptax.NewQueryService(repos, log)
	reconciler := apptax.NewReconcileService(repos, tx, bus, nil, log)

	engine := gin.New()
	engine.Use(middleware.RequestID())

	api := engine.Group("/api/v1", middleware.CompanyContext())
	setup := NewSetupHandler(apptax.NewSetupService(repos.Companies, repos.Accounts, log))
	invoices := NewInvoiceHandler(apptax.NewInvoiceService(repos.Invoices, settlement, log), queries)
	payments := NewPaymentHandler(apptax.NewPaymentService(repos, tx, settlement, log))
	certs := NewCertificateHandler(certificates)
	ledger := NewLedgerHandler(apptax.NewLedgerService(repos.Ledger, log), queries)
	returns := NewTaxReturnHandler(reconciler, scheduler)

	api.PUT("/companies/:id/tax-settings", setup.UpsertCompany)
	api.PUT("/accounts/:code", setup.UpsertAccount)
	api.PUT("/invoices/:id", invoices.Upsert)
	api.GET("/invoices/:id", invoices.Get)
	api.GET("/invoices/:id/tax-details", invoices.GetTaxDetails)
	api.POST("/payments", payments.Create)
	api.GET("/payments/:id", payments.Get)
	api.POST("/payments/:id/submit", payments.Submit)
	api.POST("/payments/:id/cancel", payments.Cancel)
	api.POST("/payments/:id/certificate", certs.Create)
	api.GET("/payments/:id/certificate-preview", certs.Preview)
	api.GET("/certificates", certs.List)
	api.GET("/certificates/:id", certs.Get)
	api.POST("/certificates/:id/cancel", certs.Cancel)
	api.POST("/ledger/postings", ledger.RecordPostings)
	api.GET("/ledger/vouchers/:id", ledger.GetVoucher)
	api.GET("/ledger/accounts/:code/balance", ledger.AccountBalance)
	api.GET("/wht/calculate", ledger.CalculateWHT)
	api.POST("/tax-returns", returns.Open)
	api.GET("/tax-returns/:year/:month", returns.List)
	api.POST("/tax-returns/:year/:month/reconcile", returns.Reconcile)
	api.POST("/periodic-returns/:id/file", returns.File)

	return &testServer{
		engine:    engine,
		db:        db,
		scheduler: scheduler,
		companyID: uuid.New(),
	}
}

// do sends a request as the server's company
func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.doAs(t, s.companyID.String(), method, path, body)
}

func (s *testServer) doAs(t *testing.T, companyID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if companyID != "" {
		req.Header.Set(middleware.CompanyIDHeader, companyID)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
}

// decode reads the response envelope and requires the given status
func decode[T any](t *testing.T, w *httptest.ResponseRecorder, status int) envelope[T] {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

// errorCode reads the error code of a failed response
func errorCode(t *testing.T, w *httptest.ResponseRecorder, status int) string {
	t.Helper()
	env := decode[json.RawMessage](t, w, status)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	return env.Error.Code
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// setupCompany configures a company with WHT and retention enabled and
// registers every tax account
func (s *testServer) setupCompany(t *testing.T) {
	t.Helper()
	w := s.do(t, http.MethodPut, "/api/v1/companies/"+s.companyID.String()+"/tax-settings", UpsertCompanyRequest{
		Name:    "Siam Build Co., Ltd.",
		TaxID:   "0105551234567",
		Address: "99 Rama IV Road, Bangkok",
		Settings: TaxSettingsDTO{
			ServiceBusinessEnabled:     true,
			ConstructionServiceEnabled: true,
			DefaultWHTRate:             decPtr("3"),
			DefaultRetentionRate:       decPtr("5"),
			WHTAssetAccount:            acctWHTAsset,
			RetentionAssetAccount:      acctRetentionAsset,
			VATUndueAccount:            acctVATUndue,
			VATAccount:                 acctVAT,
			WHTPayableAccount:          acctWHTPayable,
			RetentionPayableAccount:    acctRetentionPayable,
			PurchaseVATUndueAccount:    acctPurchaseVATUndue,
			PurchaseVATAccount:         acctPurchaseVAT,
		},
	})
	decode[CompanyResponse](t, w, http.StatusOK)

	for code, typ := range map[string]string{
		acctCash:             "ASSET",
		acctReceivable:       "ASSET",
		acctPayable:          "LIABILITY",
		acctWHTAsset:         "ASSET",
		acctRetentionAsset:   "ASSET",
		acctPurchaseVATUndue: "ASSET",
		acctPurchaseVAT:      "ASSET",
		acctWHTPayable:       "LIABILITY",
		acctVATUndue:         "LIABILITY",
		acctVAT:              "LIABILITY",
		acctRetentionPayable: "LIABILITY",
	} {
		w := s.do(t, http.MethodPut, "/api/v1/accounts/"+code, UpsertAccountRequest{Name: "Account " + code, Type: typ})
		decode[AccountResponse](t, w, http.StatusOK)
	}
}

// createInvoice saves a 100 + 7 VAT-undue service invoice with WHT and
// retention flagged
func (s *testServer) createInvoice(t *testing.T, kind string) InvoiceResponse {
	t.Helper()
	id := uuid.New()
	w := s.do(t, http.MethodPut, "/api/v1/invoices/"+id.String(), UpsertInvoiceRequest{
		Number:         "INV-" + id.String()[:8],
		Kind:           kind,
		Party:          PartyRequest{ID: "P-1", Name: "Chiang Mai Services Co., Ltd.", TaxID: "0505559876543"},
		PostingDate:    "2025-03-10",
		NetTotal:       dec("100"),
		VATAmount:      dec("7"),
		VATTreatment:   "UNDUE",
		IsService:      true,
		ApplyWHT:       true,
		ApplyRetention: true,
	})
	return decode[InvoiceResponse](t, w, http.StatusOK).Data
}

// createPayment drafts a payment of 107 settling inv in full
func (s *testServer) createPayment(t *testing.T, direction string, inv InvoiceResponse) PaymentResponse {
	t.Helper()
	partyAccount := acctReceivable
	if direction == "PAY" {
		partyAccount = acctPayable
	}
	w := s.do(t, http.MethodPost, "/api/v1/payments", CreatePaymentRequest{
		Number:       "PAY-" + inv.Number,
		Direction:    direction,
		Party:        PartyRequest{ID: "P-1", Name: "Chiang Mai Services Co., Ltd.", TaxID: "0505559876543"},
		PaidAmount:   dec("107"),
		PostingDate:  "2025-03-15",
		CashAccount:  acctCash,
		PartyAccount: partyAccount,
		ApplyWHT:     true,
		Allocations:  []AllocationRequest{{InvoiceID: inv.ID.String(), Amount: dec("107")}},
	})
	return decode[PaymentResponse](t, w, http.StatusCreated).Data
}

// failingPinger is a readiness check that always fails
type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }
