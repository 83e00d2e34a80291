package tax

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCompanyRepository is a mock implementation of tax.CompanyRepository
type MockCompanyRepository struct {
	mock.Mock
}

func (m *MockCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*tax.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.Company), args.Error(1)
}

func (m *MockCompanyRepository) Save(ctx context.Context, company *tax.Company) error {
	args := m.Called(ctx, company)
	return args.Error(0)
}

// MockAccountRepository is a mock implementation of tax.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) FindByCode(ctx context.Context, companyID uuid.UUID, code string) (*tax.Account, error) {
	args := m.Called(ctx, companyID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByCodes(ctx context.Context, companyID uuid.UUID, codes []string) ([]tax.Account, error) {
	args := m.Called(ctx, companyID, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tax.Account), args.Error(1)
}

func (m *MockAccountRepository) Save(ctx context.Context, account *tax.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockInvoiceRepository is a mock implementation of tax.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*tax.Invoice, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]tax.Invoice, error) {
	args := m.Called(ctx, companyID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tax.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *tax.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

// MockPaymentRepository is a mock implementation of tax.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*tax.Payment, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*tax.Payment, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Save(ctx context.Context, payment *tax.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

// MockLedgerRepository is a mock implementation of tax.LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) FindByVoucher(ctx context.Context, companyID, voucherID uuid.UUID) ([]tax.LedgerPosting, error) {
	args := m.Called(ctx, companyID, voucherID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tax.LedgerPosting), args.Error(1)
}

func (m *MockLedgerRepository) FindByAccount(ctx context.Context, companyID uuid.UUID, account string) ([]tax.LedgerPosting, error) {
	args := m.Called(ctx, companyID, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tax.LedgerPosting), args.Error(1)
}

func (m *MockLedgerRepository) SaveAll(ctx context.Context, postings []*tax.LedgerPosting) error {
	args := m.Called(ctx, postings)
	return args.Error(0)
}

// MockCertificateRepository is a mock implementation of tax.CertificateRepository
type MockCertificateRepository struct {
	mock.Mock
}

func (m *MockCertificateRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*tax.Certificate, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.Certificate), args.Error(1)
}

func (m *MockCertificateRepository) FindActiveByPayment(ctx context.Context, companyID, paymentID uuid.UUID) (*tax.Certificate, error) {
	args := m.Called(ctx, companyID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.Certificate), args.Error(1)
}

func (m *MockCertificateRepository) ExistsActiveForPayment(ctx context.Context, companyID, paymentID uuid.UUID) (bool, error) {
	args := m.Called(ctx, companyID, paymentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCertificateRepository) FindIssuedForPeriod(ctx context.Context, companyID uuid.UUID, period tax.TaxPeriod) ([]tax.Certificate, error) {
	args := m.Called(ctx, companyID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tax.Certificate), args.Error(1)
}

func (m *MockCertificateRepository) List(ctx context.Context, companyID uuid.UUID, filter tax.CertificateFilter) ([]tax.Certificate, int64, error) {
	args := m.Called(ctx, companyID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]tax.Certificate), args.Get(1).(int64), args.Error(2)
}

func (m *MockCertificateRepository) Save(ctx context.Context, certificate *tax.Certificate) error {
	args := m.Called(ctx, certificate)
	return args.Error(0)
}

// MockPeriodicReturnRepository is a mock implementation of tax.PeriodicReturnRepository
type MockPeriodicReturnRepository struct {
	mock.Mock
}

func (m *MockPeriodicReturnRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*tax.PeriodicReturn, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.PeriodicReturn), args.Error(1)
}

func (m *MockPeriodicReturnRepository) FindByPeriod(ctx context.Context, companyID uuid.UUID, period tax.TaxPeriod) ([]tax.PeriodicReturn, error) {
	args := m.Called(ctx, companyID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tax.PeriodicReturn), args.Error(1)
}

func (m *MockPeriodicReturnRepository) Save(ctx context.Context, r *tax.PeriodicReturn) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

// MockSequencer is a mock implementation of tax.CertificateSequencer
type MockSequencer struct {
	mock.Mock
}

func (m *MockSequencer) Next(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockScheduler is a mock implementation of tax.ReconcileScheduler
type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(ctx context.Context, job tax.ReconcilePeriodJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// recordingMetrics keeps every certificate outcome it is given
type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	submits  int
}

func (r *recordingMetrics) RecordSubmission(context.Context, uuid.UUID, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submits++
}

func (r *recordingMetrics) RecordCertificate(_ context.Context, _ uuid.UUID, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingMetrics) RecordReconcile(context.Context, uuid.UUID, time.Duration, error) {}

// fakeTransactor runs fn directly. Nested calls behave like savepoints:
// after-commit hooks registered by a failed inner call are dropped.
type fakeTransactor struct {
	depth   int
	pending []func(ctx context.Context)
	commits int
}

func (f *fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	mark := len(f.pending)
	f.depth++
	err := fn(ctx)
	f.depth--
	if err != nil {
		f.pending = f.pending[:mark]
		return err
	}
	if f.depth == 0 {
		f.commits++
		hooks := f.pending
		f.pending = nil
		for _, h := range hooks {
			h(ctx)
		}
	}
	return nil
}

func (f *fakeTransactor) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if f.depth == 0 {
		fn(ctx)
		return
	}
	f.pending = append(f.pending, fn)
}

// ==================== Fixtures ====================

const (
	testCashAccount       = "1110"
	testReceivableAccount = "1130"
	testPayableAccount    = "2110"
	testWHTAsset          = "1150"
	testRetentionAsset    = "1160"
	testVATUndue          = "2150"
	testVAT               = "2160"
	testWHTPayable        = "2170"
	testRetentionPayable  = "2180"
	testPurchaseVATUndue  = "1170"
	testPurchaseVAT       = "1180"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testPostingDate() time.Time {
	return time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
}

func createTestCompany(t *testing.T) *tax.Company {
	t.Helper()
	c, err := tax.NewCompany("Siam Build Co., Ltd.", "0105551234567")
	require.NoError(t, err)
	require.NoError(t, c.UpdateSettings(tax.TaxSettings{
		ServiceBusinessEnabled:     true,
		ConstructionServiceEnabled: true,
		WHTAssetAccount:            testWHTAsset,
		RetentionAssetAccount:      testRetentionAsset,
		VATUndueAccount:            testVATUndue,
		VATAccount:                 testVAT,
		WHTPayableAccount:          testWHTPayable,
		RetentionPayableAccount:    testRetentionPayable,
		PurchaseVATUndueAccount:    testPurchaseVATUndue,
		PurchaseVATAccount:         testPurchaseVAT,
	}))
	return c
}

func createTestAccounts(companyID uuid.UUID) []tax.Account {
	types := map[string]tax.AccountType{
		testWHTAsset:         tax.AccountTypeAsset,
		testRetentionAsset:   tax.AccountTypeAsset,
		testVATUndue:         tax.AccountTypeLiability,
		testVAT:              tax.AccountTypeLiability,
		testWHTPayable:       tax.AccountTypeLiability,
		testRetentionPayable: tax.AccountTypeLiability,
		testPurchaseVATUndue: tax.AccountTypeAsset,
		testPurchaseVAT:      tax.AccountTypeAsset,
	}
	accounts := make([]tax.Account, 0, len(types))
	for code, typ := range types {
		acc, _ := tax.NewAccount(companyID, code, code, typ)
		accounts = append(accounts, *acc)
	}
	return accounts
}

// createTestPayment builds a payment of 107 against one 100 + 7 VAT-undue
// service invoice carrying 3% WHT and 5% retention
func createTestPayment(t *testing.T, company *tax.Company, direction tax.PaymentDirection) (*tax.Payment, *tax.Invoice) {
	t.Helper()
	cfg, _ := tax.ResolveTaxConfig(company)

	kind, partyAccount := tax.InvoiceKindSales, testReceivableAccount
	if direction == tax.DirectionPay {
		kind, partyAccount = tax.InvoiceKindPurchase, testPayableAccount
	}
	party := tax.Party{Ref: "P-1", Name: "Chiang Mai Services Co., Ltd.", TaxID: "0505559876543"}

	inv, err := tax.NewInvoice(company.ID, tax.InvoiceTerms{
		Number:         "INV-0001",
		Kind:           kind,
		Party:          party,
		PostingDate:    testPostingDate(),
		NetTotal:       dec("100"),
		VATAmount:      dec("7"),
		VATTreatment:   tax.VATUndue,
		IsService:      true,
		ApplyWHT:       true,
		ApplyRetention: true,
	})
	require.NoError(t, err)
	inv.ApplyTaxConfig(cfg)

	p, err := tax.NewPayment(company.ID, tax.PaymentTerms{
		Number:       "PAY-0001",
		Direction:    direction,
		Party:        party,
		PaidAmount:   dec("107"),
		PostingDate:  testPostingDate(),
		CashAccount:  testCashAccount,
		PartyAccount: partyAccount,
		ApplyWHT:     true,
	})
	require.NoError(t, err)
	require.NoError(t, p.AddAllocation(inv, dec("107")))
	p.ApplyTaxConfig(cfg)
	p.Recalculate()
	return p, inv
}

func hostPostingsOf(t *testing.T, p *tax.Payment) []tax.LedgerPosting {
	t.Helper()
	postings, err := p.HostPostings()
	require.NoError(t, err)
	out := make([]tax.LedgerPosting, 0, len(postings))
	for _, lp := range postings {
		out = append(out, *lp)
	}
	return out
}

func newTestRepositories() (Repositories, *testRepos) {
	m := &testRepos{
		companies:    new(MockCompanyRepository),
		accounts:     new(MockAccountRepository),
		invoices:     new(MockInvoiceRepository),
		payments:     new(MockPaymentRepository),
		ledger:       new(MockLedgerRepository),
		certificates: new(MockCertificateRepository),
		returns:      new(MockPeriodicReturnRepository),
	}
	return Repositories{
		Companies:    m.companies,
		Accounts:     m.accounts,
		Invoices:     m.invoices,
		Payments:     m.payments,
		Ledger:       m.ledger,
		Certificates: m.certificates,
		Returns:      m.returns,
	}, m
}

type testRepos struct {
	companies    *MockCompanyRepository
	accounts     *MockAccountRepository
	invoices     *MockInvoiceRepository
	payments     *MockPaymentRepository
	ledger       *MockLedgerRepository
	certificates *MockCertificateRepository
	returns      *MockPeriodicReturnRepository
}

func (m *testRepos) assertExpectations(t *testing.T) {
	t.Helper()
	m.companies.AssertExpectations(t)
	m.accounts.AssertExpectations(t)
	m.invoices.AssertExpectations(t)
	m.payments.AssertExpectations(t)
	m.ledger.AssertExpectations(t)
	m.certificates.AssertExpectations(t)
	m.returns.AssertExpectations(t)
}
