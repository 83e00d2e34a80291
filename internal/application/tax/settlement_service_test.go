package tax

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type settlementFixture struct {
	service   *SettlementService
	repos     *testRepos
	sequencer *MockSequencer
	events    *MockEventPublisher
	metrics   *recordingMetrics
	tx        *fakeTransactor
	published []shared.DomainEvent
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()
	repos, m := newTestRepositories()
	f := &settlementFixture{
		repos:     m,
		sequencer: new(MockSequencer),
		events:    new(MockEventPublisher),
		metrics:   &recordingMetrics{},
		tx:        &fakeTransactor{},
	}
	f.events.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		f.published = append(f.published, args.Get(1).([]shared.DomainEvent)...)
	}).Return(nil).Maybe()

	logger := zap.NewNop()
	certs := NewCertificateService(repos, f.tx, f.sequencer, f.events, logger, WithCertificateMetrics(f.metrics))
	f.service = NewSettlementService(repos, f.tx, certs, f.events, f.metrics, logger)
	return f
}

func (f *settlementFixture) publishedTypes() []string {
	types := make([]string, 0, len(f.published))
	for _, e := range f.published {
		types = append(types, e.EventType())
	}
	return types
}

func savedPostings(call *mock.Call) *[]*tax.LedgerPosting {
	var saved []*tax.LedgerPosting
	call.Run(func(args mock.Arguments) {
		saved = append(saved, args.Get(1).([]*tax.LedgerPosting)...)
	})
	return &saved
}

// ==================== Hooks ====================

func TestSettlementService_OnInvoiceSaved(t *testing.T) {
	f := newSettlementFixture(t)
	company := createTestCompany(t)
	f.repos.companies.On("FindByID", mock.Anything, company.ID).Return(company, nil)

	inv, err := tax.NewInvoice(company.ID, tax.InvoiceTerms{
		Number:         "INV-1",
		Kind:           tax.InvoiceKindSales,
		NetTotal:       dec("1000"),
		VATAmount:      dec("70"),
		VATTreatment:   tax.VATUndue,
		ApplyWHT:       true,
		ApplyRetention: true,
		PostingDate:    testPostingDate(),
	})
	require.NoError(t, err)

	require.NoError(t, f.service.OnInvoiceSaved(context.Background(), inv))
	assert.True(t, inv.WHTAmount.Equal(dec("30")))
	assert.True(t, inv.RetentionAmount.Equal(dec("50")))
	assert.True(t, inv.VATUndueAmount.Equal(dec("70")))
	require.NotNil(t, inv.WHTRate)
	assert.True(t, inv.WHTRate.Equal(dec("3")))
}

func TestSettlementService_OnInvoiceSaved_MissingCompanyUsesDefaults(t *testing.T) {
	f := newSettlementFixture(t)
	companyID := uuid.New()
	f.repos.companies.On("FindByID", mock.Anything, companyID).Return(nil, shared.ErrNotFound)

	inv, err := tax.NewInvoice(companyID, tax.InvoiceTerms{
		Number:      "INV-1",
		Kind:        tax.InvoiceKindSales,
		NetTotal:    dec("1000"),
		ApplyWHT:    true,
		PostingDate: testPostingDate(),
	})
	require.NoError(t, err)

	// default config has the service business flag off
	require.NoError(t, f.service.OnInvoiceSaved(context.Background(), inv))
	assert.True(t, inv.WHTAmount.IsZero())
}

func TestSettlementService_OnPaymentSaved(t *testing.T) {
	f := newSettlementFixture(t)
	company := createTestCompany(t)
	f.repos.companies.On("FindByID", mock.Anything, company.ID).Return(company, nil)

	p, _ := createTestPayment(t, company, tax.DirectionReceive)
	p.WHTRate = nil

	f.service.OnPaymentSaved(context.Background(), p)
	require.NotNil(t, p.WHTRate)
	assert.True(t, p.NetCashAmount.Equal(dec("99")))
	assert.True(t, p.HasThaiTaxes)
}

// ==================== Submission ====================

func TestSettlementService_OnPaymentSubmitted_Receive(t *testing.T) {
	f := newSettlementFixture(t)
	company := createTestCompany(t)
	p, _ := createTestPayment(t, company, tax.DirectionReceive)
	require.NoError(t, p.Submit())

	f.repos.companies.On("FindByID", mock.Anything, company.ID).Return(company, nil)
	f.repos.ledger.On("FindByVoucher", mock.Anything, company.ID, p.ID).Return(hostPostingsOf(t, p), nil)
	f.repos.accounts.On("FindByCodes", mock.Anything, company.ID, mock.Anything).Return(createTestAccounts(company.ID), nil)
	saved := savedPostings(f.repos.ledger.On("SaveAll", mock.Anything, mock.Anything).Return(nil))
	f.repos.payments.On("Save", mock.Anything, p).Return(nil).Once()

	result, err := f.service.OnPaymentSubmitted(context.Background(), p)
	require.NoError(t, err)

	assert.False(t, result.Eligibility.Eligible)
	assert.Contains(t, result.Eligibility.Reasons, tax.ReasonWrongDirection)
	assert.Nil(t, result.Certificate)
	assert.NoError(t, result.CertificateError)

	require.Len(t, *saved, 5)
	cash := (*saved)[0]
	assert.Equal(t, testCashAccount, cash.Account)
	assert.True(t, cash.Debit.Equal(dec("99")))
	assert.True(t, result.Plan.TotalDebit.Equal(dec("114")))
	assert.True(t, result.Plan.TotalCredit.Equal(dec("114")))

	assert.Equal(t, []string{tax.EventTypePaymentSubmitted}, f.publishedTypes())
	assert.Equal(t, 1, f.metrics.submits)
	f.repos.assertExpectations(t)
	f.sequencer.AssertNotCalled(t, "Next", mock.Anything, mock.Anything)
}

func TestSettlementService_OnPaymentSubmitted_PayIssuesCertificate(t *testing.T) {
	f := newSettlementFixture(t)
	company := createTestCompany(t)
	p, _ := createTestPayment(t, company, tax.DirectionPay)
	require.NoError(t, p.Submit())

	f.repos.companies.On("FindByID", mock.Anything, company.ID).Return(company, nil)
	f.repos.ledger.On("FindByVoucher", mock.Anything, company.ID, p.ID).Return(hostPostingsOf(t, p), nil)
	f.repos.accounts.On("FindByCodes", mock.Anything, company.ID, mock.Anything).Return(createTestAccounts(company.ID), nil)
	f.repos.ledger.On("SaveAll", mock.Anything, mock.Anything).Return(nil)
	f.repos.payments.On("Save", mock.Anything, p).Return(nil).Twice()
	f.repos.certificates.On("ExistsActiveForPayment", mock.Anything, company.ID, p.ID).Return(false, nil)
	f.repos.certificates.On("Save", mock.Anything, mock.AnythingOfType("*tax.Certificate")).Return(nil)
	key := tax.SequenceKey(company.ID, tax.DefaultCertificatePrefix, p.Period())
	f.sequencer.On("Next", mock.Anything, key).Return(int64(1), nil)

	result, err := f.service.OnPaymentSubmitted(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, result.CertificateError)
	require.NotNil(t, result.Certificate)

	cert := result.Certificate
	assert.Equal(t, "WHTC-6803-00001", cert.Number)
	assert.Equal(t, tax.CertificateStatusIssued, cert.Status)
	assert.Equal(t, tax.PND53, cert.PNDForm)
	assert.Equal(t, tax.IncomeTypeServices, cert.IncomeType)
	assert.True(t, cert.TaxBase.Equal(dec("100")))
	assert.True(t, cert.TaxAmount.Equal(dec("3")))
	require.NotNil(t, p.CertificateID)
	assert.Equal(t, cert.ID, *p.CertificateID)

	assert.Equal(t, []string{tax.EventTypePaymentSubmitted, tax.EventTypeCertificateIssued}, f.publishedTypes())
	assert.Equal(t, []string{CertificateOutcomeIssued}, f.metrics.outcomes)
	f.repos.assertExpectations(t)
	f.sequencer.AssertExpectations(t)
}

func TestSettlementService_OnPaymentSubmitted_CertificateFailureKeepsPosting(t *testing.T) {
	f := newSettlementFixture(t)
	company := createTestCompany(t)
	p, _ := createTestPayment(t, company, tax.DirectionPay)
	require.NoError(t, p.Submit())

	f.repos.companies.On("FindByID", mock.Anything, company.ID).Return(company, nil)
	f.repos.ledger.On("FindByVoucher", mock.Anything, company.ID, p.ID).Return(hostPostingsOf(t, p), nil)
	f.repos.accounts.On("FindByCodes", mock.Anything, company.ID, mock.Anything).Return(createTestAccounts(company.ID), nil)
	saved := savedPostings(f.repos.ledger.On("SaveAll", mock.Anything, mock.Anything).Return(nil))
	f.repos.payments.On("Save", mock.Anything, p).Return(nil).Once()
	f.repos.certificates.On("ExistsActiveForPayment", mock.Anything, company.ID, p.ID).Return(false, nil)
	f.sequencer.On("Next", mock.Anything, mock.Anything).Return(int64(0), errors.New("sequence store unavailable"))

	result, err := f.service.OnPaymentSubmitted(context.Background(), p)
	require.NoError(t, err)
	require.Error(t, result.CertificateError)
	assert.Contains(t, result.CertificateError.Error(), "sequence store unavailable")
	assert.Nil(t, result.Certificate)
	assert.Nil(t, p.CertificateID)
	assert.Equal(t, tax.PaymentStatusSubmitted, p.Status)

	assert.NotEmpty(t, *saved)
	assert.Equal(t, []string{tax.EventTypePaymentSubmitted}, f.publishedTypes())
	assert.Equal(t, []string{CertificateOutcomeFailed}, f.metrics.outcomes)
	f.repos.certificates.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSettlementService_OnPaymentSubmitted_DuplicateCertificate(t *testing.T) {
	f := newSettlementFixture(t)
	company := createTestCompany(t)
	p, _ := createTestPayment(t, company, tax.DirectionPay)
	require.NoError(t, p.Submit())

	f.repos.companies.On("FindByID", mock.Anything, company.ID).Return(company, nil)
	f.repos.ledger.On("FindByVoucher", mock.Anything, company.ID, p.ID).Return(hostPostingsOf(t, p), nil)
	f.repos.accounts.On("FindByCodes", mock.Anything, company.ID, mock.Anything).Return(createTestAccounts(company.ID), nil)
	f.repos.ledger.On("SaveAll", mock.Anything, mock.Anything).Return(nil)
	f.repos.payments.On("Save", mock.Anything, p).Return(nil).Once()
	f.repos.certificates.On("ExistsActiveForPayment", mock.Anything, company.ID, p.ID).Return(true, nil)

	result, err := f.service.OnPaymentSubmitted(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, errors.Is(result.CertificateError, tax.ErrDuplicateCertificate))
	f.sequencer.AssertNotCalled(t, "Next", mock.Anything, mock.Anything)
}

func TestSettlementService_OnPaymentSubmitted_ConfigurationErrorAborts(t *testing.T) {
	f := newSettlementFixture(t)
	company := createTestCompany(t)
	p, _ := createTestPayment(t, company, tax.DirectionReceive)
	require.NoError(t, p.Submit())

	f.repos.companies.On("FindByID", mock.Anything, company.ID).Return(company, nil)
	f.repos.ledger.On("FindByVoucher", mock.Anything, company.ID, p.ID).Return(hostPostingsOf(t, p), nil)
	f.repos.accounts.On("FindByCodes", mock.Anything, company.ID, mock.Anything).Return([]tax.Account{}, nil)

	result, err := f.service.OnPaymentSubmitted(context.Background(), p)
	require.Error(t, err)
	assert.Nil(t, result)

	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, tax.CodeConfiguration, de.Code)

	f.repos.ledger.AssertNotCalled(t, "SaveAll", mock.Anything, mock.Anything)
	f.repos.payments.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Empty(t, f.published)
}

func TestSettlementService_OnPaymentSubmitted_NoTaxes(t *testing.T) {
	f := newSettlementFixture(t)
	company := createTestCompany(t)
	p, err := tax.NewPayment(company.ID, tax.PaymentTerms{
		Number:       "PAY-2",
		Direction:    tax.DirectionReceive,
		PaidAmount:   dec("50"),
		PostingDate:  testPostingDate(),
		CashAccount:  testCashAccount,
		PartyAccount: testReceivableAccount,
	})
	require.NoError(t, err)
	require.NoError(t, p.Submit())

	f.repos.companies.On("FindByID", mock.Anything, company.ID).Return(company, nil)
	f.repos.payments.On("Save", mock.Anything, p).Return(nil)

	result, err := f.service.OnPaymentSubmitted(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, result.Plan.IsEmpty())
	f.repos.ledger.AssertNotCalled(t, "FindByVoucher", mock.Anything, mock.Anything, mock.Anything)
	f.repos.ledger.AssertNotCalled(t, "SaveAll", mock.Anything, mock.Anything)
}

func TestSettlementService_OnPaymentSubmitted_RequiresSubmittedPayment(t *testing.T) {
	f := newSettlementFixture(t)
	company := createTestCompany(t)
	p, _ := createTestPayment(t, company, tax.DirectionReceive)

	_, err := f.service.OnPaymentSubmitted(context.Background(), p)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

// ==================== Cancellation ====================

func TestSettlementService_OnPaymentCancelled(t *testing.T) {
	f := newSettlementFixture(t)
	company := createTestCompany(t)
	cfg, _ := tax.ResolveTaxConfig(company)
	p, _ := createTestPayment(t, company, tax.DirectionPay)
	require.NoError(t, p.Submit())

	existing := hostPostingsOf(t, p)
	plan, err := tax.GeneratePostings(p, cfg, tax.NewAccountChart(createTestAccounts(company.ID)), existing)
	require.NoError(t, err)
	voucher := []tax.LedgerPosting{*plan.CashPosting, existing[1]}
	for _, lp := range plan.TaxPostings {
		voucher = append(voucher, *lp)
	}

	preview := tax.PrepareCertificate(p, company.AsPayer(), cfg)
	number, err := tax.FormatCertificateNumber(tax.DefaultCertificatePrefix, preview.Period, 1)
	require.NoError(t, err)
	cert, err := tax.NewCertificate(company.ID, preview, number)
	require.NoError(t, err)
	require.NoError(t, cert.Issue())
	cert.ClearDomainEvents()
	p.LinkCertificate(cert.ID)
	p.ClearDomainEvents()
	require.NoError(t, p.Cancel())

	f.repos.companies.On("FindByID", mock.Anything, company.ID).Return(company, nil)
	f.repos.ledger.On("FindByVoucher", mock.Anything, company.ID, p.ID).Return(voucher, nil)
	f.repos.ledger.On("SaveAll", mock.Anything, mock.Anything).Return(nil)
	f.repos.certificates.On("FindActiveByPayment", mock.Anything, company.ID, p.ID).Return(cert, nil)
	f.repos.certificates.On("Save", mock.Anything, cert).Return(nil)

	result, err := f.service.OnPaymentCancelled(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, result.ReversedPostings, len(plan.TaxPostings))
	for _, lp := range result.ReversedPostings {
		assert.True(t, lp.IsCancelled)
		assert.Equal(t, tax.PostingSourceTax, lp.Source)
	}
	require.NotNil(t, result.CancelledCertificate)
	assert.Equal(t, tax.CertificateStatusCancelled, cert.Status)
	assert.Contains(t, cert.CancelReason, "PAY-0001")
	assert.ElementsMatch(t, []string{tax.EventTypeCertificateCancelled, tax.EventTypePaymentCancelled}, f.publishedTypes())
	f.repos.assertExpectations(t)
}

func TestSettlementService_OnPaymentCancelled_WithoutCertificate(t *testing.T) {
	f := newSettlementFixture(t)
	company := createTestCompany(t)
	p, _ := createTestPayment(t, company, tax.DirectionReceive)
	require.NoError(t, p.Submit())
	require.NoError(t, p.Cancel())

	f.repos.companies.On("FindByID", mock.Anything, company.ID).Return(company, nil)
	f.repos.ledger.On("FindByVoucher", mock.Anything, company.ID, p.ID).Return(hostPostingsOf(t, p), nil)
	f.repos.certificates.On("FindActiveByPayment", mock.Anything, company.ID, p.ID).Return(nil, shared.ErrNotFound)

	result, err := f.service.OnPaymentCancelled(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, result.ReversedPostings)
	assert.Nil(t, result.CancelledCertificate)
	f.repos.ledger.AssertNotCalled(t, "SaveAll", mock.Anything, mock.Anything)
}
