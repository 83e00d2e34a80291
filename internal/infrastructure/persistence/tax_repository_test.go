package persistence

import (
	"context"
	"testing"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormCompanyRepository(t *testing.T) {
	db := setupTaxTestDB(t)
	repo := NewGormCompanyRepository(db)
	ctx := context.Background()

	company, err := tax.NewCompany("Siam Build Co., Ltd.", "0105551234567")
	require.NoError(t, err)
	rate := dec("3")
	require.NoError(t, company.UpdateSettings(tax.TaxSettings{
		ServiceBusinessEnabled: true,
		DefaultWHTRate:         &rate,
		WHTAssetAccount:        "1150",
	}))
	require.NoError(t, repo.Save(ctx, company))

	t.Run("finds saved company with embedded settings", func(t *testing.T) {
		found, err := repo.FindByID(ctx, company.ID)
		require.NoError(t, err)
		assert.Equal(t, "Siam Build Co., Ltd.", found.Name)
		assert.True(t, found.Settings.ServiceBusinessEnabled)
		assert.Equal(t, "1150", found.Settings.WHTAssetAccount)
		require.NotNil(t, found.Settings.DefaultWHTRate)
		assert.True(t, found.Settings.DefaultWHTRate.Equal(rate))
		assert.Nil(t, found.Settings.DefaultRetentionRate)
	})

	t.Run("returns ErrNotFound for unknown company", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormAccountRepository(t *testing.T) {
	db := setupTaxTestDB(t)
	repo := NewGormAccountRepository(db)
	ctx := context.Background()
	companyID := uuid.New()

	for code, typ := range map[string]tax.AccountType{
		"1150": tax.AccountTypeAsset,
		"2150": tax.AccountTypeLiability,
	} {
		acc, err := tax.NewAccount(companyID, code, "", typ)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, acc))
	}
	other, err := tax.NewAccount(uuid.New(), "1160", "", tax.AccountTypeAsset)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, other))

	t.Run("FindByCodes skips missing and foreign accounts", func(t *testing.T) {
		accounts, err := repo.FindByCodes(ctx, companyID, []string{"1150", "2150", "1160", "9999"})
		require.NoError(t, err)
		chart := tax.NewAccountChart(accounts)
		assert.Len(t, chart, 2)
		assert.Equal(t, tax.AccountTypeLiability, chart["2150"].Type)
	})

	t.Run("FindByCodes with no codes", func(t *testing.T) {
		accounts, err := repo.FindByCodes(ctx, companyID, nil)
		require.NoError(t, err)
		assert.Empty(t, accounts)
	})

	t.Run("FindByCode not found", func(t *testing.T) {
		_, err := repo.FindByCode(ctx, companyID, "1160")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormPaymentRepository(t *testing.T) {
	db := setupTaxTestDB(t)
	invoices := NewGormInvoiceRepository(db)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()
	companyID := uuid.New()

	inv1 := newTestInvoice(t, companyID, "INV-0001")
	inv2 := newTestInvoice(t, companyID, "INV-0002")
	require.NoError(t, invoices.Save(ctx, inv1))
	require.NoError(t, invoices.Save(ctx, inv2))

	payment := newTestPayment(t, companyID, inv1, inv2)
	require.NoError(t, repo.Save(ctx, payment))

	t.Run("loads allocations with the header", func(t *testing.T) {
		found, err := repo.FindByID(ctx, companyID, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, tax.PaymentStatusDraft, found.Status)
		require.Len(t, found.Allocations, 2)
		assert.True(t, found.PaidAmount.Equal(dec("500")))
		for _, a := range found.Allocations {
			assert.Equal(t, payment.ID, a.PaymentID)
			assert.True(t, a.AllocatedAmount.Equal(dec("107")))
		}
	})

	t.Run("party ref is stored apart from the payment key", func(t *testing.T) {
		found, err := repo.FindByID(ctx, companyID, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.ID, found.ID)
		assert.Equal(t, "C-1", found.Party.Ref)
		require.NotEmpty(t, found.Allocations)

		var ref string
		require.NoError(t, db.Raw("SELECT party_ref FROM payments WHERE id = ?", payment.ID).Scan(&ref).Error)
		assert.Equal(t, "C-1", ref)
	})

	t.Run("save replaces the allocation set", func(t *testing.T) {
		require.NoError(t, payment.RemoveAllocation(inv2.ID))
		require.NoError(t, repo.Save(ctx, payment))

		found, err := repo.FindByID(ctx, companyID, payment.ID)
		require.NoError(t, err)
		require.Len(t, found.Allocations, 1)
		assert.Equal(t, inv1.ID, found.Allocations[0].InvoiceID)
	})

	t.Run("FindByIDForUpdate inside a transaction", func(t *testing.T) {
		tx := NewGormTransactor(db)
		err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
			found, err := repo.FindByIDForUpdate(ctx, companyID, payment.ID)
			if err != nil {
				return err
			}
			if err := found.Submit(); err != nil {
				return err
			}
			return repo.Save(ctx, found)
		})
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, companyID, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, tax.PaymentStatusSubmitted, found.Status)
	})

	t.Run("other company cannot see the payment", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New(), payment.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("FindByIDs", func(t *testing.T) {
		found, err := invoices.FindByIDs(ctx, companyID, []uuid.UUID{inv1.ID, inv2.ID, uuid.New()})
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})
}

func TestGormLedgerRepository(t *testing.T) {
	db := setupTaxTestDB(t)
	repo := NewGormLedgerRepository(db)
	ctx := context.Background()
	companyID := uuid.New()

	voucher := tax.Voucher{CompanyID: companyID, ID: uuid.New(), Type: tax.VoucherTypePayment, PostingDate: testDate}
	cash, err := tax.NewLedgerPosting(voucher, "1110", dec("107"), dec("0"), tax.PostingSourceHost)
	require.NoError(t, err)
	party, err := tax.NewLedgerPosting(voucher, "1130", dec("0"), dec("107"), tax.PostingSourceHost)
	require.NoError(t, err)
	require.NoError(t, repo.SaveAll(ctx, []*tax.LedgerPosting{cash, party}))

	t.Run("FindByVoucher returns every posting", func(t *testing.T) {
		postings, err := repo.FindByVoucher(ctx, companyID, voucher.ID)
		require.NoError(t, err)
		require.Len(t, postings, 2)
		assert.NoError(t, tax.CheckBalance(postings))
	})

	t.Run("SaveAll updates existing postings", func(t *testing.T) {
		cash.Cancel()
		require.NoError(t, repo.SaveAll(ctx, []*tax.LedgerPosting{cash}))

		postings, err := repo.FindByAccount(ctx, companyID, "1110")
		require.NoError(t, err)
		require.Len(t, postings, 1)
		assert.True(t, postings[0].IsCancelled)
	})

	t.Run("SaveAll with nothing to save", func(t *testing.T) {
		assert.NoError(t, repo.SaveAll(ctx, nil))
	})
}

func TestGormCertificateRepository(t *testing.T) {
	db := setupTaxTestDB(t)
	repo := NewGormCertificateRepository(db)
	ctx := context.Background()
	companyID := uuid.New()
	paymentID := uuid.New()

	cancelled := newTestCertificate(companyID, paymentID, "WHTC-6803-00001", tax.CertificateStatusCancelled)
	active := newTestCertificate(companyID, paymentID, "WHTC-6803-00003", tax.CertificateStatusIssued)
	second := newTestCertificate(companyID, uuid.New(), "WHTC-6803-00002", tax.CertificateStatusIssued)
	draft := newTestCertificate(companyID, uuid.New(), "WHTC-6803-00004", tax.CertificateStatusDraft)
	for _, c := range []*tax.Certificate{cancelled, active, second, draft} {
		require.NoError(t, repo.Save(ctx, c))
	}

	t.Run("FindActiveByPayment ignores cancelled certificates", func(t *testing.T) {
		found, err := repo.FindActiveByPayment(ctx, companyID, paymentID)
		require.NoError(t, err)
		assert.Equal(t, active.ID, found.ID)

		exists, err := repo.ExistsActiveForPayment(ctx, companyID, paymentID)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("no active certificate", func(t *testing.T) {
		_, err := repo.FindActiveByPayment(ctx, companyID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)

		exists, err := repo.ExistsActiveForPayment(ctx, companyID, uuid.New())
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("FindIssuedForPeriod orders by number", func(t *testing.T) {
		certs, err := repo.FindIssuedForPeriod(ctx, companyID, tax.TaxPeriod{Year: 2568, Month: 3})
		require.NoError(t, err)
		require.Len(t, certs, 2)
		assert.Equal(t, "WHTC-6803-00002", certs[0].Number)
		assert.Equal(t, "WHTC-6803-00003", certs[1].Number)

		none, err := repo.FindIssuedForPeriod(ctx, companyID, tax.TaxPeriod{Year: 2568, Month: 4})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("List pages the register", func(t *testing.T) {
		filter := tax.CertificateFilter{Filter: shared.Filter{Page: 1, PageSize: 3}}
		page, total, err := repo.List(ctx, companyID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, page, 3)
		assert.Equal(t, "WHTC-6803-00004", page[0].Number, "newest number first by default")

		filter.Page = 2
		page, _, err = repo.List(ctx, companyID, filter)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "WHTC-6803-00001", page[0].Number)
	})

	t.Run("List filters and orders", func(t *testing.T) {
		page, total, err := repo.List(ctx, companyID, tax.CertificateFilter{
			Filter:   shared.Filter{Page: 1, PageSize: 10},
			Period:   &tax.TaxPeriod{Year: 2568, Month: 3},
			Status:   tax.CertificateStatusIssued,
			OrderBy:  "number",
			OrderDir: "asc",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, page, 2)
		assert.Equal(t, "WHTC-6803-00002", page[0].Number)

		_, total, err = repo.List(ctx, uuid.New(), tax.CertificateFilter{Filter: shared.DefaultFilter()})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("List ignores unknown sort columns", func(t *testing.T) {
		page, _, err := repo.List(ctx, companyID, tax.CertificateFilter{
			Filter:  shared.DefaultFilter(),
			OrderBy: "number; DROP TABLE certificates",
		})
		require.NoError(t, err)
		assert.Len(t, page, 4)
	})
}

func TestGormPeriodicReturnRepository(t *testing.T) {
	db := setupTaxTestDB(t)
	certs := NewGormCertificateRepository(db)
	repo := NewGormPeriodicReturnRepository(db)
	ctx := context.Background()
	companyID := uuid.New()
	period := tax.TaxPeriod{Year: 2568, Month: 3}

	c1 := newTestCertificate(companyID, uuid.New(), "WHTC-6803-00001", tax.CertificateStatusIssued)
	c2 := newTestCertificate(companyID, uuid.New(), "WHTC-6803-00002", tax.CertificateStatusIssued)
	require.NoError(t, certs.Save(ctx, c1))
	require.NoError(t, certs.Save(ctx, c2))

	ret, err := tax.NewPeriodicReturn(companyID, period, "")
	require.NoError(t, err)
	issued, err := certs.FindIssuedForPeriod(ctx, companyID, period)
	require.NoError(t, err)
	changed, err := ret.Rebuild(issued)
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, repo.Save(ctx, ret))

	t.Run("loads lines in order", func(t *testing.T) {
		found, err := repo.FindByID(ctx, companyID, ret.ID)
		require.NoError(t, err)
		require.Len(t, found.Lines, 2)
		assert.Equal(t, 1, found.Lines[0].LineNo)
		assert.Equal(t, c1.ID, found.Lines[0].CertificateID)
		assert.True(t, found.TotalTaxAmount.Equal(dec("6")))
	})

	t.Run("rebuild after reload is a no-op", func(t *testing.T) {
		returns, err := repo.FindByPeriod(ctx, companyID, period)
		require.NoError(t, err)
		require.Len(t, returns, 1)

		changed, err := returns[0].Rebuild(issued)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("save replaces lines after a cancellation", func(t *testing.T) {
		require.NoError(t, c2.Cancel("voided"))
		require.NoError(t, certs.Save(ctx, c2))

		issued, err := certs.FindIssuedForPeriod(ctx, companyID, period)
		require.NoError(t, err)
		changed, err := ret.Rebuild(issued)
		require.NoError(t, err)
		require.True(t, changed)
		require.NoError(t, repo.Save(ctx, ret))

		found, err := repo.FindByID(ctx, companyID, ret.ID)
		require.NoError(t, err)
		require.Len(t, found.Lines, 1)
		assert.Equal(t, 1, found.CertificateCount)
		assert.True(t, found.TotalTaxBase.Equal(dec("100")))
	})

	t.Run("stale copy is rejected with a concurrency conflict", func(t *testing.T) {
		first, err := repo.FindByID(ctx, companyID, ret.ID)
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, companyID, ret.ID)
		require.NoError(t, err)

		require.NoError(t, first.File())
		require.NoError(t, repo.Save(ctx, first))

		issued, err := certs.FindIssuedForPeriod(ctx, companyID, period)
		require.NoError(t, err)
		c3 := newTestCertificate(companyID, uuid.New(), "WHTC-6803-00003", tax.CertificateStatusIssued)
		changed, err := second.Rebuild(append(issued, *c3))
		require.NoError(t, err)
		require.True(t, changed)
		err = repo.Save(ctx, second)
		require.ErrorIs(t, err, shared.ErrConcurrencyConflict)

		found, err := repo.FindByID(ctx, companyID, ret.ID)
		require.NoError(t, err)
		assert.True(t, found.IsFiled())
		assert.Equal(t, first.Version, found.Version)
		assert.Len(t, found.Lines, 1)
	})
}

func TestGormCertificateSequencer(t *testing.T) {
	db := setupTaxTestDB(t)
	seq := NewGormCertificateSequencer(db)
	ctx := context.Background()
	companyID := uuid.New()
	key := tax.SequenceKey(companyID, "WHTC", tax.TaxPeriod{Year: 2568, Month: 3})

	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	t.Run("keys are independent", func(t *testing.T) {
		other := tax.SequenceKey(companyID, "WHTC", tax.TaxPeriod{Year: 2568, Month: 4})
		got, err := seq.Next(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
	})

	t.Run("rolled back increment is returned", func(t *testing.T) {
		tx := NewGormTransactor(db)
		err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
			n, err := seq.Next(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, int64(4), n)
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		got, err := seq.Next(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(4), got)
	})
}

func TestGormPeriodicReturnRepository_FindOpenPeriods(t *testing.T) {
	db := setupTaxTestDB(t)
	repo := NewGormPeriodicReturnRepository(db)
	ctx := context.Background()
	companyA, companyB := uuid.New(), uuid.New()

	save := func(companyID uuid.UUID, period tax.TaxPeriod, form tax.PNDForm, filed bool) {
		t.Helper()
		ret, err := tax.NewPeriodicReturn(companyID, period, form)
		require.NoError(t, err)
		if filed {
			require.NoError(t, ret.File())
		}
		require.NoError(t, repo.Save(ctx, ret))
	}
	save(companyA, tax.TaxPeriod{Year: 2568, Month: 2}, tax.PND3, false)
	save(companyA, tax.TaxPeriod{Year: 2568, Month: 2}, tax.PND53, false)
	save(companyA, tax.TaxPeriod{Year: 2568, Month: 3}, "", true)
	save(companyB, tax.TaxPeriod{Year: 2567, Month: 12}, "", false)

	periods, err := repo.FindOpenPeriods(ctx)
	require.NoError(t, err)

	assert.Equal(t, []tax.OpenPeriod{
		{CompanyID: companyB, Period: tax.TaxPeriod{Year: 2567, Month: 12}},
		{CompanyID: companyA, Period: tax.TaxPeriod{Year: 2568, Month: 2}},
	}, periods)
}
