//go:build integration

package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/erp/thaitax/internal/infrastructure/migration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresTestDB starts a throwaway PostgreSQL container and applies the
// embedded migrations
func newPostgresTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("thaitax_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return db
}

func seedCompany(t *testing.T, db *gorm.DB) *tax.Company {
	t.Helper()
	company, err := tax.NewCompany("Siam Build Co., Ltd.", "0105551234567")
	require.NoError(t, err)
	require.NoError(t, NewGormCompanyRepository(db).Save(context.Background(), company))
	return company
}

func TestPostgres_CertificateSequencerIsAtomic(t *testing.T) {
	db := newPostgresTestDB(t)
	seq := NewGormCertificateSequencer(db)
	key := tax.SequenceKey(uuid.New(), "WHTC", tax.TaxPeriod{Year: 2568, Month: 3})

	const workers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := seq.Next(context.Background(), key)
			assert.NoError(t, err)
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers, "every caller must get a distinct number")
	for n := int64(1); n <= workers; n++ {
		assert.True(t, seen[n], "missing sequence %d", n)
	}
}

func TestPostgres_OneActiveCertificatePerPayment(t *testing.T) {
	db := newPostgresTestDB(t)
	ctx := context.Background()
	company := seedCompany(t, db)

	inv := newTestInvoice(t, company.ID, "INV-0001")
	require.NoError(t, NewGormInvoiceRepository(db).Save(ctx, inv))
	payment := newTestPayment(t, company.ID, inv)
	require.NoError(t, NewGormPaymentRepository(db).Save(ctx, payment))

	certs := NewGormCertificateRepository(db)
	first := newTestCertificate(company.ID, payment.ID, "WHTC-6803-00001", tax.CertificateStatusIssued)
	require.NoError(t, certs.Save(ctx, first))

	second := newTestCertificate(company.ID, payment.ID, "WHTC-6803-00002", tax.CertificateStatusIssued)
	assert.ErrorIs(t, certs.Save(ctx, second), tax.ErrDuplicateCertificate)

	require.NoError(t, first.Cancel("reissue"))
	require.NoError(t, certs.Save(ctx, first))
	assert.NoError(t, certs.Save(ctx, second))
}

func TestPostgres_SavepointKeepsOuterWork(t *testing.T) {
	db := newPostgresTestDB(t)
	ctx := context.Background()
	company := seedCompany(t, db)
	tx := NewGormTransactor(db)
	ledger := NewGormLedgerRepository(db)

	voucher := tax.Voucher{CompanyID: company.ID, ID: uuid.New(), Type: tax.VoucherTypePayment, PostingDate: testDate}
	cash, err := tax.NewLedgerPosting(voucher, "1110", dec("107"), dec("0"), tax.PostingSourceHost)
	require.NoError(t, err)
	party, err := tax.NewLedgerPosting(voucher, "1130", dec("0"), dec("107"), tax.PostingSourceHost)
	require.NoError(t, err)

	committed := false
	err = tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := ledger.SaveAll(ctx, []*tax.LedgerPosting{cash, party}); err != nil {
			return err
		}
		inner := tx.WithinTransaction(ctx, func(ctx context.Context) error {
			tx.AfterCommit(ctx, func(context.Context) { t.Error("rolled back hook must not run") })
			certs := NewGormCertificateRepository(db)
			// payment_id references no payment: the savepoint absorbs the failure
			return certs.Save(ctx, newTestCertificate(company.ID, uuid.New(), "WHTC-6803-00001", tax.CertificateStatusIssued))
		})
		require.Error(t, inner)
		tx.AfterCommit(ctx, func(context.Context) { committed = true })
		return nil
	})
	require.NoError(t, err)
	assert.True(t, committed)

	postings, err := ledger.FindByVoucher(ctx, company.ID, voucher.ID)
	require.NoError(t, err)
	assert.Len(t, postings, 2)
}
