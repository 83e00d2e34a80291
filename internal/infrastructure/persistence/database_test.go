package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	// Ping monitoring is on so TestDatabase_Ping can expect one; Open's own
	// ping would otherwise be unexpected.
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectPing()

	assert.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==================== Transactor ====================

func TestGormTransactor_CommitRunsHooksAfterCommit(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	tx := NewGormTransactor(db.DB)

	mock.ExpectBegin()
	mock.ExpectCommit()

	var ran []string
	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		tx.AfterCommit(ctx, func(context.Context) { ran = append(ran, "hook") })
		assert.Empty(t, ran, "hook must wait for commit")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"hook"}, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTransactor_RollbackDropsHooks(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	tx := NewGormTransactor(db.DB)

	mock.ExpectBegin()
	mock.ExpectRollback()

	ran := false
	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		tx.AfterCommit(ctx, func(context.Context) { ran = true })
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTransactor_NestedFailureUsesSavepoint(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	tx := NewGormTransactor(db.DB)

	mock.ExpectBegin()
	mock.ExpectExec(`SAVEPOINT sp`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT sp`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	var ran []string
	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		tx.AfterCommit(ctx, func(context.Context) { ran = append(ran, "outer") })
		inner := tx.WithinTransaction(ctx, func(ctx context.Context) error {
			tx.AfterCommit(ctx, func(context.Context) { ran = append(ran, "inner") })
			return assert.AnError
		})
		assert.ErrorIs(t, inner, assert.AnError)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"outer"}, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTransactor_AfterCommitWithoutTransactionRunsImmediately(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	tx := NewGormTransactor(db.DB)

	ran := false
	tx.AfterCommit(context.Background(), func(context.Context) { ran = true })
	assert.True(t, ran)
}

// ==================== Query shape ====================

func TestGormPaymentRepository_FindByIDForUpdateLocksRow(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormPaymentRepository(db.DB)

	companyID, paymentID := uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE company_id = \$1 AND id = \$2 ORDER BY "payments"."id" LIMIT \$3 FOR UPDATE`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "number", "status", "party_ref"}).
			AddRow(paymentID.String(), companyID.String(), "RV-0001", string(tax.PaymentStatusSubmitted), "C-1"))
	// allocations join on the payment's own id, not the embedded party ref
	mock.ExpectQuery(`SELECT \* FROM "payment_allocations" WHERE "payment_allocations"."payment_id" = \$1 ORDER BY created_at, id`).
		WithArgs(paymentID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_id"}))

	p, err := repo.FindByIDForUpdate(context.Background(), companyID, paymentID)
	require.NoError(t, err)
	assert.Equal(t, "RV-0001", p.Number)
	assert.Equal(t, "C-1", p.Party.Ref)
	assert.NoError(t, mock.ExpectationsWereMet())
}
