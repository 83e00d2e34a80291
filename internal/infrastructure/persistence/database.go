package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/thaitax/internal/infrastructure/config"
	"github.com/erp/thaitax/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database wraps the settlement ledger connection pool. It satisfies the
// readiness check's Pinger.
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the ledger database without SQL logging.
func NewDatabase(cfg *config.DatabaseConfig) (*Database, error) {
	return open(cfg, gormlogger.Default.LogMode(gormlogger.Silent))
}

// NewDatabaseWithLogger opens the ledger database and routes GORM's log
// output through zap at cfg.LogLevel.
func NewDatabaseWithLogger(cfg *config.DatabaseConfig, zapLogger *zap.Logger, opts ...logger.GormLoggerOption) (*Database, error) {
	return open(cfg, logger.NewGormLogger(zapLogger, logger.MapGormLogLevel(cfg.LogLevel), opts...))
}

func open(cfg *config.DatabaseConfig, gl gormlogger.Interface) (*Database, error) {
	// Posting and issuance manage their own transactions through the Transactor.
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gl,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.DBName, err)
	}
	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
