package persistence

import (
	"context"
	"fmt"

	"github.com/erp/thaitax/internal/domain/tax"
	"gorm.io/gorm"
)

// CertificateSequence is the counter row behind one certificate sequence key
type CertificateSequence struct {
	SeqKey    string `gorm:"type:varchar(200);primaryKey"`
	LastValue int64  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CertificateSequence) TableName() string {
	return "certificate_sequences"
}

// GormCertificateSequencer hands out certificate numbers from a database
// counter. The increment happens in the caller's transaction, so a rolled
// back issuance returns its number.
type GormCertificateSequencer struct {
	db *gorm.DB
}

// NewGormCertificateSequencer creates a new GormCertificateSequencer
func NewGormCertificateSequencer(db *gorm.DB) *GormCertificateSequencer {
	return &GormCertificateSequencer{db: db}
}

var _ tax.CertificateSequencer = (*GormCertificateSequencer)(nil)

// Next atomically increments and returns the counter for key
func (s *GormCertificateSequencer) Next(ctx context.Context, key string) (int64, error) {
	var next int64
	err := conn(ctx, s.db).Raw(
		`INSERT INTO certificate_sequences (seq_key, last_value) VALUES (?, 1)
		ON CONFLICT (seq_key) DO UPDATE SET last_value = certificate_sequences.last_value + 1
		RETURNING last_value`, key).Scan(&next).Error
	if err != nil {
		return 0, fmt.Errorf("failed to advance certificate sequence %s: %w", key, err)
	}
	if next <= 0 {
		return 0, fmt.Errorf("certificate sequence %s returned no value", key)
	}
	return next, nil
}
