package tax

import (
	"fmt"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Error codes surfaced by the settlement engine
const (
	CodeConfiguration          = "CONFIGURATION_ERROR"
	CodeBalanceMismatch        = "BALANCE_MISMATCH"
	CodeDuplicateCertificate   = "DUPLICATE_CERTIFICATE"
	CodeReconciliationFailed   = "RECONCILIATION_FAILED"
	CodeCashPostingNotFound    = "CASH_POSTING_NOT_FOUND"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeAllocationExceedsPaid  = "ALLOCATION_EXCEEDS_PAYMENT"
	CodeSequenceExhausted      = "SEQUENCE_EXHAUSTED"
	CodePeriodicReturnFiled    = "PERIODIC_RETURN_FILED"
	CodeInvoiceMismatch        = "INVOICE_MISMATCH"
	CodeDuplicateAllocation    = "DUPLICATE_ALLOCATION"
	CodeInvalidCertificateNum  = "INVALID_CERTIFICATE_NUMBER"
	CodeCertificateNotEligible = "NOT_ELIGIBLE"
)

// NewConfigurationError reports a missing or mistyped account setting
func NewConfigurationError(format string, args ...any) *shared.DomainError {
	return shared.NewDomainErrorf(CodeConfiguration, format, args...)
}

// NewBalanceMismatchError reports a voucher whose debits and credits differ
func NewBalanceMismatchError(debit, credit decimal.Decimal) *shared.DomainError {
	return shared.NewDomainErrorf(CodeBalanceMismatch,
		"voucher does not balance: debit %s, credit %s", debit.StringFixed(2), credit.StringFixed(2))
}

// NewDuplicateCertificateError reports an existing active certificate for a payment
func NewDuplicateCertificateError(paymentNumber string) *shared.DomainError {
	return shared.NewDomainErrorf(CodeDuplicateCertificate,
		"payment %s already has an active withholding tax certificate", paymentNumber)
}

// TransientReconciliationError wraps a failure inside the background
// reconciler. The queue retries it; it is never shown to a user.
type TransientReconciliationError struct {
	Period TaxPeriod
	Err    error
}

// Error implements the error interface
func (e *TransientReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation of period %s failed: %v", e.Period, e.Err)
}

// Unwrap exposes the underlying cause
func (e *TransientReconciliationError) Unwrap() error {
	return e.Err
}

// Is lets callers match the error against the reconciliation error code
func (e *TransientReconciliationError) Is(target error) bool {
	de, ok := target.(*shared.DomainError)
	return ok && de.Code == CodeReconciliationFailed
}

// ErrReconciliationFailed is the sentinel matched by TransientReconciliationError
var ErrReconciliationFailed = shared.NewDomainError(CodeReconciliationFailed, "Periodic return reconciliation failed")

// ErrDuplicateCertificate matches any DuplicateCertificateError
var ErrDuplicateCertificate = shared.NewDomainError(CodeDuplicateCertificate, "An active certificate already exists for this payment")
