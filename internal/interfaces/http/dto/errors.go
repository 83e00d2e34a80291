package dto

import (
	"net/http"
	"strings"
)

// Error codes returned by the API. Format: ERR_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	ErrCodeValidation        = "ERR_VALIDATION"
	ErrCodeBadRequest        = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput      = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON       = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge   = "ERR_REQUEST_TOO_LARGE"
	ErrCodeMissingCompany    = "ERR_MISSING_COMPANY"
	ErrCodeRequestTimeout    = "ERR_REQUEST_TIMEOUT"
	ErrCodeInvalidIdentifier = "ERR_INVALID_IDENTIFIER"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	ErrCodeInvalidState  = "ERR_INVALID_STATE"
	ErrCodeBusinessRule  = "ERR_BUSINESS_RULE"
	ErrCodeInvalidAmount = "ERR_INVALID_AMOUNT"
)

// Settlement error codes
const (
	// ErrCodeConfiguration is a missing or mistyped company tax account
	ErrCodeConfiguration = "ERR_CONFIGURATION"
	// ErrCodeBalanceMismatch is a voucher whose debits and credits differ
	ErrCodeBalanceMismatch = "ERR_BALANCE_MISMATCH"
	// ErrCodeDuplicateCertificate is a second active certificate for a payment
	ErrCodeDuplicateCertificate = "ERR_DUPLICATE_CERTIFICATE"
	// ErrCodeNotEligible is a payment that cannot carry a certificate
	ErrCodeNotEligible          = "ERR_NOT_ELIGIBLE"
	ErrCodeCashPostingNotFound  = "ERR_CASH_POSTING_NOT_FOUND"
	ErrCodeAllocationExceeds    = "ERR_ALLOCATION_EXCEEDS_PAYMENT"
	ErrCodeDuplicateAllocation  = "ERR_DUPLICATE_ALLOCATION"
	ErrCodeInvoiceMismatch      = "ERR_INVOICE_MISMATCH"
	ErrCodeSequenceExhausted    = "ERR_SEQUENCE_EXHAUSTED"
	ErrCodeInvalidCertNumber    = "ERR_INVALID_CERTIFICATE_NUMBER"
	ErrCodePeriodicReturnFiled  = "ERR_PERIODIC_RETURN_FILED"
	ErrCodeReconciliationFailed = "ERR_RECONCILIATION_FAILED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:        http.StatusBadRequest,
	ErrCodeBadRequest:        http.StatusBadRequest,
	ErrCodeInvalidInput:      http.StatusBadRequest,
	ErrCodeInvalidJSON:       http.StatusBadRequest,
	ErrCodeRequestTooLarge:   http.StatusRequestEntityTooLarge,
	ErrCodeMissingCompany:    http.StatusBadRequest,
	ErrCodeRequestTimeout:    http.StatusGatewayTimeout,
	ErrCodeInvalidIdentifier: http.StatusBadRequest,
	ErrCodeInvalidAmount:     http.StatusBadRequest,
	ErrCodeInvalidCertNumber: http.StatusBadRequest,

	ErrCodeNotFound:             http.StatusNotFound,
	ErrCodeAlreadyExists:        http.StatusConflict,
	ErrCodeConflict:             http.StatusConflict,
	ErrCodeConcurrencyConflict:  http.StatusConflict,
	ErrCodeDuplicateCertificate: http.StatusConflict,
	ErrCodePeriodicReturnFiled:  http.StatusConflict,
	ErrCodeSequenceExhausted:    http.StatusConflict,

	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:        http.StatusUnprocessableEntity,
	ErrCodeConfiguration:       http.StatusUnprocessableEntity,
	ErrCodeBalanceMismatch:     http.StatusUnprocessableEntity,
	ErrCodeNotEligible:         http.StatusUnprocessableEntity,
	ErrCodeCashPostingNotFound: http.StatusUnprocessableEntity,
	ErrCodeAllocationExceeds:   http.StatusUnprocessableEntity,
	ErrCodeDuplicateAllocation: http.StatusUnprocessableEntity,
	ErrCodeInvoiceMismatch:     http.StatusUnprocessableEntity,

	ErrCodeReconciliationFailed: http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorStatus returns the status for a code carried by a domain
// error. Unmapped INVALID_* codes are input errors and every other unmapped
// code is a broken business rule.
func DomainErrorStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "ERR_INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

// domainErrorCodes maps codes raised by the domain to API codes
var domainErrorCodes = map[string]string{
	"NOT_FOUND":                  ErrCodeNotFound,
	"ALREADY_EXISTS":             ErrCodeAlreadyExists,
	"INVALID_INPUT":              ErrCodeInvalidInput,
	"INVALID_STATE":              ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":       ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":           ErrCodeValidation,
	"BAD_REQUEST":                ErrCodeBadRequest,
	"INTERNAL_ERROR":             ErrCodeInternal,
	"INVALID_AMOUNT":             ErrCodeInvalidAmount,
	"CONFIGURATION_ERROR":        ErrCodeConfiguration,
	"BALANCE_MISMATCH":           ErrCodeBalanceMismatch,
	"DUPLICATE_CERTIFICATE":      ErrCodeDuplicateCertificate,
	"NOT_ELIGIBLE":               ErrCodeNotEligible,
	"CASH_POSTING_NOT_FOUND":     ErrCodeCashPostingNotFound,
	"ALLOCATION_EXCEEDS_PAYMENT": ErrCodeAllocationExceeds,
	"DUPLICATE_ALLOCATION":       ErrCodeDuplicateAllocation,
	"INVOICE_MISMATCH":           ErrCodeInvoiceMismatch,
	"SEQUENCE_EXHAUSTED":         ErrCodeSequenceExhausted,
	"INVALID_CERTIFICATE_NUMBER": ErrCodeInvalidCertNumber,
	"PERIODIC_RETURN_FILED":      ErrCodePeriodicReturnFiled,
	"RECONCILIATION_FAILED":      ErrCodeReconciliationFailed,
}

// NormalizeErrorCode converts a domain error code to the API format.
// ERR_ codes pass through; other unknown codes get the ERR_ prefix.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainErrorCodes[code]; ok {
		return apiCode
	}
	if code == "" {
		return ErrCodeUnknown
	}
	if strings.HasPrefix(code, "ERR_") {
		return code
	}
	return "ERR_" + code
}
