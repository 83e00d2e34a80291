package tax

import (
	"time"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypePaymentSubmitted      = "PaymentSubmitted"
	EventTypePaymentCancelled      = "PaymentCancelled"
	EventTypeCertificateIssued     = "CertificateIssued"
	EventTypeCertificateCancelled  = "CertificateCancelled"
	EventTypePeriodicReturnRebuilt = "PeriodicReturnRebuilt"
)

// Aggregate type names
const (
	AggregateTypePayment        = "Payment"
	AggregateTypeCertificate    = "Certificate"
	AggregateTypePeriodicReturn = "PeriodicReturn"
)

// PaymentSubmittedEvent is raised when a payment is submitted
type PaymentSubmittedEvent struct {
	shared.BaseDomainEvent
	PaymentID      uuid.UUID        `json:"payment_id"`
	PaymentNumber  string           `json:"payment_number"`
	Direction      PaymentDirection `json:"direction"`
	PaidAmount     decimal.Decimal  `json:"paid_amount"`
	TotalRetention decimal.Decimal  `json:"total_retention"`
	TotalWHT       decimal.Decimal  `json:"total_wht"`
	TotalVATUndue  decimal.Decimal  `json:"total_vat_undue"`
	NetCashAmount  decimal.Decimal  `json:"net_cash_amount"`
}

// EventType returns the event type name
func (e *PaymentSubmittedEvent) EventType() string {
	return EventTypePaymentSubmitted
}

// NewPaymentSubmittedEvent creates a new PaymentSubmittedEvent
func NewPaymentSubmittedEvent(p *Payment) *PaymentSubmittedEvent {
	return &PaymentSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentSubmitted, AggregateTypePayment, p.ID, p.CompanyID),
		PaymentID:       p.ID,
		PaymentNumber:   p.Number,
		Direction:       p.Direction,
		PaidAmount:      p.PaidAmount,
		TotalRetention:  p.TotalRetention,
		TotalWHT:        p.TotalWHT,
		TotalVATUndue:   p.TotalVATUndue,
		NetCashAmount:   p.NetCashAmount,
	}
}

// PaymentCancelledEvent is raised when a submitted payment is reversed
type PaymentCancelledEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID  `json:"payment_id"`
	PaymentNumber string     `json:"payment_number"`
	CertificateID *uuid.UUID `json:"certificate_id,omitempty"`
	CancelledAt   time.Time  `json:"cancelled_at"`
}

// EventType returns the event type name
func (e *PaymentCancelledEvent) EventType() string {
	return EventTypePaymentCancelled
}

// NewPaymentCancelledEvent creates a new PaymentCancelledEvent
func NewPaymentCancelledEvent(p *Payment) *PaymentCancelledEvent {
	cancelledAt := time.Now()
	if p.CancelledAt != nil {
		cancelledAt = *p.CancelledAt
	}
	return &PaymentCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentCancelled, AggregateTypePayment, p.ID, p.CompanyID),
		PaymentID:       p.ID,
		PaymentNumber:   p.Number,
		CertificateID:   p.CertificateID,
		CancelledAt:     cancelledAt,
	}
}

// CertificateIssuedEvent is raised when a certificate reaches Issued
type CertificateIssuedEvent struct {
	shared.BaseDomainEvent
	CertificateID uuid.UUID       `json:"certificate_id"`
	Number        string          `json:"number"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	Period        TaxPeriod       `json:"period"`
	PNDForm       PNDForm         `json:"pnd_form"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
}

// EventType returns the event type name
func (e *CertificateIssuedEvent) EventType() string {
	return EventTypeCertificateIssued
}

// NewCertificateIssuedEvent creates a new CertificateIssuedEvent
func NewCertificateIssuedEvent(c *Certificate) *CertificateIssuedEvent {
	return &CertificateIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCertificateIssued, AggregateTypeCertificate, c.ID, c.CompanyID),
		CertificateID:   c.ID,
		Number:          c.Number,
		PaymentID:       c.PaymentID,
		Period:          c.Period(),
		PNDForm:         c.PNDForm,
		TaxAmount:       c.TaxAmount,
	}
}

// CertificateCancelledEvent is raised when an issued certificate is voided
type CertificateCancelledEvent struct {
	shared.BaseDomainEvent
	CertificateID uuid.UUID `json:"certificate_id"`
	Number        string    `json:"number"`
	PaymentID     uuid.UUID `json:"payment_id"`
	Period        TaxPeriod `json:"period"`
	Reason        string    `json:"reason"`
}

// EventType returns the event type name
func (e *CertificateCancelledEvent) EventType() string {
	return EventTypeCertificateCancelled
}

// NewCertificateCancelledEvent creates a new CertificateCancelledEvent
func NewCertificateCancelledEvent(c *Certificate) *CertificateCancelledEvent {
	return &CertificateCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCertificateCancelled, AggregateTypeCertificate, c.ID, c.CompanyID),
		CertificateID:   c.ID,
		Number:          c.Number,
		PaymentID:       c.PaymentID,
		Period:          c.Period(),
		Reason:          c.CancelReason,
	}
}

// PeriodicReturnRebuiltEvent is raised when a rebuild changed a return
type PeriodicReturnRebuiltEvent struct {
	shared.BaseDomainEvent
	ReturnID         uuid.UUID       `json:"return_id"`
	Period           TaxPeriod       `json:"period"`
	CertificateCount int             `json:"certificate_count"`
	TotalTaxAmount   decimal.Decimal `json:"total_tax_amount"`
}

// EventType returns the event type name
func (e *PeriodicReturnRebuiltEvent) EventType() string {
	return EventTypePeriodicReturnRebuilt
}

// NewPeriodicReturnRebuiltEvent creates a new PeriodicReturnRebuiltEvent
func NewPeriodicReturnRebuiltEvent(r *PeriodicReturn) *PeriodicReturnRebuiltEvent {
	return &PeriodicReturnRebuiltEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypePeriodicReturnRebuilt, AggregateTypePeriodicReturn, r.ID, r.CompanyID),
		ReturnID:         r.ID,
		Period:           r.Period(),
		CertificateCount: r.CertificateCount,
		TotalTaxAmount:   r.TotalTaxAmount,
	}
}

// PeriodOfEvent extracts the tax period carried by certificate events
func PeriodOfEvent(event shared.DomainEvent) (TaxPeriod, bool) {
	switch e := event.(type) {
	case *CertificateIssuedEvent:
		return e.Period, true
	case *CertificateCancelledEvent:
		return e.Period, true
	}
	return TaxPeriod{}, false
}
