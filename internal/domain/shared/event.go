package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact about a settlement aggregate, published once its
// transaction has committed.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	CompanyID() uuid.UUID
}

// BaseDomainEvent is embedded by every concrete event and serialises the
// envelope fields alongside the payload.
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	At        time.Time `json:"occurred_at"`
	Aggregate uuid.UUID `json:"aggregate_id"`
	Kind      string    `json:"aggregate_type"`
	Company   uuid.UUID `json:"company_id"`
}

func NewBaseDomainEvent(eventType, aggregateType string, aggregateID, companyID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        uuid.New(),
		Type:      eventType,
		At:        time.Now(),
		Aggregate: aggregateID,
		Kind:      aggregateType,
		Company:   companyID,
	}
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.At }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Aggregate }
func (e *BaseDomainEvent) AggregateType() string  { return e.Kind }
func (e *BaseDomainEvent) CompanyID() uuid.UUID   { return e.Company }
